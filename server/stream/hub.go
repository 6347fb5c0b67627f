// Package stream serves dispatcher topics to browsers as Server-Sent Events.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/GoCodeAlone/worktrack/notify"
)

// Hub bridges notify subscriptions to SSE connections. Each connection owns
// one subscription for the lifetime of its request.
type Hub struct {
	source       notify.Subscriber
	defaultTopic string
	logger       *slog.Logger
	clients      atomic.Int64
}

// NewHub creates a Hub reading from source. A nil logger uses slog.Default().
func NewHub(source notify.Subscriber, defaultTopic string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTopic == "" {
		defaultTopic = notify.DefaultTopic
	}
	return &Hub{source: source, defaultTopic: defaultTopic, logger: logger}
}

// Clients returns the number of open SSE connections.
func (h *Hub) Clients() int { return int(h.clients.Load()) }

// ServeSSE streams the events of the topic named by the "topic" query
// parameter ("*" for all, default topic when absent).
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = h.defaultTopic
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	events, unsubscribe := h.source.Subscribe(topic)
	defer unsubscribe()
	h.clients.Add(1)
	defer h.clients.Add(-1)

	h.logger.Debug("sse client connected", slog.String("topic", topic))

	// Send connected event
	hello, _ := json.Marshal(map[string]string{"topic": topic})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", hello) //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("sse client disconnected", slog.String("topic", topic))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.Error("sse encode event", slog.String("event_id", ev.ID), slog.Any("err", err))
				continue
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes ev as one SSE frame named after its kind.
func writeEvent(w http.ResponseWriter, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\n", ev.ID, ev.Kind) //nolint:errcheck
	// Each SSE "data:" line must not contain newlines
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
	}
	fmt.Fprintln(w) //nolint:errcheck
	return nil
}
