package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config tunes a Dispatcher. Zero values take the defaults.
type Config struct {
	DefaultTopic string `yaml:"default_topic"`
	Buffer       int    `yaml:"buffer"`  // per-subscriber channel capacity
	History      int    `yaml:"history"` // events kept for Recent
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{DefaultTopic: DefaultTopic, Buffer: 64, History: 500}
}

type subscriber struct {
	id    int
	topic string
	ch    chan Event
}

// Dispatcher is a thread-safe in-process topic pub/sub. Delivery is
// best-effort: a subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu      sync.Mutex
	subs    map[string]map[int]*subscriber // topic -> id -> subscriber
	nextID  int
	history []Event
	dropped uint64

	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.DefaultTopic == "" {
		cfg.DefaultTopic = def.DefaultTopic
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.History <= 0 {
		cfg.History = def.History
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		subs:   make(map[string]map[int]*subscriber),
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// TopicFor returns the sprint topic for a sprint-scoped change, or the
// default topic when sprintID is nil.
func (d *Dispatcher) TopicFor(sprintID *int64) string {
	if sprintID == nil {
		return d.cfg.DefaultTopic
	}
	return SprintTopic(*sprintID)
}

// DefaultTopic returns the configured unscoped topic.
func (d *Dispatcher) DefaultTopic() string { return d.cfg.DefaultTopic }

// Publish records the event and hands it to every subscriber of topic and of
// the wildcard topic. The lock is held while enqueueing so each subscriber
// observes events in publish order.
func (d *Dispatcher) Publish(ctx context.Context, topic string, kind Kind, payload any) {
	if topic == "" {
		topic = d.cfg.DefaultTopic
	}
	ev := Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Kind:      kind,
		Payload:   payload,
		Timestamp: d.now().UTC(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, ev)
	if len(d.history) > d.cfg.History {
		d.history = d.history[len(d.history)-d.cfg.History:]
	}

	deliver := func(subs map[int]*subscriber) {
		for _, s := range subs {
			select {
			case s.ch <- ev:
			default:
				d.dropped++
				d.logger.DebugContext(ctx, "notify: subscriber buffer full, event dropped",
					slog.String("topic", topic), slog.String("kind", string(kind)), slog.Int("subscriber", s.id))
			}
		}
	}
	deliver(d.subs[topic])
	if topic != WildcardTopic {
		deliver(d.subs[WildcardTopic])
	}
}

// Subscribe registers a buffered channel for topic. Calling the returned
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (d *Dispatcher) Subscribe(topic string) (<-chan Event, func()) {
	if topic == "" {
		topic = d.cfg.DefaultTopic
	}

	d.mu.Lock()
	d.nextID++
	s := &subscriber{id: d.nextID, topic: topic, ch: make(chan Event, d.cfg.Buffer)}
	if d.subs[topic] == nil {
		d.subs[topic] = make(map[int]*subscriber)
	}
	d.subs[topic][s.id] = s
	d.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subs[topic], s.id)
			if len(d.subs[topic]) == 0 {
				delete(d.subs, topic)
			}
			close(s.ch)
		})
	}
}

// Recent returns up to limit of the most recent events for topic, oldest
// first. The wildcard or empty topic matches every event; limit <= 0 returns
// everything retained.
func (d *Dispatcher) Recent(topic string, limit int) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result []Event
	for i := len(d.history) - 1; i >= 0; i-- {
		ev := d.history[i]
		if topic == "" || topic == WildcardTopic || ev.Topic == topic {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}

// Stats reports current subscriber count and total dropped deliveries.
func (d *Dispatcher) Stats() (subscribers int, dropped uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, subs := range d.subs {
		subscribers += len(subs)
	}
	return subscribers, d.dropped
}
