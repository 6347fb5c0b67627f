package api

import "context"

type contextKey int

const ctxKeyActor contextKey = 0

// WithActor returns a context carrying the authenticated user name.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFrom returns the authenticated user name, or "" when absent.
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyActor).(string)
	return s
}
