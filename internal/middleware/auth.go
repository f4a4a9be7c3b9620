package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmynk/flatlease/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ActorKey is the context key for the acting user.
	ActorKey contextKey = "actor"

	// ActorHeader carries the acting user's name.
	ActorHeader = "X-Actor"
	// ActorIDHeader optionally carries the acting user's ID.
	ActorIDHeader = "X-Actor-ID"
)

// ActorFromContext returns the actor stored by IdentifyActor, or the zero
// Actor if the request carried none.
func ActorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(ActorKey).(models.Actor)
	return actor
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// IdentifyActor reads the actor headers into the request context. Requests
// without them pass through; mutating operations reject a missing actor
// further down.
func IdentifyActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(ActorHeader))
		id := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if name != "" || id != "" {
			r = r.WithContext(WithActor(r.Context(), models.Actor{ID: id, Username: name}))
		}
		next.ServeHTTP(w, r)
	})
}
