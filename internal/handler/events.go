package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mmynk/flatlease/internal/event"
)

const (
	// clientBuffer is how many events a slow websocket client may lag behind
	// before events are dropped for it.
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// EventStream fans domain events out to websocket clients. It is an
// eventbus.Handler.
type EventStream struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	origins []string
}

type streamClient struct {
	events chan event.DomainEvent
	types  map[string]bool // empty means all types
}

// NewEventStream creates an EventStream with no clients. Cross-origin
// browsers may connect only from hosts matching originPatterns.
func NewEventStream(originPatterns ...string) *EventStream {
	return &EventStream{clients: make(map[*streamClient]struct{}), origins: originPatterns}
}

// HandleEvent implements eventbus.Handler. It never blocks on a client.
func (s *EventStream) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if len(c.types) > 0 && !c.types[evt.EventType] {
			continue
		}
		select {
		case c.events <- evt:
		default:
			slog.Warn("Event stream client lagging, event dropped", "event_type", evt.EventType, "event_id", evt.ID)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *EventStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *EventStream) add(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *EventStream) remove(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// ServeHTTP handles GET /v1/events. An optional comma-separated types query
// param filters by event type.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Warn("Event stream websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	client := &streamClient{events: make(chan event.DomainEvent, clientBuffer), types: map[string]bool{}}
	if v := r.URL.Query().Get("types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				client.types[t] = true
			}
		}
	}
	s.add(client)
	defer s.remove(client)
	slog.Info("Event stream client connected", "remote_addr", r.RemoteAddr, "clients", s.Clients())

	// The stream is one-way; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			slog.Info("Event stream client disconnected", "remote_addr", r.RemoteAddr)
			return
		case evt := <-client.events:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, evt)
			cancel()
			if err != nil {
				slog.Warn("Event stream write failed", "remote_addr", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
