package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/flatlease/internal/models"
)

type observed struct {
	method, route, code string
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (o *recordingObserver) ObserveRequest(method, route, code string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observed{method, route, code})
}

func TestIdentifyActor(t *testing.T) {
	var got models.Actor
	h := IdentifyActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, " alice ")
	req.Header.Set(ActorIDHeader, "u-7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, models.Actor{ID: "u-7", Username: "alice"}, got)

	got = models.Actor{ID: "stale"}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, got.IsZero())
}

func TestLoggingReportsRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Logging(obs))
	r.Get("/v1/contracts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/contracts/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	require.Len(t, obs.seen, 2)
	assert.Equal(t, observed{"GET", "/v1/contracts/{id}", "404"}, obs.seen[0])
	assert.Equal(t, observed{"GET", "/ok", "200"}, obs.seen[1])
}
