// Package server assembles the HTTP router and runs the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/flatlease/internal/handler"
	"github.com/mmynk/flatlease/internal/metrics"
	"github.com/mmynk/flatlease/internal/middleware"
	"github.com/mmynk/flatlease/internal/service"
)

const shutdownTimeout = 15 * time.Second

// Config holds what the router needs.
type Config struct {
	Addr     string
	Services *service.Services
	Sweeper  handler.Sweeper
	Stream   *handler.EventStream
	Metrics  *metrics.Metrics
	// AllowedOrigins are the host patterns granted CORS access.
	AllowedOrigins []string
}

// NewRouter builds the full handler tree.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.IdentifyActor)
	if cfg.Metrics != nil {
		r.Use(middleware.Logging(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	} else {
		r.Use(middleware.Logging(nil))
	}
	r.Use(cors(cfg.AllowedOrigins))

	r.Get("/healthz", handler.Healthz)
	handler.RegisterRoutes(r, cfg.Services, cfg.Sweeper, cfg.Stream)
	return r
}

// cors grants browser access to origins whose host matches one of patterns.
// Other origins get no Access-Control-Allow-Origin header.
func cors(patterns []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); originAllowed(patterns, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.ActorHeader+", "+middleware.ActorIDHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed matches the origin's host the same way the websocket
// handshake matches OriginPatterns.
func originAllowed(patterns []string, origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), host); ok {
			return true
		}
	}
	return false
}

// Run serves HTTP/1.1 and cleartext HTTP/2 until ctx is cancelled, then
// shuts down gracefully.
func Run(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(NewRouter(cfg), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", cfg.Addr, "url", fmt.Sprintf("http://localhost%s", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
