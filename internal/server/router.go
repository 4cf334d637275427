// Package server serves the mirrored media tree over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chansync/internal/blocking"
	"chansync/internal/domain/logger"
	"chansync/internal/history"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

type serverStore struct {
	history *history.Store
	blocker *blocking.Blocker
}

// NewRouter returns a handler serving root as static files plus a small status API.
//
// The status API answers only clients on the local network.
//
// hist and blocker are optional; their routes report empty results without them.
func NewRouter(root string, hist *history.Store, blocker *blocking.Blocker) http.Handler {
	s := &serverStore{history: hist, blocker: blocker}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(privateOnly)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{channel}", s.handleChannelRuns)
		r.Get("/blocked", s.handleBlocked)
	})

	// --- Static media tree ---
	r.Handle("/*", http.FileServer(http.Dir(root)))

	return r
}

// StartServer serves h on addr until ctx is done.
func StartServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Pl.S("chansync web server running on http://localhost%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Pl.I("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
