// Package debug serves runtime counters over HTTP while the language
// server runs, so cache behavior and rate-limiter pressure can be
// inspected without attaching a debugger to a stdio process.
package debug

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Stats collects cache and rate-limiter counters. It implements the
// observability hook interfaces and is safe for concurrent use.
type Stats struct {
	// SessionID identifies one server run in logs and debug output.
	SessionID string

	started time.Time

	hits         atomic.Int64
	misses       atomic.Int64
	fetches      atomic.Int64
	fetchErrors  atomic.Int64
	descriptions atomic.Int64
	descErrors   atomic.Int64

	permits    atomic.Int64
	permitWait atomic.Int64 // cumulative nanoseconds
}

func NewStats() *Stats {
	return &Stats{
		SessionID: uuid.NewString(),
		started:   time.Now(),
	}
}

func (s *Stats) OnHit(context.Context, string)  { s.hits.Add(1) }
func (s *Stats) OnMiss(context.Context, string) { s.misses.Add(1) }

func (s *Stats) OnFetch(_ context.Context, _ string, _ time.Duration, err error) {
	s.fetches.Add(1)
	if err != nil {
		s.fetchErrors.Add(1)
	}
}

func (s *Stats) OnDescription(_ context.Context, _ string, _ time.Duration, err error) {
	s.descriptions.Add(1)
	if err != nil {
		s.descErrors.Add(1)
	}
}

func (s *Stats) OnPermit(_ context.Context, waited time.Duration) {
	s.permits.Add(1)
	s.permitWait.Add(int64(waited))
}

// snapshot is the JSON shape served at /debug/stats.
type snapshot struct {
	SessionID string `json:"session_id"`
	UptimeSec int64  `json:"uptime_seconds"`

	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	Fetches      int64 `json:"index_fetches"`
	FetchErrors  int64 `json:"index_fetch_errors"`
	Descriptions int64 `json:"description_fetches"`
	DescErrors   int64 `json:"description_fetch_errors"`

	Permits          int64 `json:"rate_permits"`
	PermitWaitMillis int64 `json:"rate_permit_wait_ms"`
}

func (s *Stats) snapshot() snapshot {
	return snapshot{
		SessionID:        s.SessionID,
		UptimeSec:        int64(time.Since(s.started).Seconds()),
		CacheHits:        s.hits.Load(),
		CacheMisses:      s.misses.Load(),
		Fetches:          s.fetches.Load(),
		FetchErrors:      s.fetchErrors.Load(),
		Descriptions:     s.descriptions.Load(),
		DescErrors:       s.descErrors.Load(),
		Permits:          s.permits.Load(),
		PermitWaitMillis: time.Duration(s.permitWait.Load()).Milliseconds(),
	}
}

// Handler returns the debug HTTP routes.
func Handler(stats *Stats) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/debug/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.snapshot())
	})
	return r
}

// Serve runs the debug server on addr until ctx is cancelled. Errors are
// logged, never fatal; a broken debug server must not take the language
// server down with it.
func Serve(ctx context.Context, addr string, stats *Stats, logger *log.Logger) {
	srv := &http.Server{Addr: addr, Handler: Handler(stats)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("debug server listening", "addr", addr, "session", stats.SessionID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("debug server failed", "err", err)
	}
}
