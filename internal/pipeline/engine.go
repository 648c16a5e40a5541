package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nev3rmi/citeanchor/internal/viewer"
)

// EngineConfig tunes session lifecycle and matching concurrency.
type EngineConfig struct {
	SessionTTL           time.Duration
	CleanupInterval      time.Duration
	MaxConcurrentMatches int
	Timing               Timing
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.MaxConcurrentMatches <= 0 {
		c.MaxConcurrentMatches = 4
	}
	return c
}

// Engine owns all highlight sessions and the shared matching semaphore.
type Engine struct {
	cfg     EngineConfig
	store   *SessionStore
	fetcher MetadataFetcher
	sem     chan struct{}
	stats   *Stats
	log     *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(cfg EngineConfig, fetcher MetadataFetcher, log *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		store:   NewSessionStore(cfg.SessionTTL),
		fetcher: fetcher,
		sem:     make(chan struct{}, cfg.MaxConcurrentMatches),
		stats:   NewStats(time.Hour),
		log:     log,
	}
}

// Start launches the background session cleanup.
func (e *Engine) Start(ctx context.Context) {
	baseCtx, cancel := context.WithCancel(ctx)
	e.baseCtx = baseCtx
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-baseCtx.Done():
				return
			case <-ticker.C:
				for _, sess := range e.store.Cleanup() {
					sess.Stop()
					e.log.Info("session expired", "session_id", sess.ID)
				}
			}
		}
	}()
}

// Stop gracefully shuts down every session and the cleanup loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	for _, sess := range e.store.List() {
		sess.Stop()
	}
}

// CreateSession registers a new session backed by a pushed-page run store
// and a polled directive queue, and starts its run loop.
func (e *Engine) CreateSession() *Session {
	runs := viewer.NewRunStore()
	queue := viewer.NewQueue()
	sess := NewSession(SessionConfig{
		ID:       uuid.NewString(),
		Source:   runs,
		Renderer: queue,
		Runs:     runs,
		Fetcher:  e.fetcher,
		Timing:   e.cfg.Timing,
		Sem:      e.sem,
		Stats:    e.stats,
		Log:      e.log,
	})
	e.store.Put(sess)

	ctx := e.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	sess.Start(ctx)
	e.stats.SessionCreated()
	e.log.Info("session created", "session_id", sess.ID)
	return sess
}

// Session returns a session by id, or nil.
func (e *Engine) Session(id string) *Session {
	return e.store.Get(id)
}

// Sessions returns all live sessions.
func (e *Engine) Sessions() []*Session {
	return e.store.List()
}

// DropSession stops and removes a session, reporting whether it existed.
func (e *Engine) DropSession(id string) bool {
	sess := e.store.Delete(id)
	if sess == nil {
		return false
	}
	sess.Stop()
	e.log.Info("session dropped", "session_id", id)
	return true
}

// Stats returns engine-wide counters and match timings.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.Snapshot()
}
