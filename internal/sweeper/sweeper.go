// Package sweeper owns the idle timer and the periodic save sweep over the
// document registry.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/logger"
	"github.com/bassista/docsweep/internal/save"
)

// DefaultIdleInterval is the quiet period required before a sweep fires.
const DefaultIdleInterval = 10 * time.Second

// Saver flushes a single document. Implemented by save.Executor.
type Saver interface {
	Save(ctx context.Context, doc document.Document) (save.Outcome, error)
}

// Sweeper guarantees every tracked, modified document is flushed within a
// bounded idle window of its last modification.
//
// The timer is an idle trigger, not a fixed-period ticker: it fires only
// after the configured interval has elapsed with no qualifying activity, and
// each fire arms exactly the next one after the sweep completes. At most one
// sweep is in flight at a time.
type Sweeper struct {
	registry *document.Registry
	saver    Saver
	clock    Clock

	mu       sync.Mutex
	ctx      context.Context
	interval time.Duration
	timer    Timer
	running  bool
	sweeping bool
	gen      uint64 // bumped on every arm/stop so stale fires are ignored
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock replaces the wall clock, used by tests to drive a virtual clock.
func WithClock(c Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

// New creates a stopped sweeper over the given registry and saver.
func New(registry *document.Registry, saver Saver, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry: registry,
		saver:    saver,
		clock:    realClock{},
		interval: DefaultIdleInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start arms the idle timer. No-op if already running. The context bounds
// every sweep; cancelling it stops the sweeper.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = DefaultIdleInterval
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.interval = interval
	s.running = true
	s.armLocked()
	s.mu.Unlock()

	logger.WithComponent("sweep").Debugf("sweeper armed with idle interval %v", interval)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			s.Stop()
		}()
	}
}

// Restart cancels any armed timer and starts a fresh idle window. Used when
// the interval changes or a new document registers, so the new configuration
// or document is covered by one full window.
func (s *Sweeper) Restart(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultIdleInterval
	}

	s.mu.Lock()
	s.stopLocked()
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	s.interval = interval
	s.running = true
	s.armLocked()
	s.mu.Unlock()

	logger.WithComponent("sweep").Debugf("sweeper restarted with idle interval %v", interval)
}

// Stop disarms the timer. No-op when already stopped.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sweeper) stopLocked() {
	if !s.running {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.running = false
	s.gen++
}

// Activity resets the idle countdown without replacing the timer. Continuous
// activity defers the fire indefinitely; once it stops, exactly one fire
// happens after the configured interval.
func (s *Sweeper) Activity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.timer != nil {
		s.timer.Reset(s.interval)
	}
}

// Running reports whether the idle timer is armed.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the configured idle interval.
func (s *Sweeper) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Close performs a final sweep and leaves the sweeper stopped.
// Uses a background context so the final flush completes during shutdown.
func (s *Sweeper) Close() {
	s.Stop()
	s.Sweep(context.Background())
	logger.WithComponent("sweep").Info("sweeper stopped after final sweep")
}

// OnOpen is the lifecycle hook for a newly opened document. Documents
// without a backing path are never tracked. A successful registration
// restarts the idle window so the document is covered by the next fire.
func (s *Sweeper) OnOpen(doc document.Document) error {
	if doc == nil || doc.Path() == "" {
		if doc != nil {
			logger.WithDocument("sweep", doc.ID()).Debug("scratch document, not tracked")
		}
		return nil
	}
	if err := s.registry.Add(doc); err != nil {
		return err
	}
	s.Restart(s.Interval())
	return nil
}

// OnClose is the lifecycle hook for a closing document. The sweeper stays
// armed even if the registry empties; further sweeps are harmless no-ops.
func (s *Sweeper) OnClose(doc document.Document) {
	if doc == nil {
		return
	}
	s.registry.Remove(doc.ID())
}

// armLocked schedules the next fire. Caller holds s.mu.
func (s *Sweeper) armLocked() {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.interval, func() { s.fire(gen) })
}

// fire runs one sweep and arms the next window. A fire whose generation is
// stale (stopped or restarted since it was armed) does nothing.
func (s *Sweeper) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.sweeping {
		// Previous sweep still in flight; skip and wait another window.
		s.armLocked()
		s.mu.Unlock()
		return
	}
	s.sweeping = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			logger.WithComponent("sweep").Errorf("sweep panicked: %v", rec)
		}
		s.mu.Lock()
		s.sweeping = false
		if s.running && gen == s.gen {
			s.armLocked()
		}
		s.mu.Unlock()
	}()

	s.Sweep(ctx)
}

// Sweep takes a registry snapshot and saves every modified, still-open
// document. Vanished documents are evicted from the live set; save errors
// are logged and never abort the remaining iteration.
func (s *Sweeper) Sweep(ctx context.Context) {
	docs := s.registry.Snapshot()
	logger.WithComponent("sweep").Tracef("sweep started over %d documents", len(docs))

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			logger.WithComponent("sweep").Debug("sweep cancelled")
			return
		default:
		}

		out, err := s.saver.Save(ctx, doc)
		if err != nil {
			logger.WithDocument("sweep", doc.ID()).Errorf("save error: %v", err)
			continue
		}
		if out.Evict {
			s.registry.Remove(doc.ID())
		}
	}

	logger.WithComponent("sweep").Tracef("sweep completed")
}
