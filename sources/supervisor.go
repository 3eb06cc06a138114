package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/livecue/chatfeed/bus"
	"github.com/livecue/chatfeed/comment"
	"github.com/livecue/chatfeed/telemetry"
)

// taggedEmitter forwards adapter events to the bus with the registered
// source name. Detaching makes it drop events, so a replaced or unregistered
// adapter can never leak stale events into the stream.
type taggedEmitter struct {
	name     string
	bus      *bus.Bus
	log      *slog.Logger
	detached atomic.Bool
}

func (t *taggedEmitter) EmitComment(c comment.Comment) {
	if t.detached.Load() {
		return
	}
	t.bus.Publish(bus.Event{Kind: bus.SourceComment, Source: t.name, Comment: &c})
}

func (t *taggedEmitter) EmitError(err error) {
	if t.detached.Load() {
		return
	}
	if telemetry.AdapterErrors != nil {
		telemetry.AdapterErrors.Inc()
	}
	t.log.Warn("adapter error", slog.String("source", t.name), slog.Any("err", err))
	t.bus.Publish(bus.Event{Kind: bus.SourceError, Source: t.name, Err: err})
}

func (t *taggedEmitter) EmitDebug(msg string) {
	if t.detached.Load() {
		return
	}
	t.log.Debug("adapter debug", slog.String("source", t.name), slog.String("msg", msg))
	t.bus.Publish(bus.Event{Kind: bus.SourceDebug, Source: t.name, Debug: msg})
}

type entry struct {
	adapter Adapter
	emitter *taggedEmitter
	cancel  context.CancelFunc
	running bool
}

// Supervisor owns the registry of named adapters. Adapter failures during
// start, stop, or runtime surface as tagged source:error events and never
// propagate to the caller or to other adapters.
type Supervisor struct {
	bus *bus.Bus
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewSupervisor wires a Supervisor publishing onto b.
func NewSupervisor(b *bus.Bus, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{bus: b, log: log, entries: make(map[string]*entry)}
}

// Register constructs (or replaces) the adapter for name. A prior instance
// under the same name is stopped and detached first. Unknown kinds fail with
// a ConfigurationError. When autoStart is set the adapter is started
// immediately; start failures are reported as events, not returned.
func (s *Supervisor) Register(ctx context.Context, name string, cfg Config, autoStart bool) error {
	factory, ok := factoryFor(cfg.Kind)
	if !ok {
		return &ConfigurationError{Name: name, Kind: cfg.Kind}
	}

	s.mu.Lock()
	if prior, exists := s.entries[name]; exists {
		s.stopEntryLocked(name, prior)
		prior.emitter.detached.Store(true)
	}
	e := &entry{
		adapter: factory(cfg),
		emitter: &taggedEmitter{name: name, bus: s.bus, log: s.log},
	}
	s.entries[name] = e
	s.mu.Unlock()

	s.log.Info("source registered", slog.String("source", name), slog.String("kind", string(cfg.Kind)))
	if autoStart {
		s.Start(ctx, name)
	}
	return nil
}

// Start starts one adapter. Errors (including panics inside the adapter) are
// re-emitted as tagged source:error events.
func (s *Supervisor) Start(ctx context.Context, name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("start of unregistered source", slog.String("source", name))
		return
	}
	if e.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	emitter := e.emitter
	adapter := e.adapter
	s.mu.Unlock()

	err := protect(func() error { return adapter.Start(runCtx, emitter) })
	if err != nil {
		cancel()
		emitter.EmitError(fmt.Errorf("start: %w", err))
		return
	}

	s.mu.Lock()
	e.running = true
	s.mu.Unlock()
	s.updateRunningGauge()
	s.log.Info("source started", slog.String("source", name))
}

// Stop stops one adapter; errors are reported as events, never returned.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.stopEntryLocked(name, e)
	s.mu.Unlock()
	s.updateRunningGauge()
}

func (s *Supervisor) stopEntryLocked(name string, e *entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if err := protect(e.adapter.Stop); err != nil {
		e.emitter.EmitError(fmt.Errorf("stop: %w", err))
	}
	if e.running {
		e.running = false
		s.log.Info("source stopped", slog.String("source", name))
	}
}

// StartAll starts every registered adapter concurrently. Each adapter's
// outcome is captured independently; one failure neither cancels nor fails
// the others.
func (s *Supervisor) StartAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range s.List() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.Start(ctx, name)
		}(name)
	}
	wg.Wait()
}

// StopAll stops every registered adapter concurrently with the same
// settle-all semantics as StartAll.
func (s *Supervisor) StopAll() {
	var wg sync.WaitGroup
	for _, name := range s.List() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.Stop(name)
		}(name)
	}
	wg.Wait()
}

// Unregister stops the adapter, detaches its event forwarding, and removes
// it from the registry.
func (s *Supervisor) Unregister(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.stopEntryLocked(name, e)
	e.emitter.detached.Store(true)
	delete(s.entries, name)
	s.mu.Unlock()
	s.updateRunningGauge()
	s.log.Info("source unregistered", slog.String("source", name))
}

// List returns the registered names, sorted.
func (s *Supervisor) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Status reports per-source running state.
func (s *Supervisor) Status() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.running
	}
	return out
}

func (s *Supervisor) updateRunningGauge() {
	n := 0
	s.mu.Lock()
	for _, e := range s.entries {
		if e.running {
			n++
		}
	}
	s.mu.Unlock()
	telemetry.SetSourcesRunning(n)
}

// protect runs fn and converts a panic into an error so a misbehaving
// adapter cannot take the supervisor down.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return fn()
}
