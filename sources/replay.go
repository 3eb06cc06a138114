package sources

import (
	"context"
	"sync"
	"time"
)

func init() {
	RegisterKind(KindReplay, func(cfg Config) Adapter {
		return &replayAdapter{cfg: cfg}
	})
}

// replayAdapter emits a scripted sequence of comments on a fixed interval.
// Used for local development and demos without live credentials.
type replayAdapter struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func (a *replayAdapter) Start(ctx context.Context, emit Emitter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	interval := a.cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		for _, c := range a.cfg.Script {
			select {
			case <-runCtx.Done():
				return
			case <-time.After(interval):
			}
			emit.EmitComment(c)
		}
		emit.EmitDebug("replay finished")
	}()
	return nil
}

func (a *replayAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.running = false
	return nil
}
