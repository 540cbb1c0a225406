package scheduler

import (
	"sync"
	"time"

	"github.com/majordodo/corebroker/pkg/log"
	"github.com/rs/zerolog"
)

// Runner drives one named background cycle on a fixed tick. cmd/brokerd
// uses one Runner per background goroutine: the checkpoint scheduler and
// the finished-task (purge) collector.
type Runner struct {
	name     string
	interval time.Duration
	fn       func()
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// New returns a Runner that calls fn every interval once Start is
// called. fn is expected not to panic; the runner does not recover, so a
// panic in fn crashes the whole process. Callers should recover
// internally if fn can fail in ways that should only be logged.
func New(name string, interval time.Duration, fn func()) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   log.WithComponent("scheduler").With().Str("runner", name).Logger(),
	}
}

// Start begins the runner loop in its own goroutine. Calling Start twice
// without an intervening Stop leaks the first goroutine.
func (r *Runner) Start() {
	r.mu.Lock()
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	go r.run(stopCh)
}

// Stop ends the runner loop. Safe to call once after Start.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
}

func (r *Runner) run(stopCh chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.fn()
		case <-stopCh:
			return
		}
	}
}
