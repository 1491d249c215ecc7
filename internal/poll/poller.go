// Package poll runs a refresh callback on a fixed cadence with explicit
// start/stop control, failure backoff, and liveness guarantees after close.
package poll

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	defaultInterval = 2 * time.Second
	maxBackoff      = 30 * time.Second
)

// Options configure a Poller.
type Options struct {
	// Refresh is invoked on every tick. Required. A returned error counts
	// as a failed poll; it never stops the poller.
	Refresh func(context.Context) error
	// Interval between invocations. Defaults to two seconds.
	Interval time.Duration
	// Immediate runs one refresh as part of Start, before the first tick.
	Immediate bool
	// OnError is told about each failed refresh. A panicking handler is
	// recovered and logged; it cannot take the poller down.
	OnError func(error)
}

// Poller schedules recurring refreshes. The zero value is not usable; build
// one with New. All methods are safe for concurrent use.
//
// Every running schedule carries a generation number. Stop, Close, and
// interval changes bump the generation, so a refresh that was already in
// flight when the schedule died finds its generation stale and discards its
// result instead of mutating state.
type Poller struct {
	refresh func(context.Context) error
	onError func(error)

	mu        sync.Mutex
	interval  time.Duration
	immediate bool
	running   bool
	closed    bool
	gen       int
	cancel    context.CancelFunc
	lastErr   error
	failures  int
}

// New builds a Poller. It panics if opts.Refresh is nil.
func New(opts Options) *Poller {
	if opts.Refresh == nil {
		panic("poll: Options.Refresh is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		refresh:   opts.Refresh,
		onError:   opts.OnError,
		interval:  interval,
		immediate: opts.Immediate,
	}
}

// Start begins the schedule. It is a no-op while already running or after
// Close. With Immediate set, one refresh runs synchronously first.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.closed || p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.gen++
	gen := p.gen
	interval := p.interval
	immediate := p.immediate
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	if immediate {
		p.runOnce(ctx, gen)
	}
	go p.loop(ctx, gen, interval)
}

// Stop cancels the schedule. Idempotent; a refresh already dispatched may
// finish but its result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if !p.running {
		return
	}
	p.running = false
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Restart stops the current schedule and starts a fresh one. The start is
// deferred so the stop is fully in effect first.
func (p *Poller) Restart() {
	p.Stop()
	go p.Start()
}

// SetInterval changes the cadence. A running poller restarts on the new
// interval.
func (p *Poller) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	p.mu.Lock()
	if interval == p.interval {
		p.mu.Unlock()
		return
	}
	p.interval = interval
	running := p.running
	p.mu.Unlock()
	if running {
		p.Restart()
	}
}

// SetEnabled starts or stops the poller to match the flag.
func (p *Poller) SetEnabled(enabled bool) {
	if enabled {
		p.Start()
	} else {
		p.Stop()
	}
}

// Running reports whether a schedule is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastError returns the error from the most recent refresh, or nil after a
// success.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// ConsecutiveFailures returns the current failure streak.
func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Close stops the poller for good. After Close returns, no refresh result
// is applied and no callback is invoked, even if one was mid-flight.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopLocked()
}

func (p *Poller) loop(ctx context.Context, gen int, interval time.Duration) {
	for {
		wait := calculateBackoff(p.ConsecutiveFailures(), interval)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !p.runOnce(ctx, gen) {
			return
		}
	}
}

// runOnce performs a single refresh. It reports false when the schedule it
// belongs to is no longer live, before or after the call.
func (p *Poller) runOnce(ctx context.Context, gen int) bool {
	if !p.live(gen) {
		return false
	}

	err := p.safeRefresh(ctx)

	p.mu.Lock()
	if p.closed || p.gen != gen {
		p.mu.Unlock()
		return false
	}
	if err != nil {
		p.lastErr = err
		p.failures++
	} else {
		p.lastErr = nil
		p.failures = 0
	}
	handler := p.onError
	p.mu.Unlock()

	if err != nil && handler != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("poll error handler panicked: %v", r)
				}
			}()
			handler(err)
		}()
	}
	return true
}

func (p *Poller) safeRefresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	return p.refresh(ctx)
}

func (p *Poller) live(gen int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.gen == gen
}

// calculateBackoff stretches the wait while refreshes keep failing, doubling
// per failure up to maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
