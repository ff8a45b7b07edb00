// Package failover chains recognition engines so a failing primary is
// bypassed in favour of a healthy standby.
//
// Each engine carries its own circuit breaker: after enough consecutive
// failures the engine is skipped outright until a reset timeout elapses,
// at which point a single probe call decides whether it rejoins the
// rotation. A typical deployment pairs the in-process whisper.cpp engine
// with a remote whisper-server standby, or the reverse.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/sonoscribe/pkg/recognizer"
)

var (
	// ErrBreakerOpen is returned internally when an engine's breaker
	// rejects the call without forwarding it.
	ErrBreakerOpen = errors.New("failover: circuit breaker open")

	// ErrAllEngines is returned by Transcribe when every engine either
	// failed or was skipped by its breaker.
	ErrAllEngines = errors.New("failover: all engines failed")
)

const (
	defaultMaxFailures  = 3
	defaultResetTimeout = 30 * time.Second
)

// Option tunes the per-engine circuit breakers of a [Chain].
type Option func(*Chain)

// WithMaxFailures sets how many consecutive failures trip an engine's
// breaker. Default: 3.
func WithMaxFailures(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.maxFailures = n
		}
	}
}

// WithResetTimeout sets how long a tripped breaker waits before allowing a
// probe call. Default: 30s.
func WithResetTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.resetTimeout = d
		}
	}
}

// breaker tracks the failure state of one engine. After maxFailures
// consecutive failures it rejects calls until resetTimeout has passed,
// then admits one probe: a probe success resets the breaker, a probe
// failure trips it again for another full timeout.
type breaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu       sync.Mutex
	failures int
	lastFail time.Time
	probing  bool
}

// allow reports whether a call may proceed. It flags the probe slot when
// the reset timeout has elapsed on a tripped breaker.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.maxFailures {
		return true
	}
	if time.Since(b.lastFail) >= b.resetTimeout && !b.probing {
		b.probing = true
		return true
	}
	return false
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err != nil {
		b.failures++
		if b.failures < b.maxFailures {
			return
		}
		// Tripped (or probe failed): hold for a full timeout from now.
		b.failures = b.maxFailures
		b.lastFail = time.Now()
		return
	}
	b.failures = 0
}

// tripped reports whether the breaker currently rejects ordinary calls.
func (b *breaker) tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.maxFailures
}

// engine pairs a named recognizer with its breaker.
type engine struct {
	name    string
	rec     recognizer.Recognizer
	breaker *breaker
}

// Chain implements [recognizer.Recognizer] over an ordered list of
// engines. It is safe for concurrent use.
type Chain struct {
	maxFailures  int
	resetTimeout time.Duration
	engines      []*engine
}

var _ recognizer.Recognizer = (*Chain)(nil)

// New creates an empty Chain. Register engines with [Chain.Add] in
// preference order; the first registered engine is always tried first.
func New(opts ...Option) *Chain {
	c := &Chain{
		maxFailures:  defaultMaxFailures,
		resetTimeout: defaultResetTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers rec under name at the end of the chain.
func (c *Chain) Add(name string, rec recognizer.Recognizer) {
	c.engines = append(c.engines, &engine{
		name: name,
		rec:  rec,
		breaker: &breaker{
			maxFailures:  c.maxFailures,
			resetTimeout: c.resetTimeout,
		},
	})
}

// Transcribe tries each engine in order until one succeeds. Engines with a
// tripped breaker are skipped. When every engine fails or is skipped, the
// last underlying error is wrapped in [ErrAllEngines].
func (c *Chain) Transcribe(ctx context.Context, samples []float32) ([]string, error) {
	if len(c.engines) == 0 {
		return nil, errors.New("failover: no engines registered")
	}

	lastErr := ErrBreakerOpen
	for _, e := range c.engines {
		if !e.breaker.allow() {
			slog.Debug("skipping engine, breaker open", "engine", e.name)
			continue
		}

		segments, err := e.rec.Transcribe(ctx, samples)
		e.breaker.record(err)
		if err == nil {
			return segments, nil
		}
		if ctx.Err() != nil {
			// The session is gone; a standby cannot help.
			return nil, err
		}
		lastErr = err
		slog.Warn("engine failed, trying next", "engine", e.name, "err", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrAllEngines, lastErr)
}
