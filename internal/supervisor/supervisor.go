package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// FallbackTimeout bounds operations when neither the caller nor
	// configuration names a deadline. Operations never run unbounded.
	FallbackTimeout = 120 * time.Second
	// DefaultGrace is the pause between cooperative cancellation and
	// forced termination of tracked processes.
	DefaultGrace = 2 * time.Second
)

// ErrTimedOut indicates a bounded call hit its deadline before the
// operation yielded a result.
var ErrTimedOut = errors.New("operation timed out")

// Supervisor wraps operations in deadlines and owns the lifecycle of the
// subordinate processes they spawn. Processes register with a per-call
// Scope; on deadline expiry the scope is forcibly reaped, and a standing
// tail sweep cleans up whatever earlier interrupted calls left behind.
type Supervisor struct {
	defaultTimeout time.Duration
	grace          time.Duration
	clock          clockwork.Clock
	logger         *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	retired []*Scope
}

// New creates a supervisor. defaultTimeout of zero defers to
// FallbackTimeout at call time; grace of zero means DefaultGrace.
func New(defaultTimeout, grace time.Duration, clock clockwork.Clock, logger *slog.Logger) *Supervisor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		defaultTimeout: defaultTimeout,
		grace:          grace,
		clock:          clock,
		logger:         logger,
	}
}

// Timeout resolves a caller-supplied timeout against the configured
// default, falling back to FallbackTimeout when both are absent.
func (s *Supervisor) Timeout(requested time.Duration) time.Duration {
	if requested > 0 {
		return requested
	}
	if s.defaultTimeout > 0 {
		return s.defaultTimeout
	}
	return FallbackTimeout
}

// Grace returns the termination grace period.
func (s *Supervisor) Grace() time.Duration {
	return s.grace
}

// Begin opens a bounded call: a deadline context with a fresh process
// scope attached. Callers must End the call, normally via defer.
func (s *Supervisor) Begin(ctx context.Context, timeout time.Duration) *BoundedCall {
	timeout = s.Timeout(timeout)

	s.mu.Lock()
	s.nextID++
	scope := &Scope{id: s.nextID}
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ContextWithScope(ctx, scope), timeout)
	return &BoundedCall{
		sup:     s,
		scope:   scope,
		ctx:     callCtx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Sweep reaps processes left behind by calls that already ended and
// returns their pids. Safe to call at any time.
func (s *Supervisor) Sweep() []int {
	s.mu.Lock()
	scopes := make([]*Scope, len(s.retired))
	copy(scopes, s.retired)
	s.mu.Unlock()

	var reaped []int
	for _, sc := range scopes {
		reaped = append(reaped, sc.terminate(s.clock, s.grace)...)
	}
	if len(reaped) > 0 {
		s.logger.Warn("tail sweep reaped orphaned processes", "pids", reaped)
	}

	s.mu.Lock()
	kept := s.retired[:0]
	for _, sc := range s.retired {
		if sc.live() > 0 {
			kept = append(kept, sc)
		}
	}
	s.retired = kept
	s.mu.Unlock()
	return reaped
}

func (s *Supervisor) retire(scope *Scope) {
	s.mu.Lock()
	s.retired = append(s.retired, scope)
	s.mu.Unlock()
}

// BoundedCall is one deadline-bounded unit of work plus its process scope.
type BoundedCall struct {
	sup     *Supervisor
	scope   *Scope
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu         sync.Mutex
	timedOut   bool
	terminated []int
	ended      bool
}

// Context returns the deadline context for the call. Subordinate commands
// started through StartCmd with this context register in the call's scope.
func (c *BoundedCall) Context() context.Context {
	return c.ctx
}

// Timeout returns the resolved deadline for this call.
func (c *BoundedCall) Timeout() time.Duration {
	return c.timeout
}

// Run races op against the call deadline. On expiry the context is
// cancelled and the scope's processes are terminated (cooperative signal,
// grace wait, forced kill); Run then returns ErrTimedOut without waiting
// for op to unwind. An abandoned op keeps running against a cancelled
// context, so its remaining store and device calls fail fast.
func (c *BoundedCall) Run(op func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- op(c.ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-c.ctx.Done():
	}

	timedOut := errors.Is(c.ctx.Err(), context.DeadlineExceeded)
	terminated := c.scope.terminate(c.sup.clock, c.sup.grace)

	c.mu.Lock()
	c.timedOut = timedOut
	c.terminated = terminated
	c.mu.Unlock()

	if timedOut {
		c.sup.logger.Warn("bounded call timed out",
			"timeout", c.timeout, "terminated", terminated)
		return ErrTimedOut
	}
	c.sup.logger.Info("bounded call cancelled", "terminated", terminated)
	return c.ctx.Err()
}

// TimedOut reports whether the call hit its deadline.
func (c *BoundedCall) TimedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timedOut
}

// Terminated returns the pids forcibly reaped by this call, in
// termination order.
func (c *BoundedCall) Terminated() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// End closes the call and performs the tail sweep. Idempotent.
func (c *BoundedCall) End() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.mu.Unlock()

	c.cancel()
	c.scope.close()
	c.sup.retire(c.scope)
	c.sup.Sweep()
}
