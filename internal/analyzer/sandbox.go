// ABOUTME: Sandbox runtime abstraction for bounded analysis execution
// ABOUTME: Fuel metering, memory ceiling, and deadline enforcement for untrusted input

package analyzer

import (
	"context"
	"errors"
	"time"
)

// Resource-bound errors. All of them mean "stop cleanly and keep whatever
// partial signal was computed", never a crash.
var (
	// ErrFuelExhausted means the step budget was consumed.
	ErrFuelExhausted = errors.New("sandbox: fuel exhausted")

	// ErrMemoryLimit means the memory ceiling was hit.
	ErrMemoryLimit = errors.New("sandbox: memory limit exceeded")

	// ErrDeadline means the wall-clock deadline expired.
	ErrDeadline = errors.New("sandbox: deadline exceeded")

	// ErrAbandoned means the task ignored its deadline and its goroutine
	// was abandoned. Partial task state is NOT safe to read.
	ErrAbandoned = errors.New("sandbox: task abandoned after deadline")
)

// Budget bounds one sandboxed execution. Any zero field falls back to the
// corresponding default.
type Budget struct {
	// Fuel is the instruction/step budget, independent of wall-clock time.
	Fuel int64

	// MemoryLimit caps bytes the task may account via Meter.Grow.
	MemoryLimit int64

	// Timeout is the wall-clock bound for the execution.
	Timeout time.Duration
}

// Budget defaults.
const (
	DefaultFuel        = 64 << 20 // steps
	DefaultMemoryLimit = 32 << 20 // bytes
	DefaultTimeout     = 100 * time.Millisecond
)

func (b Budget) withDefaults() Budget {
	if b.Fuel <= 0 {
		b.Fuel = DefaultFuel
	}
	if b.MemoryLimit <= 0 {
		b.MemoryLimit = DefaultMemoryLimit
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultTimeout
	}
	return b
}

// deadlineCheckInterval is how many fuel charges pass between wall-clock
// checks. Checking time.Now on every step would dominate the scan.
const deadlineCheckInterval = 4096

// Meter is handed to a sandboxed task to account its resource consumption.
// The task must call Burn on every unit of work; a task that stops burning
// fuel stops being bounded.
type Meter struct {
	fuel       int64
	mem        int64
	memLimit   int64
	deadline   time.Time
	sinceCheck int64
	cancelled  <-chan struct{}
}

// Burn charges n fuel steps, returning a resource error once any bound is
// exceeded. Tasks must treat a non-nil return as an abort signal.
func (m *Meter) Burn(n int64) error {
	m.fuel -= n
	if m.fuel < 0 {
		return ErrFuelExhausted
	}

	m.sinceCheck += n
	if m.sinceCheck >= deadlineCheckInterval {
		m.sinceCheck = 0
		if !m.deadline.IsZero() && time.Now().After(m.deadline) {
			return ErrDeadline
		}
		select {
		case <-m.cancelled:
			return ErrDeadline
		default:
		}
	}
	return nil
}

// Grow accounts n bytes of task memory against the ceiling.
func (m *Meter) Grow(n int64) error {
	m.mem += n
	if m.mem > m.memLimit {
		return ErrMemoryLimit
	}
	return nil
}

// Remaining returns the unburned fuel, for diagnostics.
func (m *Meter) Remaining() int64 {
	if m.fuel < 0 {
		return 0
	}
	return m.fuel
}

// Sandbox provides bounded, isolated execution of analysis code against
// raw bytes. The pipeline depends only on this interface, not on a
// specific sandbox technology.
type Sandbox interface {
	// Run executes task under budget. It returns nil on clean completion,
	// a resource error (ErrFuelExhausted, ErrMemoryLimit, ErrDeadline) on
	// a bound being hit, or the task's own error.
	Run(ctx context.Context, budget Budget, task func(m *Meter) error) error
}

// meteredSandbox is the in-process sandbox: cooperative fuel metering plus
// a supervising timer for forced abandonment. A task that honors its Meter
// aborts on its own; one that does not is abandoned at the deadline and
// unwinds at its next Burn.
type meteredSandbox struct{}

// NewMeteredSandbox creates the in-process metered sandbox.
func NewMeteredSandbox() Sandbox {
	return meteredSandbox{}
}

func (meteredSandbox) Run(ctx context.Context, budget Budget, task func(m *Meter) error) error {
	budget = budget.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, budget.Timeout)
	defer cancel()

	m := &Meter{
		fuel:      budget.Fuel,
		memLimit:  budget.MemoryLimit,
		deadline:  time.Now().Add(budget.Timeout),
		cancelled: ctx.Done(),
	}

	done := make(chan error, 1)
	go func() {
		done <- task(m)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	// Grace window: a task honoring its Meter observes the cancellation
	// within deadlineCheckInterval steps. Waiting for it keeps partial
	// results safe to read after Run returns.
	grace := time.NewTimer(abandonGrace)
	defer grace.Stop()
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		return ErrDeadline
	case <-grace.C:
		return ErrAbandoned
	}
}

// abandonGrace is how long Run waits after the deadline for a task to
// notice cancellation before abandoning its goroutine outright.
const abandonGrace = 20 * time.Millisecond
