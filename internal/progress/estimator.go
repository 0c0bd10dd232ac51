// Package progress drives the locally-simulated progress display for a
// running generation job. The service exposes no incremental progress, so the
// phase sequence here is advisory: it never decides success or failure.
package progress

import (
	"context"
	"time"
)

// Phase is one named, ordered stage of the simulated progress display.
type Phase struct {
	Index             int
	Name              string
	EstimatedDuration time.Duration
}

// DefaultPhases is the nominal phase table. The total (~105s) is deliberately
// independent of the wall-clock timeout that actually bounds a session.
func DefaultPhases() []Phase {
	return []Phase{
		{Index: 0, Name: "init", EstimatedDuration: 5 * time.Second},
		{Index: 1, Name: "analyze", EstimatedDuration: 30 * time.Second},
		{Index: 2, Name: "evaluate", EstimatedDuration: 24 * time.Second},
		{Index: 3, Name: "draft", EstimatedDuration: 30 * time.Second},
		{Index: 4, Name: "qa", EstimatedDuration: 16 * time.Second},
	}
}

// Options configures an Estimator. Zero values fall back to the defaults
// (the standard phase table, 2.5s sub-ticks, 5 minute timeout).
type Options struct {
	Phases  []Phase
	Tick    time.Duration
	Timeout time.Duration
}

// Estimator walks the phase table in order and maps elapsed time onto a
// plausible phase for resumed sessions.
type Estimator struct {
	phases  []Phase
	tick    time.Duration
	timeout time.Duration
}

// NewEstimator constructs an estimator with sane defaults.
func NewEstimator(opts Options) *Estimator {
	phases := opts.Phases
	if len(phases) == 0 {
		phases = DefaultPhases()
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = 2500 * time.Millisecond
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Estimator{phases: phases, tick: tick, timeout: timeout}
}

// Phases returns the configured phase table.
func (e *Estimator) Phases() []Phase {
	return e.phases
}

// FinalPhase returns the index of the last phase, which corresponds to job
// completion.
func (e *Estimator) FinalPhase() int {
	return len(e.phases) - 1
}

// Run advances through the phases in order, invoking onPhaseChange at the
// start of each phase. Sleeps happen in small sub-ticks so cancellation is
// observed promptly; the method returns as soon as ctx is done or the table
// is exhausted, whichever comes first.
func (e *Estimator) Run(ctx context.Context, onPhaseChange func(int)) {
	for _, phase := range e.phases {
		if ctx.Err() != nil {
			return
		}
		if onPhaseChange != nil {
			onPhaseChange(phase.Index)
		}
		remaining := phase.EstimatedDuration
		for remaining > 0 {
			step := e.tick
			if remaining < step {
				step = remaining
			}
			timer := time.NewTimer(step)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			remaining -= step
		}
	}
}

// EstimatePhaseFromElapsed picks a plausible phase for a resumed session by
// partitioning elapsed time against the overall timeout. A session resumed a
// fifth of the way through its budget lands on phase 1, and anything at or
// past the budget is clamped to the final phase.
func (e *Estimator) EstimatePhaseFromElapsed(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	n := len(e.phases)
	idx := int(elapsed.Milliseconds() * int64(n) / e.timeout.Milliseconds())
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}
