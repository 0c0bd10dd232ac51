// Package orchestrator owns the lifecycle of one generation session: it
// starts the remote job, persists the session record, races the cosmetic
// progress simulation against the authoritative polling loop, re-attaches to
// an interrupted session after a restart, and finalizes exactly once.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"scriptgen/internal/domain"
	"scriptgen/internal/infra"
	"scriptgen/internal/progress"
	"scriptgen/internal/session"
)

// State enumerates the orchestrator lifecycle states.
type State int

const (
	StateIdle State = iota
	StateInitiating
	StateResuming
	StateRunning
	StateCompleted
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiating:
		return "initiating"
	case StateResuming:
		return "resuming"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Events is the observer contract the orchestrator reports through. The
// orchestrator never renders or navigates; callers subscribe and decide what
// to do with each signal. Exactly one of Completed/Failed fires per session.
type Events interface {
	PhaseChanged(index int)
	Completed(result json.RawMessage)
	Failed(err error)
}

// NopEvents discards all events. Embed it to implement only part of Events.
type NopEvents struct{}

func (NopEvents) PhaseChanged(int)          {}
func (NopEvents) Completed(json.RawMessage) {}
func (NopEvents) Failed(error)              {}

// Poller is the remote-service contract the orchestrator drives. Satisfied
// by api.Client.
type Poller interface {
	Initiate(ctx context.Context, mode domain.Mode, payload json.RawMessage) (string, error)
	CheckStatus(ctx context.Context, jobID string) (domain.JobStatus, error)
	PollUntilDone(ctx context.Context, jobID string, interval time.Duration, maxAttempts int) (domain.JobStatus, error)
}

// Options configures an Orchestrator.
type Options struct {
	Poller    Poller
	Store     session.Store
	Events    Events
	Estimator *progress.Estimator
	Interval  time.Duration
	Timeout   time.Duration
	Logger    *infra.Logger
}

// Orchestrator is the session state machine. One instance manages at most
// one session; the persisted slot enforces the single-session invariant
// across instances and restarts.
type Orchestrator struct {
	poller    Poller
	store     session.Store
	events    Events
	estimator *progress.Estimator
	interval  time.Duration
	timeout   time.Duration
	logger    *infra.Logger

	mu        sync.Mutex
	state     State
	lastPhase int
	finalized bool
}

// New constructs an orchestrator with sane defaults: 5s poll interval,
// 5 minute wall-clock budget, the standard phase table.
func New(opts Options) (*Orchestrator, error) {
	if opts.Poller == nil {
		return nil, errors.New("orchestrator: poller is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: session store is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = progress.NewEstimator(progress.Options{Timeout: timeout})
	}
	events := opts.Events
	if events == nil {
		events = NopEvents{}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		poller:    opts.Poller,
		store:     opts.Store,
		events:    events,
		estimator: estimator,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		state:     StateIdle,
		lastPhase: -1,
	}, nil
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start initiates a new generation job and waits for its terminal outcome.
// Starting while a live session exists is a caller error. If initiation
// itself fails, nothing is ever persisted.
func (o *Orchestrator) Start(ctx context.Context, mode domain.Mode, payload json.RawMessage) error {
	if o.State() != StateIdle {
		return domain.ErrSessionActive
	}
	existing, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrSessionActive
	}

	o.setState(StateInitiating)
	jobID, err := o.poller.Initiate(ctx, mode, payload)
	if err != nil {
		return o.finalizeFailed(ctx, err, false)
	}

	sess := domain.GenerationSession{
		JobID:        jobID,
		StartTime:    time.Now(),
		Mode:         mode,
		FormSnapshot: payload,
	}
	if err := o.store.Persist(ctx, sess); err != nil {
		// The job is already running remotely; losing durability only means
		// the session cannot be resumed after a crash.
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("orchestrator: session persist failed")
	}
	o.logger.Info().Str("job_id", jobID).Str("mode", string(mode)).Msg("orchestrator: job started")

	return o.run(ctx, sess, o.attemptBudget(o.timeout))
}

// Resume re-attaches to a stored session if one is live. It reports whether
// a session was found; when found, the returned error is the session's
// terminal outcome (nil for success), exactly as for Start.
func (o *Orchestrator) Resume(ctx context.Context) (bool, error) {
	if o.State() != StateIdle {
		return false, domain.ErrSessionActive
	}
	sess, err := o.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}

	o.setState(StateResuming)
	elapsed := sess.Elapsed(time.Now())
	o.emitPhase(o.estimator.EstimatePhaseFromElapsed(elapsed))
	o.logger.Info().
		Str("job_id", sess.JobID).
		Dur("elapsed", elapsed).
		Msg("orchestrator: resuming session")

	// One immediate check: the job may have finished while we were away.
	status, err := o.poller.CheckStatus(ctx, sess.JobID)
	if err != nil {
		return true, o.finalizeFailed(ctx, err, true)
	}
	switch status.State {
	case domain.JobStateCompleted:
		return true, o.finalizeCompleted(ctx, status.Result)
	case domain.JobStateFailed:
		return true, o.finalizeFailed(ctx, &domain.ServerFailure{Message: status.Reason}, true)
	}

	attempts := o.attemptBudget(o.timeout - elapsed)
	if attempts <= 0 {
		return true, o.finalizeFailed(ctx, &domain.TimeoutError{}, true)
	}
	return true, o.run(ctx, *sess, attempts)
}

// Dismiss drops the stored session without contacting the service. The
// remote job is fire-and-forget; a dismissed job simply stops being observed.
func (o *Orchestrator) Dismiss(ctx context.Context) error {
	sess, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return domain.ErrNoSession
	}
	o.logger.Info().Str("job_id", sess.JobID).Msg("orchestrator: session dismissed")
	return o.store.Clear(ctx)
}

// run races the cosmetic progress simulation against the authoritative
// polling loop. The first terminal outcome wins; the estimator has no say
// and is cancelled the moment polling returns.
func (o *Orchestrator) run(ctx context.Context, sess domain.GenerationSession, attempts int) error {
	o.setState(StateRunning)

	runCtx, cancel := context.WithDeadline(ctx, sess.StartTime.Add(o.timeout))
	defer cancel()

	estCtx, stopEstimator := context.WithCancel(runCtx)
	estDone := make(chan struct{})
	go func() {
		defer close(estDone)
		o.estimator.Run(estCtx, o.emitPhase)
	}()

	status, err := o.poller.PollUntilDone(runCtx, sess.JobID, o.interval, attempts)
	stopEstimator()
	<-estDone

	switch {
	case errors.Is(err, context.Canceled):
		// Caller cancellation is not an outcome: stop observing and leave
		// the session in place so a later run can resume it.
		return err
	case err != nil:
		return o.finalizeFailed(ctx, err, true)
	case status.State == domain.JobStateFailed:
		return o.finalizeFailed(ctx, &domain.ServerFailure{Message: status.Reason}, true)
	default:
		return o.finalizeCompleted(ctx, status.Result)
	}
}

func (o *Orchestrator) finalizeCompleted(ctx context.Context, result json.RawMessage) error {
	o.mu.Lock()
	if o.finalized {
		o.mu.Unlock()
		return nil
	}
	o.finalized = true
	o.state = StateCompleted
	o.mu.Unlock()

	o.clearStore(ctx)
	o.emitPhase(o.estimator.FinalPhase())
	o.logger.Info().Msg("orchestrator: generation completed")
	o.events.Completed(result)
	return nil
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, cause error, clearStore bool) error {
	o.mu.Lock()
	if o.finalized {
		o.mu.Unlock()
		return cause
	}
	o.finalized = true
	var timedOut *domain.TimeoutError
	if errors.As(cause, &timedOut) {
		o.state = StateTimedOut
	} else {
		o.state = StateFailed
	}
	o.mu.Unlock()

	if clearStore {
		o.clearStore(ctx)
	}
	o.logger.Warn().Err(cause).Str("state", o.State().String()).Msg("orchestrator: generation failed")
	o.events.Failed(cause)
	return cause
}

func (o *Orchestrator) clearStore(ctx context.Context) {
	// The surrounding context may already be past its deadline; clearing the
	// slot must still happen.
	if err := o.store.Clear(context.WithoutCancel(ctx)); err != nil {
		o.logger.Error().Err(err).Msg("orchestrator: failed to clear session slot")
	}
}

// emitPhase forwards a phase index to the observer, keeping the exposed
// sequence monotonically non-decreasing.
func (o *Orchestrator) emitPhase(idx int) {
	o.mu.Lock()
	if idx <= o.lastPhase {
		o.mu.Unlock()
		return
	}
	o.lastPhase = idx
	o.mu.Unlock()
	o.events.PhaseChanged(idx)
}

func (o *Orchestrator) attemptBudget(remaining time.Duration) int {
	return int(remaining / o.interval)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
