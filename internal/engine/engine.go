// Package engine simulates execution runs over a case's steps. A run takes
// twice as many ticks as the case has steps: tick k for k <= N decides the
// outcome of step k, and the last tick finalizes the run. At most one run is
// active at any time.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/workbench/internal/casestate"
	"github.com/mesh-intelligence/workbench/pkg/types"
)

// Engine owns the single active execution run.
type Engine struct {
	store     *casestate.Store
	scheduler Scheduler
	outcome   OutcomeFunc
	now       func() time.Time
	interval  time.Duration
	logger    *slog.Logger

	mu  sync.Mutex
	gen uint64
	cur *run
}

// run is the engine's private view of an execution run.
type run struct {
	gen        uint64
	state      types.ExecutionRun
	steps      int
	prevStatus string
	handle     Handle
	done       chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the tick source. The default is TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithOutcome sets the per-step outcome generator.
func WithOutcome(f OutcomeFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.outcome = f
		}
	}
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger for run lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine that records runs in store.
func New(store *casestate.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		scheduler: TickerScheduler{},
		outcome:   SeededOutcome(types.DefaultPassRate, uint64(time.Now().UnixNano())),
		now:       time.Now,
		interval:  types.DefaultInterval,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a run of caseID. Any active run is abandoned first. The
// case's steps are reset to not run and its lifecycle status becomes in
// progress until the run finalizes. A case with no steps finalizes at once
// as passed. Cancelling ctx abandons the run.
func (e *Engine) Start(ctx context.Context, caseID string) (types.ExecutionRun, error) {
	if err := ctx.Err(); err != nil {
		return types.ExecutionRun{}, err
	}
	if _, err := e.store.TestCase(caseID); err != nil {
		return types.ExecutionRun{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur != nil && e.cur.state.Active() {
		e.abandonLocked("replaced")
	}

	steps, err := e.store.EffectiveSteps(caseID)
	if err != nil {
		return types.ExecutionRun{}, err
	}
	for i := range steps {
		steps[i].RunStatus = types.RunStatusNotRun
	}
	if err := e.store.SetSteps(caseID, steps); err != nil {
		return types.ExecutionRun{}, fmt.Errorf("resetting steps: %w", err)
	}
	prev, err := e.store.LifecycleStatus(caseID)
	if err != nil {
		return types.ExecutionRun{}, err
	}
	if err := e.store.SetLifecycleStatus(caseID, types.StatusInProgress); err != nil {
		return types.ExecutionRun{}, err
	}

	e.gen++
	r := &run{
		gen:        e.gen,
		steps:      len(steps),
		prevStatus: prev,
		done:       make(chan struct{}),
		state: types.ExecutionRun{
			RunID:      uuid.Must(uuid.NewV7()).String(),
			CaseID:     caseID,
			State:      types.RunStateActive,
			StartedAt:  e.now(),
			TotalTicks: 2 * len(steps),
		},
	}
	e.cur = r
	e.logger.Info("run started", "case", caseID, "run", r.state.RunID, "steps", r.steps)

	if r.steps == 0 {
		if err := e.finalizeLocked(); err != nil {
			return r.state, err
		}
		return r.state, nil
	}

	gen := r.gen
	r.handle = e.scheduler.Every(e.interval, func() { e.tick(gen) })
	go e.watch(ctx, gen, r.done)
	return r.state, nil
}

// Select abandons the active run if it belongs to a case other than caseID.
func (e *Engine) Select(caseID string) error {
	if !e.store.Catalog().Has(caseID) {
		return fmt.Errorf("%w: %s", types.ErrNotFound, caseID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur != nil && e.cur.state.Active() && e.cur.state.CaseID != caseID {
		e.abandonLocked("selection changed")
	}
	return nil
}

// Cancel abandons the active run. It is a no-op when nothing is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur != nil && e.cur.state.Active() {
		e.abandonLocked("cancelled")
	}
}

// Current returns a snapshot of the latest run, if any.
func (e *Engine) Current() (types.ExecutionRun, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return types.ExecutionRun{}, false
	}
	return e.cur.state, true
}

// Wait blocks until the latest run is no longer active or ctx is done, and
// returns the run as it ended.
func (e *Engine) Wait(ctx context.Context) (types.ExecutionRun, error) {
	e.mu.Lock()
	if e.cur == nil {
		e.mu.Unlock()
		return types.ExecutionRun{}, nil
	}
	done := e.cur.done
	e.mu.Unlock()

	select {
	case <-done:
		r, _ := e.Current()
		return r, nil
	case <-ctx.Done():
		return types.ExecutionRun{}, ctx.Err()
	}
}

// tick advances the run of generation gen. Ticks from a run that is no
// longer current are dropped.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.cur
	if r == nil || r.gen != gen || !r.state.Active() {
		return
	}

	r.state.Ticks++
	k := r.state.Ticks
	if k <= r.steps {
		status := e.outcome(r.state.CaseID, k)
		if err := e.store.UpdateStep(r.state.CaseID, k, types.FieldRunStatus, status); err != nil {
			e.logger.Warn("step outcome not recorded", "case", r.state.CaseID, "step", k, "error", err)
		} else {
			e.logger.Debug("step executed", "case", r.state.CaseID, "step", k, "status", status)
		}
	}
	if r.state.Ticks >= r.state.TotalTicks {
		if err := e.finalizeLocked(); err != nil {
			e.logger.Error("run not recorded", "case", r.state.CaseID, "run", r.state.RunID, "error", err)
		}
	}
}

// watch abandons the run of generation gen when ctx is cancelled first.
func (e *Engine) watch(ctx context.Context, gen uint64, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.cur != nil && e.cur.gen == gen && e.cur.state.Active() {
			e.abandonLocked("context done")
		}
	}
}

// finalizeLocked computes the outcome of the current run and records it.
func (e *Engine) finalizeLocked() error {
	r := e.cur
	if r.handle != nil {
		r.handle.Stop()
	}
	defer close(r.done)

	r.state.FinishedAt = e.now()
	r.state.DurationSeconds = r.state.FinishedAt.Sub(r.state.StartedAt).Seconds()
	r.state.State = types.RunStateFinalized

	steps, err := e.store.EffectiveSteps(r.state.CaseID)
	if err != nil {
		r.state.Outcome = types.OutcomeFailed
		return err
	}
	r.state.Outcome = types.OutcomeOf(steps)
	e.logger.Info("run finalized",
		"case", r.state.CaseID,
		"run", r.state.RunID,
		"outcome", r.state.Outcome,
		"duration", r.state.DurationSeconds,
	)
	return e.store.RecordRun(r.state.CaseID, r.state.Summary())
}

// abandonLocked stops the current run without finalizing it. Step outcomes
// already written stay. A case still in progress returns to its lifecycle
// status from before the run; a status marked by hand during the run is
// kept.
func (e *Engine) abandonLocked(reason string) {
	r := e.cur
	if r.handle != nil {
		r.handle.Stop()
	}
	r.state.State = types.RunStateAbandoned
	r.state.FinishedAt = e.now()
	close(r.done)

	restored, err := e.store.SwapLifecycleStatus(r.state.CaseID, types.StatusInProgress, r.prevStatus)
	if err != nil {
		e.logger.Warn("lifecycle status not restored", "case", r.state.CaseID, "error", err)
	} else if !restored {
		e.logger.Debug("lifecycle status marked during run, keeping it", "case", r.state.CaseID)
	}
	e.logger.Info("run abandoned", "case", r.state.CaseID, "run", r.state.RunID, "reason", reason)
}
