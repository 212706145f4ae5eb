// Package resolve drives strategy cascades: try each tier in order under
// its own budget and an overall ceiling, stop at the first accepted
// result, and report every attempt when nothing works.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fbzone/internal/media"
	"fbzone/internal/strategy"
)

// State is where a resolution is in its cascade.
type State int

const (
	NotStarted State = iota
	Trying
	Succeeded
	Exhausted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Trying:
		return "trying"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DefaultReleaseGrace bounds how long the orchestrator waits for a
// timed-out attempt to unwind before moving on.
const DefaultReleaseGrace = 5 * time.Second

var (
	errStrategyBudget = errors.New("strategy budget exceeded")
	errCeiling        = errors.New("overall budget exceeded")
	errEmptyPayload   = fmt.Errorf("%w: strategy succeeded without a result", media.ErrNoMatch)
)

// Attempt records one strategy try.
type Attempt struct {
	ID      string
	Kind    strategy.Kind
	Outcome strategy.Outcome
	Err     error
	Elapsed time.Duration
}

// Run is the state of one cascade.
type Run struct {
	State    State
	Index    int // Strategy being tried, or the one that succeeded
	Winner   string
	Payload  strategy.Payload
	Attempts []Attempt
}

// Orchestrator runs cascades. It holds no per-resolution state and is safe
// for concurrent use.
type Orchestrator struct {
	Extractor    strategy.Extractor
	ReleaseGrace time.Duration
	Logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator. It runs Extractor over the
// markup of identity payloads that carry no candidates.
func NewOrchestrator(ex strategy.Extractor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Extractor: ex, ReleaseGrace: DefaultReleaseGrace, Logger: logger}
}

// Resolve tries chain in order until one strategy's result is accepted.
// ceiling bounds the whole cascade when positive. The returned Run is
// never nil; the error is an *ExhaustedError.
func (o *Orchestrator) Resolve(ctx context.Context, req strategy.Request, chain []strategy.Strategy, ceiling time.Duration) (*Run, error) {
	if ceiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ceiling)
		defer cancel()
	}

	run := &Run{State: NotStarted}
	for i, s := range chain {
		if ctx.Err() != nil {
			return run, o.exhaust(req.Goal, run, false, true)
		}

		run.State, run.Index = Trying, i
		o.Logger.Debug("strategy start", "goal", req.Goal, "strategy", s.ID(), "kind", s.Kind())

		start := time.Now()
		res := o.attempt(ctx, s, req)
		if res.Outcome == strategy.Success {
			res = o.accept(req.Goal, res)
		}
		elapsed := time.Since(start)
		run.Attempts = append(run.Attempts, Attempt{
			ID:      s.ID(),
			Kind:    s.Kind(),
			Outcome: res.Outcome,
			Err:     res.Err,
			Elapsed: elapsed,
		})
		o.Logger.Debug("strategy done", "strategy", s.ID(), "outcome", res.Outcome, "elapsed", elapsed, "err", res.Err)

		switch res.Outcome {
		case strategy.Success:
			run.State, run.Winner, run.Payload = Succeeded, s.ID(), res.Payload
			return run, nil
		case strategy.HardFailure:
			return run, o.exhaust(req.Goal, run, true, false)
		}

		if ctx.Err() != nil {
			return run, o.exhaust(req.Goal, run, false, true)
		}
	}
	return run, o.exhaust(req.Goal, run, false, false)
}

// attempt runs one strategy under its budget. A strategy that overruns
// is given ReleaseGrace to unwind so its resources are gone before the
// next tier starts.
func (o *Orchestrator) attempt(parent context.Context, s strategy.Strategy, req strategy.Request) strategy.Result {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if b := s.Budget(); b > 0 {
		ctx, cancel = context.WithTimeout(parent, b)
	}
	defer cancel()

	done := make(chan strategy.Result, 1)
	go func() {
		done <- strategy.Safe(ctx, s, req)
	}()

	select {
	case res := <-done:
		if res.Outcome == strategy.SoftFailure && ctx.Err() != nil {
			return o.overrun(parent, s, res.Err)
		}
		return res
	case <-ctx.Done():
	}

	cancel()
	grace := o.ReleaseGrace
	if grace <= 0 {
		grace = DefaultReleaseGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case res := <-done:
		if res.Outcome == strategy.Success {
			discard(res.Payload)
		}
		return o.overrun(parent, s, res.Err)
	case <-timer.C:
		o.Logger.Warn("strategy did not release after cancellation", "strategy", s.ID(), "grace", grace)
		return o.overrun(parent, s, nil)
	}
}

func (o *Orchestrator) overrun(parent context.Context, s strategy.Strategy, cause error) strategy.Result {
	reason := errStrategyBudget
	if parent.Err() != nil {
		reason = errCeiling
	}
	err := media.Network(fmt.Errorf("%s: %w", s.ID(), reason))
	if cause != nil {
		err = errors.Join(err, cause)
	}
	return strategy.Soft(err)
}

// accept applies the goal's acceptance rule to a successful attempt.
func (o *Orchestrator) accept(goal media.Goal, res strategy.Result) strategy.Result {
	p := res.Payload
	if goal == media.Identity {
		if p.Candidates == nil && p.Markup != "" && o.Extractor != nil {
			p.Candidates = o.Extractor.Extract(p.Markup)
		}
		if len(p.Candidates) == 0 {
			return strategy.Soft(fmt.Errorf("%w: no identity candidates", media.ErrNoMatch))
		}
		res.Payload = p
		return res
	}
	if p.Asset == nil && p.URL == "" {
		return strategy.Soft(errEmptyPayload)
	}
	return res
}

func (o *Orchestrator) exhaust(goal media.Goal, run *Run, aborted, timedOut bool) error {
	run.State = Exhausted
	err := &ExhaustedError{Goal: goal, Attempts: run.Attempts, Aborted: aborted, TimedOut: timedOut}
	o.Logger.Warn("resolution exhausted", "goal", goal, "attempts", err.IDs(), "aborted", aborted, "timed_out", timedOut)
	return err
}

// discard drops an asset produced by an attempt whose result came too late.
func discard(p strategy.Payload) {
	if p.Asset != nil {
		_ = p.Asset.Close()
		_ = os.Remove(p.Asset.Path)
	}
}
