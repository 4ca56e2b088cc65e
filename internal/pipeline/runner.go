// Package pipeline runs an ordered list of steps over a shared state value.
// Both decision cycles are built from it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// ErrHalt stops a pipeline early without reporting a failure. A step returns
// it when the state already holds a terminal outcome.
var ErrHalt = errors.New("pipeline halted")

// StepError reports which step stopped a pipeline.
type StepError struct {
	Index int
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %d (%s) failed: %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the name of the step that produced err, or "" when err
// did not come from a pipeline.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// Step is a single stage executed against state S.
type Step[S any] interface {
	Name() string
	Execute(ctx context.Context, state *S) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc[S any] struct {
	StepName string
	Fn       func(ctx context.Context, state *S) error
}

// Name returns the step name.
func (f StepFunc[S]) Name() string { return f.StepName }

// Execute calls the wrapped function.
func (f StepFunc[S]) Execute(ctx context.Context, state *S) error { return f.Fn(ctx, state) }

// Pipeline executes steps sequentially.
type Pipeline[S any] struct {
	steps []Step[S]
}

// New creates a pipeline from the given steps.
func New[S any](steps ...Step[S]) *Pipeline[S] {
	return &Pipeline[S]{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline[S]) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs every step in order. It stops at the first error; ErrHalt
// ends the run and is reported as success.
func (p *Pipeline[S]) Execute(ctx context.Context, state *S) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i + 1, Step: step.Name(), Err: fmt.Errorf("cancelled: %w", err)}
		}

		start := time.Now()
		err := step.Execute(ctx, state)
		log.Debug().
			Str("step", step.Name()).
			Dur("duration", time.Since(start)).
			Msg("Pipeline step finished")

		if errors.Is(err, ErrHalt) {
			log.Debug().Str("step", step.Name()).Msg("Pipeline halted")
			return nil
		}
		if err != nil {
			return &StepError{Index: i + 1, Step: step.Name(), Err: err}
		}
	}
	return nil
}
