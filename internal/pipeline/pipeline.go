package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/wikiexport/internal/log"
	"github.com/nao1215/wikiexport/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the job as filled in by
// the steps before it.
type Step interface {
	// Do executes the pipeline step.
	// A returned error ends processing of this page; later steps are skipped.
	Do(ctx context.Context, job *model.PageJob) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs the per-page steps for one frontier entry at a time.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:  make([]Step, 0),
		logger: log.NewDiscardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order and stops at the first error, which is
// returned unchanged so callers can classify it with errors.As.
//
// Cancellation is checked before each step; a step that is already running
// is expected to honor ctx itself.
func (p *Pipeline) Execute(ctx context.Context, job *model.PageJob) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Debug("pipeline cancelled",
				"step", step.Name(),
				"url", job.URL,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		if err := step.Do(ctx, job); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"url", job.URL,
				"error", err,
			)
			return err
		}

		job.StepsDone = append(job.StepsDone, step.Name())
	}

	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
