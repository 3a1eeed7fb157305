package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/wikiexport/internal/crawler"
	"github.com/nao1215/wikiexport/internal/model"
)

// ErrSeedUnreachable is returned when the seed URL fails with a network
// error, including a robots.txt fetch that never reached the host in strict
// mode. No other per-page failure ends a run.
var ErrSeedUnreachable = errors.New("seed URL is unreachable")

// Queue is the frontier as seen by the runner. *crawler.Frontier implements it.
type Queue interface {
	Dequeue() (crawler.Entry, bool)
	Accepted() int
	Pending() int
	LimitReached() bool
}

// Recorder stores page outcomes, typically in the history database.
// Recording failures are logged and never stop a crawl.
type Recorder interface {
	RecordPage(ctx context.Context, runID int64, result model.PageResult) error
}

// Finisher completes the output once the loop ends and returns the number
// of files it rewrote. *output.Writer implements it.
type Finisher interface {
	Finish(ctx context.Context) (int, error)
}

// Runner drives the crawl: it takes URLs from the frontier one at a time,
// runs the page pipeline on each and classifies the result.
type Runner struct {
	pipeline  *Pipeline
	queue     Queue
	recorder  Recorder
	runID     int64
	finisher  Finisher
	outputDir string
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder records every page outcome under runID.
func WithRecorder(rec Recorder, runID int64) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
		r.runID = runID
	}
}

// WithFinisher sets the output finisher called after the loop.
func WithFinisher(f Finisher) RunnerOption {
	return func(r *Runner) {
		r.finisher = f
	}
}

// WithOutputDir sets the directory reported in the summary.
func WithOutputDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.outputDir = dir
	}
}

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner for the given pipeline and frontier.
func NewRunner(p *Pipeline, queue Queue, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: p,
		queue:    queue,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run crawls until the frontier is empty, the page limit is reached or ctx
// is cancelled. Cancellation is not an error: the summary is marked
// interrupted and the output is still finished.
//
// A returned error is fatal: ErrSeedUnreachable, or a *model.IOError from
// the output. The summary is returned alongside it with the counts so far.
func (r *Runner) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := model.NewRunSummary("", r.outputDir)
	summary.RunID = r.runID
	r.logger.Debug("crawl started", "run_id", r.runID, "steps", r.pipeline.StepNames())

	for {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		entry, ok := r.queue.Dequeue()
		if !ok {
			break
		}
		if entry.Seed {
			summary.SeedURL = entry.URL
		}

		job := model.NewPageJob(entry.URL, entry.Order, entry.Seed)
		err := r.pipeline.Execute(ctx, job)

		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			r.logger.Info("crawl interrupted", "url", job.URL)
			summary.Interrupted = true
			// The page file and manifest line exist once the record is set.
			if job.Record != nil {
				r.complete(ctx, summary, model.NewPageResult(job, nil))
			}
			break
		}

		var ioErr *model.IOError
		if errors.As(err, &ioErr) {
			return r.fail(summary, err)
		}
		if job.Seed && isNetworkError(err) {
			return r.fail(summary, fmt.Errorf("%w: %w", ErrSeedUnreachable, err))
		}

		r.complete(ctx, summary, model.NewPageResult(job, err))
	}

	summary.Discovered = r.queue.Accepted()
	summary.LimitReached = r.queue.LimitReached() && r.queue.Pending() > 0

	if r.finisher != nil {
		relinked, err := r.finisher.Finish(context.WithoutCancel(ctx))
		if err != nil {
			return r.fail(summary, err)
		}
		summary.Relinked = relinked
	}

	summary.EndedAt = time.Now()
	r.logger.Info("crawl finished",
		"status", summary.Status(),
		"attempted", summary.Attempted,
		"written", summary.Written,
		"skipped", summary.TotalSkipped(),
		"relinked", summary.Relinked,
		"elapsed", summary.Elapsed().Round(time.Millisecond),
	)
	return summary, nil
}

// fail ends the run with a fatal error.
func (r *Runner) fail(summary *model.RunSummary, err error) (*model.RunSummary, error) {
	summary.EndedAt = time.Now()
	summary.Discovered = r.queue.Accepted()
	summary.Error = err.Error()
	r.logger.Error("crawl failed", "error", err)
	return summary, err
}

// complete counts, records and logs one page outcome.
func (r *Runner) complete(ctx context.Context, summary *model.RunSummary, result model.PageResult) {
	summary.Add(result)
	r.record(ctx, result)
	r.logResult(result)
}

func (r *Runner) record(ctx context.Context, result model.PageResult) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordPage(context.WithoutCancel(ctx), r.runID, result); err != nil {
		r.logger.Warn("failed to record page outcome", "url", result.URL, "error", err)
	}
}

func (r *Runner) logResult(result model.PageResult) {
	if result.Outcome == model.OutcomeWritten {
		r.logger.Info("page written", "url", result.URL, "file", result.Filename)
		return
	}
	r.logger.Warn("page skipped",
		"url", result.URL,
		"outcome", string(result.Outcome),
		"error", result.Error,
	)
}

// isNetworkError reports whether err is a fetch failure of kind network,
// or a strict robots.txt denial caused by an unreachable host.
func isNetworkError(err error) bool {
	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return fetchErr.Kind == model.FetchNetwork || errors.Is(fetchErr, crawler.ErrRobotsUnreachable)
}
