package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// RunOptions holds everything the orchestrator needs to execute a
// run. It mirrors the configuration keys without importing the config
// package, keeping engine a leaf dependency.
type RunOptions struct {
	InputFile         string
	OutputFile        string
	ErrorFile         string
	IDKey             string
	RerunKey          string
	MaxConcurrency    int
	RequestsPerMinute int
	WriteBatchSize    int
	MaxRetries        int
	RetryInitialDelay time.Duration
	BackoffFactor     float64
}

// Hooks are the optional lifecycle collaborators invoked at the run's
// boundaries.
type Hooks struct {
	OnStartup  StartupHook
	OnShutdown ShutdownHook

	// NewProgress, if set, is invoked once the attempted-task count is
	// known, and the returned reporter is fed every outcome as it is
	// classified. A nil NewProgress (the default) means no progress
	// reporting.
	NewProgress func(total int) ProgressReporter
}

// RunReport is the final summary emitted at the end of a run.
type RunReport struct {
	Duration       time.Duration
	SkippedCount   int
	AttemptedCount int
	SuccessCount   int
	FailureCount   int
	VoidedCount    int
	OutputFile     string
	ErrorFile      string
}

// Run sequences a full batch run: ensure output directories exist,
// load resume state, select tasks, run startup, construct the shared
// session, dispatch, always run shutdown and close the session, then
// report.
func Run(ctx context.Context, log *zap.SugaredLogger, opts RunOptions, process ProcessFunc, hooks Hooks) (*RunReport, error) {
	for _, path := range []string{opts.OutputFile, opts.ErrorFile} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure output directory for %s: %w", path, err)
		}
	}

	processed, err := LoadProcessedIDs(log, opts.OutputFile, opts.IDKey, opts.RerunKey)
	if err != nil {
		return nil, fmt.Errorf("load resume state: %w", err)
	}

	tasks, err := SelectTasks(log, opts.InputFile, opts.IDKey, processed)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}

	report := &RunReport{
		SkippedCount: len(processed),
		OutputFile:   opts.OutputFile,
		ErrorFile:    opts.ErrorFile,
	}
	if len(tasks) == 0 {
		log.Infow("no new tasks to process", "skipped", report.SkippedCount)
		return report, nil
	}
	report.AttemptedCount = len(tasks)

	start := time.Now()

	var ectx *Context
	if hooks.OnStartup != nil {
		extra, err := hooks.OnStartup(ctx)
		if err != nil {
			return nil, fmt.Errorf("on_startup: %w", err)
		}
		ectx = NewContext(extra)
	} else {
		ectx = NewContext(nil)
	}

	ectx.Session = &http.Client{Timeout: 30 * time.Second}

	func() {
		defer func() {
			if hooks.OnShutdown != nil {
				if err := hooks.OnShutdown(ctx, ectx); err != nil {
					log.Errorw("on_shutdown failed", "error", err)
				}
			}
			ectx.Session.CloseIdleConnections()
		}()

		var progress ProgressReporter
		if hooks.NewProgress != nil {
			progress = hooks.NewProgress(len(tasks))
		}

		success, failure, voided := runDispatchLoop(ctx, log, tasks, process, ectx, opts, progress)
		report.SuccessCount = success
		report.FailureCount = failure
		report.VoidedCount = voided
	}()

	report.Duration = time.Since(start)

	log.Infow("run complete",
		"duration", report.Duration,
		"skipped", report.SkippedCount,
		"attempted", report.AttemptedCount,
		"success", report.SuccessCount,
		"failure", report.FailureCount,
		"voided", report.VoidedCount,
	)

	return report, nil
}

// runDispatchLoop wires C2/C1 through the dispatcher, consumes
// outcomes in completion order, and batches them out to the success
// and failure appenders. It guarantees a final flush of partial
// batches on every exit path, including cancellation, the strongest
// durability guarantee the engine gives.
func runDispatchLoop(ctx context.Context, log *zap.SugaredLogger, tasks []Record, process ProcessFunc, ectx *Context, opts RunOptions, progress ProgressReporter) (success, failure, voided int) {
	successWriter, err := NewAppender(opts.OutputFile)
	if err != nil {
		log.Errorw("failed to open success output", "error", err)
		return
	}
	defer successWriter.Close()

	failureWriter, err := NewAppender(opts.ErrorFile)
	if err != nil {
		log.Errorw("failed to open failure output", "error", err)
		return
	}
	defer failureWriter.Close()

	limiter := NewRateLimiter(opts.RequestsPerMinute)
	if opts.RequestsPerMinute > 0 {
		log.Infow("rate limiting enabled", "requests_per_minute", opts.RequestsPerMinute)
	}

	cfg := DispatcherConfig{
		Concurrency: opts.MaxConcurrency,
		IDKey:       opts.IDKey,
		Limiter:     limiter,
		Retry: RetryPolicy{
			Retries:       opts.MaxRetries,
			InitialDelay:  opts.RetryInitialDelay,
			BackoffFactor: backoffFactorOrDefault(opts.BackoffFactor),
		},
	}

	batchSize := opts.WriteBatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	successBatch := make([]any, 0, batchSize)
	failureBatch := make([]any, 0, batchSize)

	flush := func() {
		if err := successWriter.Append(successBatch); err != nil {
			log.Errorw("failed to write success batch", "error", err)
		}
		successBatch = successBatch[:0]
		if err := failureWriter.Append(failureBatch); err != nil {
			log.Errorw("failed to write failure batch", "error", err)
		}
		failureBatch = failureBatch[:0]
	}
	defer flush()

	if progress != nil {
		defer progress.Finish()
	}

	outcomes := Dispatch(ctx, log, tasks, process, ectx, cfg)
	for outcome := range outcomes {
		switch outcome.Kind {
		case KindSuccess:
			success++
			successBatch = append(successBatch, outcome.Success)
			if len(successBatch) >= batchSize {
				if err := successWriter.Append(successBatch); err != nil {
					log.Errorw("failed to write success batch", "error", err)
				}
				successBatch = successBatch[:0]
			}
			if progress != nil {
				progress.RecordSuccess()
			}
		case KindFailure:
			failure++
			failureBatch = append(failureBatch, outcome.Failure)
			if len(failureBatch) >= batchSize {
				if err := failureWriter.Append(failureBatch); err != nil {
					log.Errorw("failed to write failure batch", "error", err)
				}
				failureBatch = failureBatch[:0]
			}
			if progress != nil {
				progress.RecordFailure()
			}
		case KindVoided:
			voided++
			if progress != nil {
				progress.RecordVoided()
			}
		}
	}

	return success, failure, voided
}

func backoffFactorOrDefault(f float64) float64 {
	if f <= 1 {
		return 2
	}
	return f
}
