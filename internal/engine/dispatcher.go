package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// OutcomeKind classifies how a task's pipeline ended.
type OutcomeKind int

const (
	// KindSuccess means the process function returned a non-nil value.
	KindSuccess OutcomeKind = iota
	// KindFailure means retries were exhausted with a terminal error.
	KindFailure
	// KindVoided means the process function returned (nil, nil): the
	// record is intentionally dropped, neither success nor failure.
	KindVoided
)

// Outcome is what the dispatcher emits once a task's pipeline
// completes. Outcomes are observed in completion order, not
// submission order.
type Outcome struct {
	Kind    OutcomeKind
	Success Record
	Failure FailureRecord
}

// DispatcherConfig bounds a single Dispatch run.
type DispatcherConfig struct {
	Concurrency int
	IDKey       string
	Retry       RetryPolicy
	Limiter     *RateLimiter
}

// Dispatch runs process against every task under a concurrency bound
// of cfg.Concurrency, with cfg.Limiter consulted and cfg.Retry applied
// on every attempt: rate limiting sits inside retry, so every retry
// attempt also consumes a rate-limit slot, preventing retries from
// stampeding past the cap. The returned channel is closed once every
// task has produced an outcome (or, on context cancellation, once all
// in-flight tasks have unwound); callers must drain it to avoid
// leaking the goroutines feeding it.
func Dispatch(ctx context.Context, log *zap.SugaredLogger, tasks []Record, process ProcessFunc, ectx *Context, cfg DispatcherConfig) <-chan Outcome {
	out := make(chan Outcome, cfg.Concurrency)

	go func() {
		defer close(out)

		concurrency := cfg.Concurrency
		if concurrency < 1 {
			concurrency = 1
		}
		sem := semaphore.NewWeighted(int64(concurrency))
		var wg sync.WaitGroup

		for _, task := range tasks {
			task := task

			if err := sem.Acquire(ctx, 1); err != nil {
				// Context cancelled while queued: the task never
				// started, so it produces no outcome at all.
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()

				operation := func(opCtx context.Context) (Record, error) {
					if cfg.Limiter != nil {
						if err := cfg.Limiter.Wait(opCtx); err != nil {
							return nil, err
						}
					}
					return process(opCtx, task, ectx)
				}

				result, err := cfg.Retry.Execute(ctx, operation)
				sem.Release(1)

				outcome, skip := classify(log, cfg.IDKey, task, result, err)
				if skip {
					return
				}
				// Unconditional send: the consumer drains until close,
				// so a task that completed before noticing cancellation
				// still gets its outcome recorded and flushed.
				out <- outcome
			}()
		}

		wg.Wait()
	}()

	return out
}

// classify turns a process-function result into an Outcome. It
// returns skip=true for a cancelled attempt: cancellation is not a
// task failure, it is the task never completing.
func classify(log *zap.SugaredLogger, idKey string, task Record, result Record, err error) (Outcome, bool) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{}, true
		}
		id := recordID(task, idKey)
		log.Warnw("dispatcher: task failed after retries", "record_id", id, "error", err)
		return Outcome{
			Kind: KindFailure,
			Failure: FailureRecord{
				RecordID:       id,
				ErrorMessage:   err.Error(),
				OriginalRecord: task,
			},
		}, false
	}

	if result == nil {
		return Outcome{Kind: KindVoided}, false
	}

	return Outcome{Kind: KindSuccess, Success: result}, false
}

func recordID(task Record, idKey string) string {
	if v, ok := task[idKey]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return missingIDSentinel
}
