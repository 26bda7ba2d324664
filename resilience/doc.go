// Package resilience provides the retry and concurrency-limiting primitives
// used by the stage executor and the job scheduler.
//
//   - Retry: bounded attempts with deterministic exponential backoff
//   - Bulkhead: non-blocking slot accounting for concurrency caps
//
//	out, err := resilience.Retry(ctx, resilience.RetryConfig{
//	    MaxAttempts:    3,
//	    InitialBackoff: time.Second,
//	    BackoffFactor:  2,
//	}, func(ctx context.Context, attempt int) ([]Row, error) {
//	    return handler.Handle(ctx, input)
//	})
package resilience
