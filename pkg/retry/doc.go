// Package retry provides backoff and retry logic for transient failures in
// calls to the photo search API.
//
// Basic usage:
//
//	err := retry.Do(ctx, func() error {
//		return client.Ping(ctx)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(ctx, operation, cfg)
//
//	// API retrier with error-type backoff
//	retrier := retry.NewAPIRetrier(3, logger.GetLogger())
//	err := retrier.Do(ctx, func() error {
//		_, err := client.CountPhotos(ctx, query)
//		return err
//	})
//
// Different retryable error types get different delays: network errors get
// quick exponential retries, rate limit responses wait tens of seconds, and
// upstream server errors sit in between. Auth, not-found and invalid-argument
// errors are never retried.
package retry
