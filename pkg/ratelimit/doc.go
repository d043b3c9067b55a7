// Package ratelimit paces calls to the photo search API so a long-running
// extraction stays inside the per-key query budget.
//
// Available Implementations:
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Used to enforce the hourly query budget (see NewHourlyBudget)
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Suitable for bursty access patterns
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait(ctx) error - Block until a request is allowed or ctx is cancelled
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	limiter := ratelimit.NewHourlyBudget(3600)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled while waiting
//	}
//	// proceed with the query
package ratelimit
