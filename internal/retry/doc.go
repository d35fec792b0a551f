// Package retry decides whether a failed backend attempt is worth repeating
// and how long to wait before the next one.
//
// Client errors (4xx) are never retried. Transport failures and the
// configured subset of 5xx statuses are. The wait between attempts grows
// exponentially with additive jitter, is capped, and never shrinks within
// one call:
//
//	policy := retry.NewPolicy(retry.Config{
//	    MaxRetries:        2,
//	    InitialBackoff:    500 * time.Millisecond,
//	    MaxBackoff:        5 * time.Second,
//	    Multiplier:        2,
//	    Jitter:            0.2,
//	    RetryableStatuses: []int{500, 502, 503, 504},
//	})
//
//	schedule := policy.NewSchedule()
//	for attempt := 0; ; attempt++ {
//	    status, err := call(ctx)
//	    if attempt >= policy.MaxRetries() || !policy.ShouldRetry(err, status) {
//	        break
//	    }
//	    if err := retry.Wait(ctx, schedule.Next()); err != nil {
//	        break
//	    }
//	}
package retry
