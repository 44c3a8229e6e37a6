package providers

import (
	"context"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
)

// instantRetry is the production envelope without the waits.
func instantRetry(delays *[]time.Duration) *service.RetryPolicy {
	var mu sync.Mutex
	return service.NewRetryPolicy(
		service.WithRandSeed(1),
		service.WithSleep(func(_ context.Context, d time.Duration) error {
			if delays != nil {
				mu.Lock()
				*delays = append(*delays, d)
				mu.Unlock()
			}
			return nil
		}),
	)
}
