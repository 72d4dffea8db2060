package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker is tuned for web push delivery: a push service
// outage surfaces as a burst of transport errors across many endpoints
// in one tick, so the breaker needs several samples before tripping and
// reopens after half a minute. Gone endpoints are classified by status
// and never count as breaker failures.
func NewCircuitBreaker(nameof string) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        nameof,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}
