package domain

import "time"

// Breaker status values.
const (
	BreakerClosed   = "CLOSED"
	BreakerOpen     = "OPEN"
	BreakerHalfOpen = "HALF_OPEN"
)

// BreakerState is the durable circuit-breaker snapshot. Persisted on every
// mutation and reloaded at startup so a restart resumes where it left off.
type BreakerState struct {
	Status              string
	ConsecutiveFailures int
	DailyLossSOL        float64
	DailyTrades         int
	NextAttemptAt       time.Time
	DayStartedAt        time.Time
}
