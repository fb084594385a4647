package xclient

import (
	"os"
	"strconv"

	"golang.org/x/time/rate"
)

// newLimiter paces outbound calls. X_API_RPS and X_API_BURST override the
// configured values. This is pacing only; the call budget lives in quota.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 2.0
	}
	if burst <= 0 {
		burst = 10
	}
	if v := os.Getenv("X_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if v := os.Getenv("X_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
