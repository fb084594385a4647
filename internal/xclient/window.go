package xclient

import "time"

// The counts endpoint rejects end_time values too close to the present.
const endTimeBackoff = 30 * time.Second

// providerTimeLayout is RFC3339 at second precision with a literal Z.
const providerTimeLayout = "2006-01-02T15:04:05Z"

// CountWindow returns the 24h window ending 30s before now, at second precision.
func CountWindow(now time.Time) (start, end time.Time) {
	end = now.UTC().Add(-endTimeBackoff).Truncate(time.Second)
	start = end.Add(-24 * time.Hour)
	return start, end
}

// FormatProviderTime renders t in the provider's strict timestamp format.
func FormatProviderTime(t time.Time) string {
	return t.UTC().Format(providerTimeLayout)
}
