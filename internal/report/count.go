package report

import (
	"fmt"
	"strings"
	"time"

	"pokewatch/internal/model"
)

// Tier is the display bucket for a post count.
type Tier int

const (
	TierDormant Tier = iota
	TierSinglePost
	TierActive
)

func (t Tier) String() string {
	switch t {
	case TierDormant:
		return "dormant"
	case TierSinglePost:
		return "single-post"
	default:
		return "active"
	}
}

// ClassifyCount buckets n for presentation only.
func ClassifyCount(n int) Tier {
	switch {
	case n <= 0:
		return TierDormant
	case n == 1:
		return TierSinglePost
	default:
		return TierActive
	}
}

func tierLine(t Tier, n int) string {
	switch t {
	case TierDormant:
		return "😴 Status: dormant, no posts in the last 24 hours"
	case TierSinglePost:
		return "✍️ Status: single-post, one post in the last 24 hours"
	default:
		return fmt.Sprintf("🔥 Status: active, %d posts in the last 24 hours", n)
	}
}

// RenderCount formats a count result with quota consumption as used/limit.
func RenderCount(res model.TweetCountResult, limit int) string {
	var b strings.Builder
	b.WriteString("📊 Tweet Count Report\n\n")
	fmt.Fprintf(&b, "👤 @%s\n", res.Username)
	fmt.Fprintf(&b, "📝 Tweets (%s): %d\n", res.Period, res.Count)
	b.WriteString(tierLine(ClassifyCount(res.Count), res.Count))
	b.WriteString("\n")
	fmt.Fprintf(&b, "🕒 Window: %s → %s\n", res.WindowStart.UTC().Format(time.RFC3339), res.WindowEnd.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "📡 API calls used: %d/%d", res.CallsUsed, limit)
	return b.String()
}
