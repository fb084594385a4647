// Package report renders summaries and counts as chat-ready text. Everything
// here is pure: no I/O, deterministic for a given input.
package report

import (
	"fmt"
	"strings"
	"time"

	"pokewatch/internal/model"
	"pokewatch/internal/util"
)

const tweetTextLimit = 100

// Summarize builds a daily summary from fetched tweets. Totals and the top
// tweet are only computed when there is at least one tweet.
func Summarize(username string, date time.Time, tweets []model.Tweet) model.DailySummary {
	s := model.DailySummary{
		Username:   username,
		Date:       date.Format("2006-01-02"),
		TweetCount: len(tweets),
	}
	if len(tweets) == 0 {
		return s
	}
	s.Tweets = make([]model.TweetMetrics, 0, len(tweets))
	for _, t := range tweets {
		tm := model.TweetMetrics{
			ID:        t.ID,
			Text:      util.Truncate(util.NormalizeWhitespace(t.Text), tweetTextLimit),
			CreatedAt: t.CreatedAt,
			Likes:     t.LikeCount,
			Retweets:  t.RetweetCount,
			Replies:   t.ReplyCount,
			Quotes:    t.QuoteCount,
		}
		s.Totals.Likes += tm.Likes
		s.Totals.Retweets += tm.Retweets
		s.Totals.Replies += tm.Replies
		s.Totals.Quotes += tm.Quotes
		s.Tweets = append(s.Tweets, tm)
	}
	s.Totals.Engagement = s.Totals.Likes + s.Totals.Retweets + s.Totals.Replies + s.Totals.Quotes
	s.TopTweet = topTweet(s.Tweets)
	return s
}

// ErrorSummary returns the error-marker variant of a summary.
func ErrorSummary(username string, err error) model.DailySummary {
	return model.DailySummary{Username: username, Error: err.Error()}
}

// topTweet picks the tweet with the highest engagement; first wins on ties.
func topTweet(tweets []model.TweetMetrics) *model.TweetMetrics {
	if len(tweets) == 0 {
		return nil
	}
	best := tweets[0]
	for _, t := range tweets[1:] {
		if t.Engagement() > best.Engagement() {
			best = t
		}
	}
	return &best
}

// Render formats a daily summary.
func Render(s model.DailySummary) string {
	if s.Error != "" {
		return "❌ Error: " + s.Error
	}
	if s.TweetCount == 0 {
		return fmt.Sprintf("📊 Daily Twitter Report - %s\n\n📝 No tweets posted in the last 24 hours", s.Date)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily Twitter Report - %s\n\n", s.Date)
	fmt.Fprintf(&b, "👤 @%s\n", s.Username)
	fmt.Fprintf(&b, "📝 Tweets: %d\n\n", s.TweetCount)
	fmt.Fprintf(&b, "📈 Total Engagement: %d\n", s.Totals.Engagement)
	fmt.Fprintf(&b, "❤️ Likes: %d\n", s.Totals.Likes)
	fmt.Fprintf(&b, "🔄 Retweets: %d\n", s.Totals.Retweets)
	fmt.Fprintf(&b, "💬 Replies: %d\n", s.Totals.Replies)
	fmt.Fprintf(&b, "💭 Quotes: %d", s.Totals.Quotes)

	top := s.TopTweet
	if top == nil {
		top = topTweet(s.Tweets)
	}
	if top != nil {
		fmt.Fprintf(&b, "\n\n🏆 Top Tweet (%d engagements):\n", top.Engagement())
		fmt.Fprintf(&b, "\"%s\"\n", top.Text)
		fmt.Fprintf(&b, "❤️%d 🔄%d 💬%d", top.Likes, top.Retweets, top.Replies)
	}
	return b.String()
}

// RenderError is the textual failure form shared by every report.
func RenderError(err error) string {
	return ErrorPrefix + err.Error()
}

// ErrorPrefix starts every rendered failure.
const ErrorPrefix = "❌ Error: "

// RenderNotification formats a titled notification, optionally urgent.
func RenderNotification(title, message string, urgent bool, now time.Time) string {
	prefix := "📢 "
	if urgent {
		prefix = "🚨 URGENT: "
	}
	return fmt.Sprintf("%s%s\n\n%s\n\n⏰ %s", prefix, title, message, now.Format("2006-01-02 15:04:05"))
}

// RenderReportFailure is the notification sent when a daily report cannot be built.
func RenderReportFailure(err error, now time.Time) string {
	return fmt.Sprintf("❌ Daily Twitter Report Failed\n\nError: %s\nTime: %s", err, now.Format("2006-01-02 15:04:05"))
}
