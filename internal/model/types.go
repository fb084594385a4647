package model

import "time"

// User represents the subset of X user fields pokewatch reads.
type User struct {
	ID             string
	Username       string
	Name           string
	CreatedAt      time.Time
	Verified       bool
	FollowersCount int
	FollowingCount int
	TweetCount     int
	ListedCount    int
}

// Tweet represents a subset of X tweet fields used for daily summaries.
type Tweet struct {
	ID           string
	AuthorID     string
	Text         string
	CreatedAt    time.Time
	LikeCount    int
	ReplyCount   int
	RetweetCount int
	QuoteCount   int
	Language     string
}

// PeriodLast24h labels counts taken over the trailing day window.
const PeriodLast24h = "last_24h"

// TweetCountResult is one reading of the counts endpoint. It is never cached.
type TweetCountResult struct {
	Username    string    `json:"username"`
	UserID      string    `json:"user_id"`
	Count       int       `json:"count"`
	Period      string    `json:"period"`
	Timestamp   time.Time `json:"timestamp"`
	CallsUsed   int       `json:"calls_used"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// TweetMetrics is a tweet as it appears in a daily summary.
type TweetMetrics struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"likes"`
	Retweets  int       `json:"retweets"`
	Replies   int       `json:"replies"`
	Quotes    int       `json:"quotes"`
}

// Engagement is the sum of all public interaction counters.
func (t TweetMetrics) Engagement() int {
	return t.Likes + t.Retweets + t.Replies + t.Quotes
}

// Totals aggregates engagement across a day of tweets.
type Totals struct {
	Likes      int `json:"total_likes"`
	Retweets   int `json:"total_retweets"`
	Replies    int `json:"total_replies"`
	Quotes     int `json:"total_quotes"`
	Engagement int `json:"total_engagement"`
}

// DailySummary is either an error marker (Error set) or a metrics record.
type DailySummary struct {
	Username   string         `json:"username"`
	Date       string         `json:"date"`
	TweetCount int            `json:"tweet_count"`
	Totals     Totals         `json:"metrics"`
	TopTweet   *TweetMetrics  `json:"top_tweet,omitempty"`
	Tweets     []TweetMetrics `json:"tweets,omitempty"`
	Error      string         `json:"error,omitempty"`
}
