package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"pokewatch/internal/model"
	"pokewatch/internal/quota"
	"pokewatch/internal/report"
)

const DefaultBaseURL = "https://api.twitter.com/2"

// MetricsClient is what the tool surface and the reminder checker use from X.
type MetricsClient interface {
	ResolveIdentifier(ctx context.Context, username string) (string, error)
	GetCountLast24h(ctx context.Context, username string) (model.TweetCountResult, error)
	FormatReport(ctx context.Context, username string) string
}

var _ MetricsClient = (*HTTPClient)(nil)

// Options tunes an HTTPClient. Zero values pick defaults.
type Options struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
	Quota   *quota.Tracker
	Logger  zerolog.Logger
}

// HTTPClient is a bearer-token client for X API v2. It caches handle->id
// lookups for its lifetime and counts every outbound call in its tracker.
// Usernames are passed through as given; callers normalize.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	quota       *quota.Tracker
	log         zerolog.Logger
	nowFn       func() time.Time

	mu      sync.Mutex
	ids     map[string]string
	lookups singleflight.Group
}

func NewHTTPClient(bearerToken string, opts Options) *HTTPClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Quota == nil {
		opts.Quota = quota.NewTracker(quota.Config{}, opts.Logger)
	}
	return &HTTPClient{
		baseURL:     opts.BaseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     newLimiter(opts.RPS, opts.Burst),
		quota:       opts.Quota,
		log:         opts.Logger,
		nowFn:       time.Now,
	}
}

// Configured reports whether a bearer token is present.
func (c *HTTPClient) Configured() bool { return c.bearerToken != "" }

// CallsUsed is the number of outbound calls made by this client.
func (c *HTTPClient) CallsUsed() int { return c.quota.Used() }

// Quota exposes the tracker for status reporting.
func (c *HTTPClient) Quota() *quota.Tracker { return c.quota }

func (c *HTTPClient) auth(req *http.Request) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	req.Header.Set("Accept", "application/json")
}

// ResolveIdentifier maps a handle to the provider id. Cache hits never touch
// the network.
func (c *HTTPClient) ResolveIdentifier(ctx context.Context, username string) (string, error) {
	c.mu.Lock()
	if id, ok := c.ids[username]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	// Concurrent misses for one handle share a single lookup.
	v, err, _ := c.lookups.Do(username, func() (any, error) {
		c.mu.Lock()
		if id, ok := c.ids[username]; ok {
			c.mu.Unlock()
			return id, nil
		}
		c.mu.Unlock()

		u, err := c.GetUserByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ids == nil {
			c.ids = make(map[string]string)
		}
		c.ids[username] = u.ID
		return u.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetUserByUsername performs the uncached handle lookup.
func (c *HTTPClient) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var out model.User
	if username == "" {
		return out, &model.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	const endpoint = "users/by/username"
	u := fmt.Sprintf("%s/users/by/username/%s?user.fields=public_metrics,created_at,verified", c.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.do(ctx, req, endpoint)
	if err != nil {
		var pe *ProviderError
		if asProvider(err, &pe) && pe.StatusCode == http.StatusNotFound {
			return out, &NotFoundError{Username: username}
		}
		return out, err
	}
	defer resp.Body.Close()
	var raw struct {
		Data *struct {
			ID            string    `json:"id"`
			Name          string    `json:"name"`
			Username      string    `json:"username"`
			CreatedAt     time.Time `json:"created_at"`
			Verified      bool      `json:"verified"`
			PublicMetrics struct {
				FollowersCount int `json:"followers_count"`
				FollowingCount int `json:"following_count"`
				TweetCount     int `json:"tweet_count"`
				ListedCount    int `json:"listed_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, fmt.Errorf("decode user lookup: %w", err)
	}
	if raw.Data == nil || raw.Data.ID == "" {
		return out, &NotFoundError{Username: username}
	}
	out = model.User{
		ID:             raw.Data.ID,
		Username:       raw.Data.Username,
		Name:           raw.Data.Name,
		CreatedAt:      raw.Data.CreatedAt,
		Verified:       raw.Data.Verified,
		FollowersCount: raw.Data.PublicMetrics.FollowersCount,
		FollowingCount: raw.Data.PublicMetrics.FollowingCount,
		TweetCount:     raw.Data.PublicMetrics.TweetCount,
		ListedCount:    raw.Data.PublicMetrics.ListedCount,
	}
	return out, nil
}

// GetCountLast24h counts the account's posts over the trailing day. It makes
// exactly one counts call, plus the handle lookup on a cache miss.
func (c *HTTPClient) GetCountLast24h(ctx context.Context, username string) (model.TweetCountResult, error) {
	var out model.TweetCountResult
	id, err := c.ResolveIdentifier(ctx, username)
	if err != nil {
		return out, err
	}

	now := c.nowFn()
	start, end := CountWindow(now)
	q := url.Values{}
	q.Set("query", "from:"+username)
	q.Set("start_time", FormatProviderTime(start))
	q.Set("end_time", FormatProviderTime(end))
	q.Set("granularity", "day")

	const endpoint = "tweets/counts/recent"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tweets/counts/recent?"+q.Encode(), nil)
	if err != nil {
		return out, err
	}
	resp, err := c.do(ctx, req, endpoint)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	var raw struct {
		Data []struct {
			Start      string `json:"start"`
			End        string `json:"end"`
			TweetCount int    `json:"tweet_count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return out, fmt.Errorf("decode tweet counts: %w", err)
	}
	total := 0
	for _, bucket := range raw.Data {
		total += bucket.TweetCount
	}
	out = model.TweetCountResult{
		Username:    username,
		UserID:      id,
		Count:       total,
		Period:      model.PeriodLast24h,
		Timestamp:   now,
		CallsUsed:   c.quota.Used(),
		WindowStart: start,
		WindowEnd:   end,
	}
	return out, nil
}

// FormatReport renders the 24h count. Failures come back as text.
func (c *HTTPClient) FormatReport(ctx context.Context, username string) string {
	res, err := c.GetCountLast24h(ctx, username)
	if err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("count report failed")
		return report.RenderError(err)
	}
	return report.RenderCount(res, c.quota.Limit())
}

// GetRecentTweets returns the user's tweets created in [start, end).
func (c *HTTPClient) GetRecentTweets(ctx context.Context, userID string, start, end time.Time, limit int) ([]model.Tweet, error) {
	q := url.Values{}
	q.Set("max_results", fmt.Sprint(clamp(limit, 5, 100)))
	q.Set("tweet.fields", "created_at,public_metrics,lang")
	q.Set("start_time", FormatProviderTime(start))
	q.Set("end_time", FormatProviderTime(end))
	u := fmt.Sprintf("%s/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), q.Encode())

	const endpoint = "users/tweets"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			Lang          string    `json:"lang"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				ReplyCount   int `json:"reply_count"`
				RetweetCount int `json:"retweet_count"`
				QuoteCount   int `json:"quote_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode user tweets: %w", err)
	}
	out := make([]model.Tweet, 0, len(raw.Data))
	for _, d := range raw.Data {
		out = append(out, model.Tweet{
			ID:           d.ID,
			AuthorID:     userID,
			Text:         d.Text,
			CreatedAt:    d.CreatedAt,
			Language:     d.Lang,
			LikeCount:    d.PublicMetrics.LikeCount,
			ReplyCount:   d.PublicMetrics.ReplyCount,
			RetweetCount: d.PublicMetrics.RetweetCount,
			QuoteCount:   d.PublicMetrics.QuoteCount,
		})
	}
	// The provider floor is 5 results; smaller limits trim client-side.
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetDailySummary fetches a handful of the last day's tweets and summarizes
// their engagement. The tweet limit stays small to conserve quota.
func (c *HTTPClient) GetDailySummary(ctx context.Context, username string, maxTweets int) (model.DailySummary, error) {
	id, err := c.ResolveIdentifier(ctx, username)
	if err != nil {
		return model.DailySummary{}, err
	}
	now := c.nowFn()
	start, end := CountWindow(now)
	tweets, err := c.GetRecentTweets(ctx, id, start, end, maxTweets)
	if err != nil {
		return model.DailySummary{}, err
	}
	return report.Summarize(username, now, tweets), nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// do paces, counts and sends one request. No retries: a 429 surfaces as
// RateLimitedError for the caller to back off on.
func (c *HTTPClient) do(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	if c.bearerToken == "" {
		return nil, ErrMissingToken
	}
	c.auth(req)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if _, err := c.quota.Record(ctx, endpoint); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("x api %s: %w", endpoint, err)
	}
	if err := checkStatus(resp, endpoint, c.nowFn()); err != nil {
		_ = resp.Body.Close()
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("x api call failed")
		return nil, err
	}
	return resp, nil
}

func asProvider(err error, target **ProviderError) bool {
	pe, ok := err.(*ProviderError)
	if ok {
		*target = pe
	}
	return ok
}
