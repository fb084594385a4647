// Package poke is a small client for the Poke inbound message webhook.
package poke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pokewatch/internal/metrics"
)

const (
	DefaultBaseURL = "https://poke.com/api/v1"
	webhookPath    = "/inbound-sms/webhook"
	testMessage    = "Connection test from pokewatch"
)

// ErrMissingKey is returned when sending without POKE_API_KEY.
var ErrMissingKey = errors.New("POKE_API_KEY not configured")

// DeliveryError is a non-2xx webhook response.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("poke webhook: status %d: %s", e.StatusCode, e.Body)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RPS paces sends; zero means 1 per second with a burst of 5.
	RPS    float64
	Burst  int
	Logger zerolog.Logger
}

// Client posts messages to Poke.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
	nowFn      func() time.Time
}

func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		log:        opts.Logger,
		nowFn:      time.Now,
	}
}

func (c *Client) Configured() bool { return c.apiKey != "" }

// SendMessage delivers one message and returns the decoded response body.
func (c *Client) SendMessage(ctx context.Context, message string) (map[string]any, error) {
	if c.apiKey == "" {
		return nil, ErrMissingKey
	}
	payload, err := json.Marshal(map[string]string{
		"message":   message,
		"timestamp": c.nowFn().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+webhookPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncDelivery("error")
		c.log.Warn().Err(err).Str("request_id", reqID).Msg("poke send failed")
		return nil, fmt.Errorf("poke webhook: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IncDelivery("error")
		derr := &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		c.log.Warn().Err(derr).Str("request_id", reqID).Msg("poke send rejected")
		return nil, derr
	}
	metrics.IncDelivery("ok")
	c.log.Info().Str("request_id", reqID).Int("chars", len(message)).Msg("poke message sent")

	out := map[string]any{}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		out = map[string]any{"raw": string(body)}
	}
	return out, nil
}

// BulkResult is one message's outcome in SendBulk.
type BulkResult struct {
	Index    int            `json:"index"`
	Message  string         `json:"message"`
	Success  bool           `json:"success"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// SendBulk sends messages in order. A failure does not stop the batch.
func (c *Client) SendBulk(ctx context.Context, messages []string) []BulkResult {
	out := make([]BulkResult, 0, len(messages))
	for i, m := range messages {
		r := BulkResult{Index: i, Message: m}
		resp, err := c.SendMessage(ctx, m)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Success = true
			r.Response = resp
		}
		out = append(out, r)
	}
	return out
}

// TestConnection sends a fixed test message.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.SendMessage(ctx, testMessage)
	return err
}
