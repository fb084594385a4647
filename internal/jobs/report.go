package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/metrics"
	"pokewatch/internal/model"
	"pokewatch/internal/reminder"
	"pokewatch/internal/report"
	"pokewatch/internal/schedule"
)

// SummaryFetcher builds a daily summary. xclient.HTTPClient satisfies it.
type SummaryFetcher interface {
	GetDailySummary(ctx context.Context, username string, maxTweets int) (model.DailySummary, error)
}

// DailyReportResult is the outcome of one daily report run.
type DailyReportResult struct {
	Username     string              `json:"username"`
	Summary      *model.DailySummary `json:"summary,omitempty"`
	Message      string              `json:"message,omitempty"`
	PokeResponse map[string]any      `json:"poke_response,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

var errNoSender = errors.New("no delivery client configured")

// RunDailyReport fetches the day's summary and sends it through sender. When
// the summary or the send fails, a failure notification is attempted and the
// original error is returned.
func RunDailyReport(ctx context.Context, x SummaryFetcher, sender reminder.Sender, username string, maxTweets int, log zerolog.Logger) (DailyReportResult, error) {
	now := time.Now()
	res := DailyReportResult{Username: username, Timestamp: now}
	if sender == nil {
		metrics.IncDailyReport("error")
		return res, errNoSender
	}
	log = log.With().Str("username", username).Logger()

	summary, err := x.GetDailySummary(ctx, username, maxTweets)
	if err == nil {
		res.Summary = &summary
		res.Message = report.Render(summary)
		res.PokeResponse, err = sender.SendMessage(ctx, res.Message)
	}
	if err != nil {
		metrics.IncDailyReport("error")
		log.Error().Err(err).Msg("daily report failed")
		if _, nerr := sender.SendMessage(ctx, report.RenderReportFailure(err, now)); nerr != nil {
			log.Warn().Err(nerr).Msg("daily report failure notice not sent")
		}
		return res, err
	}
	metrics.IncDailyReport("ok")
	log.Info().Int("tweets", summary.TweetCount).Msg("daily report sent")
	return res, nil
}

// DailyReportJob adapts RunDailyReport for the scheduler.
func DailyReportJob(x SummaryFetcher, sender reminder.Sender, username string, maxTweets int, log zerolog.Logger) schedule.Job {
	return func(ctx context.Context) error {
		_, err := RunDailyReport(ctx, x, sender, username, maxTweets, log)
		return err
	}
}

// ReportJobName is the scheduler name for a user's daily report.
func ReportJobName(username string) string { return "report:" + username }
