package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/reminder"
	"pokewatch/internal/schedule"
)

const ReminderJobName = "reminders:check"

// RunReminderCheckOnce runs one pass at now. The report's Error is returned
// as an error for the scheduler's logs; per-entry failures are not.
func RunReminderCheckOnce(ctx context.Context, chk *reminder.Checker, now time.Time, log zerolog.Logger) (reminder.CheckReport, error) {
	rep := chk.CheckDue(ctx, now)
	if rep.Error != "" {
		return rep, errors.New(rep.Error)
	}
	if n := len(rep.Results); n > 0 {
		log.Info().Str("run_id", rep.RunID).Int("due", n).Int("fired", rep.Fired()).Msg("reminders due")
	}
	return rep, nil
}

// ReminderCheckJob adapts RunReminderCheckOnce for the scheduler. Each run
// uses the wall clock at fire time.
func ReminderCheckJob(chk *reminder.Checker, log zerolog.Logger) schedule.Job {
	return func(ctx context.Context) error {
		_, err := RunReminderCheckOnce(ctx, chk, time.Now(), log)
		return err
	}
}
