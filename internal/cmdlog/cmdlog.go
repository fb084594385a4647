// Package cmdlog wraps CLI subcommands with run/error metrics and a log line.
package cmdlog

import (
	"time"

	"github.com/rs/zerolog"

	"pokewatch/internal/metrics"
)

func Run(cmd string, log zerolog.Logger, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		log.Error().Err(err).Str("cmd", cmd).Dur("took", time.Since(start)).Msg("command failed")
	} else {
		log.Debug().Str("cmd", cmd).Dur("took", time.Since(start)).Msg("command ok")
	}
	return err
}
