package cmdlog

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"pokewatch/internal/metrics"
)

func TestRunLogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	assert.NoError(t, Run("cmdlog_test", log, func() error { return nil }))
	err := Run("cmdlog_test", log, func() error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
	assert.Contains(t, buf.String(), "command failed")
	assert.Contains(t, buf.String(), "boom")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `pokewatch_command_runs_total{cmd="cmdlog_test"} 2`)
	assert.Contains(t, body, `pokewatch_command_errors_total{cmd="cmdlog_test"} 1`)
}
