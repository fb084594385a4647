package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug", zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARNING ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense", zerolog.InfoLevel))
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokewatch.log")
	log, closer := New(Config{Level: "info", File: path, Stderr: true})
	l := Component(log, "test")
	l.Info().Int("calls", 3).Msg("api call")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(b)
	assert.True(t, strings.Contains(line, `"component":"test"`), line)
	assert.True(t, strings.Contains(line, `"calls":3`), line)
	assert.True(t, strings.Contains(line, `"message":"api call"`), line)
}
