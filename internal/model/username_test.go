package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"alice":      "alice",
		"@Alice":     "alice",
		"  @BOB_42 ": "bob_42",
	}
	for in, want := range cases {
		got, err := NormalizeUsername(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizeUsernameRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "@", "has space", "way_too_long_handle_x", "dash-name"} {
		_, err := NormalizeUsername(in)
		var ve *ValidationError
		require.Error(t, err, in)
		assert.True(t, errors.As(err, &ve), in)
		assert.Equal(t, "username", ve.Field)
	}
}

func TestTweetMetricsEngagement(t *testing.T) {
	tm := TweetMetrics{Likes: 3, Retweets: 2, Replies: 1, Quotes: 4}
	assert.Equal(t, 10, tm.Engagement())
}
