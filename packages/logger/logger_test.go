package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		want      zerolog.Level
	}{
		{"", 0, zerolog.WarnLevel},
		{"", 1, zerolog.InfoLevel},
		{"", 2, zerolog.DebugLevel},
		{"", 5, zerolog.TraceLevel},
		{"error", 3, zerolog.ErrorLevel},
		{" DEBUG ", 0, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name, tt.verbosity)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "name=%q verbosity=%d", tt.name, tt.verbosity)
	}

	_, err := ParseLevel("loud", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Config{Verbosity: 1, NoColor: true})
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	clog := WithComponent(log, "upload")
	clog.Info().Str(FieldURL, "http://localhost/upload").Msg("sending")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "sending")
	assert.Contains(t, out, "component=upload")
	assert.Contains(t, out, "url=http://localhost/upload")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Config{Level: "chatty"})
	assert.Error(t, err)
}
