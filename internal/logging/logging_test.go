package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in, zerolog.InfoLevel), tt.in)
	}
}

func TestJSONComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "info", Format: "json"}, &buf), "review")

	log.Debug().Msg("hidden")
	log.Info().Int64("card_id", 7).Msg("reviewed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "review", line["component"])
	assert.Equal(t, "reviewed", line["message"])
	assert.Equal(t, float64(7), line["card_id"])
	assert.Equal(t, "info", line["level"])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug"}, &buf)
	log.Debug().Str("deck", "Verbs").Msg("imported")

	assert.Contains(t, buf.String(), "imported")
	assert.Contains(t, buf.String(), "deck=")
	assert.Contains(t, buf.String(), "Verbs")
}
