package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "info", false)
	defer SetupWriter(&bytes.Buffer{}, "info", false)

	log.Debug().Msg("hidden")
	Component("paper").Info().Int("corners", 4).Msg("detected")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"paper"`)
	assert.Contains(t, out, `"corners":4`)
}
