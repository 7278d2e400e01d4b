package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-bootstrap/logging"
)

func TestZLogger_WritesLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewZLogger(zerolog.New(&buf)).Named("bearer")

	l.Warn("authority %s uses plain http", "http://idp")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "bearer", entry["component"])
	assert.Equal(t, "authority http://idp uses plain http", entry["message"])
}

func TestZLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewZLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden")
	l.Error("shown %d", 1)

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown 1"))
}

func TestOrDefault(t *testing.T) {
	assert.NotNil(t, logging.OrDefault(nil))

	nop := logging.Nop()
	assert.Equal(t, nop, logging.OrDefault(nop))
	assert.NotPanics(t, func() {
		nop.Debug("x")
		nop.Info("x")
		nop.Warn("x")
		nop.Error("x")
	})
}

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := logging.Setup(logging.Options{Level: "warn", Format: logging.FormatJSON, Output: &buf})
		require.NoError(t, err)

		l.Info("dropped")
		l.Warn("kept %s", "line")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "kept line", entry["message"])
		assert.NotEmpty(t, entry["time"])
	})

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := logging.Setup(logging.Options{Level: "debug", NoColor: true, Output: &buf})
		require.NoError(t, err)

		l.Debug("hello %d", 42)
		assert.Contains(t, buf.String(), "DBG")
		assert.Contains(t, buf.String(), "hello 42")
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := logging.Setup(logging.Options{Level: "loud"})
		assert.Error(t, err)

		_, err = logging.Setup(logging.Options{Format: "xml"})
		assert.Error(t, err)
	})
}
