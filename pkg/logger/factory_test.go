package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatJSON))
		log.Info("hello", slog.String("component", "test"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "test", record["component"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		log.Warn("kept")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "kept")
	})

	t.Run("static attrs on every record", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithAttrs(slog.String("service", "quota-engine")),
		)
		log.Info("one")
		log.Info("two")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			assert.Contains(t, line, "quota-engine")
		}
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	log := logger.NewFromConfig(logger.Config{Level: "debug", Format: "text"})
	assert.True(t, log.Enabled(t.Context(), slog.LevelDebug))

	// Unknown level strings fall back to info instead of failing startup.
	log = logger.NewFromConfig(logger.Config{Level: "verbose", Format: "json"})
	assert.False(t, log.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, log.Enabled(t.Context(), slog.LevelInfo))
}

func TestErr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Err(nil))

	attr := logger.Err(assert.AnError)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, assert.AnError.Error(), attr.Value.String())
}
