package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", ServiceName: "tickersync"}, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	logger.Debug().Msg("hidden")
	logger.Info().Str("symbol", "AAPL").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"symbol":"AAPL"`)
	assert.Contains(t, out, `"service":"tickersync"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:         "debug",
		Format:        "json",
		FileEnabled:   true,
		FilePath:      dir,
		RotationSize:  1,
		RetentionDays: 1,
	}, &bytes.Buffer{})
	require.NoError(t, err)

	logger.Info().Msg("run finished")
	logger.Error().Msg("apply failed")

	app, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(app), "run finished")
	assert.Contains(t, string(app), "apply failed")

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "run finished")
	assert.Contains(t, string(errs), "apply failed")
}
