package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bodysplice/internal/infrastructure/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Component("proxy").Info("stream closed", StreamFields("stm_1", "/index.html")...)
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `"message":"stream closed"`)
	assert.Contains(t, out, `"logger":"proxy"`)
	assert.Contains(t, out, `"stream_id":"stm_1"`)
	assert.Contains(t, out, `"path":"/index.html"`)
	assert.NotContains(t, out, "hidden")
}

func TestSampledDropsRepeats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	logger, err := New(Config{Level: "debug", OutputPaths: []string{path}, Sampled: true})
	require.NoError(t, err)

	for i := 0; i < 150; i++ {
		logger.Debug("boundary")
	}
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 100, lines, "only the first 100 within the tick")
}

func TestFromConfig(t *testing.T) {
	prod := FromConfig(config.LogConfig{Level: "warn"})
	assert.Equal(t, Config{Level: "warn", Sampled: true}, prod)

	dev := FromConfig(config.LogConfig{Level: "debug", Development: true})
	assert.False(t, dev.Sampled)
	assert.True(t, dev.Development)
}

func TestFallbacks(t *testing.T) {
	assert.NotNil(t, NewDevelopment())

	nop := NewNop()
	nop.Info("dropped", zap.Int("n", 1))
}
