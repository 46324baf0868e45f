package commons

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rapidaai/motioncam/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApplicationLogger_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewApplicationLogger(
		Name("test-logger"),
		Path(dir),
		Level("debug"),
		Console(false),
	)
	require.NoError(t, err)

	logger.Infow("session started", "sequence", 0)
	logger.Benchmark("mux", time.Now())
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test-logger.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), `"sequence":0`)
}

func TestNewApplicationLogger_InvalidLevel(t *testing.T) {
	_, err := NewApplicationLogger(Level("loud"), Console(false))
	assert.Error(t, err)
}

func TestNewApplicationLogger_LevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewApplicationLogger(
		Name("filtered"),
		Path(dir),
		Level("warn"),
		Environment(utils.PRODUCTION),
		Console(false),
	)
	require.NoError(t, err)

	logger.Debugf("hidden %d", 1)
	logger.Warnf("visible %d", 2)
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "filtered.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible 2")
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Errorw("ignored", "k", "v")
	assert.NoError(t, logger.Sync())
}
