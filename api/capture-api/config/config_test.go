package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_PATH", filepath.Join(dir, "missing.env"))
}

func TestGetApplicationConfig_RequiresAModality(t *testing.T) {
	isolate(t)
	v, err := InitConfig()
	require.NoError(t, err)

	_, err = GetApplicationConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of audio (-a) or video (-v) must be enabled")
}

func TestGetApplicationConfig_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("CAPTURE__AUDIO", "true")
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "motioncam", cfg.Name)
	assert.True(t, cfg.Capture.Audio)
	assert.False(t, cfg.Capture.Video)
	assert.Equal(t, 10*time.Second, cfg.Capture.Window())
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.TickInterval)
	assert.Equal(t, "capture", cfg.Capture.Prefix)
	assert.Equal(t, 640, cfg.Capture.Width)
	assert.Equal(t, 480, cfg.Capture.Height)
	assert.Equal(t, "GPIO4", cfg.Motion.GPIO)
	assert.Equal(t, "rpicam", cfg.Video.Backend)
	assert.Equal(t, 30, cfg.Video.Framerate)
	assert.Equal(t, "ffmpeg", cfg.Mux.FFmpegPath)
	assert.Equal(t, 1, cfg.Mux.Workers)
	assert.Zero(t, cfg.Mux.ShutdownTimeout)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestInitConfig_ReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motioncam.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"CAPTURE__VIDEO=true\n"+
			"CAPTURE__WINDOW_SECONDS=2.5\n"+
			"CAPTURE__TICK_INTERVAL=250ms\n"+
			"VIDEO__BACKEND=GStreamer\n"+
			"LOG_LEVEL=debug\n"), 0o644))
	t.Setenv("ENV_PATH", path)

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.True(t, cfg.Capture.Video)
	assert.Equal(t, 2500*time.Millisecond, cfg.Capture.Window())
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.TickInterval)
	assert.Equal(t, "gstreamer", cfg.Video.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestGetApplicationConfig_RejectsUnknownBackend(t *testing.T) {
	isolate(t)
	t.Setenv("CAPTURE__VIDEO", "true")
	t.Setenv("VIDEO__BACKEND", "picamera2")
	v, err := InitConfig()
	require.NoError(t, err)

	_, err = GetApplicationConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of [rpicam gstreamer]")
}

func TestGetApplicationConfig_RejectsNonPositiveWindow(t *testing.T) {
	isolate(t)
	t.Setenv("CAPTURE__AUDIO", "true")
	t.Setenv("CAPTURE__WINDOW_SECONDS", "0")
	v, err := InitConfig()
	require.NoError(t, err)

	_, err = GetApplicationConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WindowSeconds")
}

func TestGetApplicationConfig_FlagsOverrideDefaults(t *testing.T) {
	isolate(t)
	v, err := InitConfig()
	require.NoError(t, err)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BoolP("video", "v", false, "")
	flags.IntP("window", "w", 10, "")
	flags.StringP("filename", "f", "capture", "")
	require.NoError(t, flags.Parse([]string{"-v", "-w", "30", "-f", "porch"}))
	require.NoError(t, v.BindPFlag("capture__video", flags.Lookup("video")))
	require.NoError(t, v.BindPFlag("capture__window_seconds", flags.Lookup("window")))
	require.NoError(t, v.BindPFlag("capture__prefix", flags.Lookup("filename")))

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)
	assert.True(t, cfg.Capture.Video)
	assert.Equal(t, 30*time.Second, cfg.Capture.Window())
	assert.Equal(t, "porch", cfg.Capture.Prefix)
}
