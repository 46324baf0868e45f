package capture_app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rapidaai/motioncam/api/capture-api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doctorConfig(dir string) *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.Capture.Audio = true
	cfg.Capture.Video = true
	cfg.Capture.OutputDir = dir
	cfg.Video.Backend = "rpicam"
	cfg.Mux.FFmpegPath = "ffmpeg"
	return cfg
}

func fakeLookPath(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestDoctor_AllPresent(t *testing.T) {
	d := NewDoctor()
	d.lookPath = fakeLookPath("arecord", "rpicam-vid", "ffmpeg")

	checks := d.Run(doctorConfig(t.TempDir()))
	require.Len(t, checks, 4)
	for _, c := range checks {
		assert.True(t, c.OK, c.Name)
	}

	var out bytes.Buffer
	assert.True(t, PrintChecks(&out, checks))
	assert.Contains(t, out.String(), "/usr/bin/ffmpeg")
}

func TestDoctor_MissingTools(t *testing.T) {
	d := NewDoctor()
	d.lookPath = fakeLookPath("arecord")

	checks := d.Run(doctorConfig(t.TempDir()))
	var out bytes.Buffer
	assert.False(t, PrintChecks(&out, checks))
	assert.Contains(t, out.String(), "[FAIL] rpicam-vid")
	assert.Contains(t, out.String(), "[FAIL] ffmpeg")
}

func TestDoctor_AudioOnlySkipsVideoAndMux(t *testing.T) {
	d := NewDoctor()
	d.lookPath = fakeLookPath("arecord")
	cfg := doctorConfig(t.TempDir())
	cfg.Capture.Video = false

	checks := d.Run(cfg)
	require.Len(t, checks, 2)
	assert.Equal(t, "arecord", checks[0].Name)
	assert.Equal(t, "output directory", checks[1].Name)
}

func TestDoctor_GStreamerChecksDeviceNode(t *testing.T) {
	d := NewDoctor()
	d.lookPath = fakeLookPath("ffmpeg", "arecord")
	cfg := doctorConfig(t.TempDir())
	cfg.Video.Backend = "gstreamer"
	cfg.Video.Device = filepath.Join(t.TempDir(), "video9")

	checks := d.Run(cfg)
	assert.Equal(t, "camera", checks[1].Name)
	assert.False(t, checks[1].OK)

	require.NoError(t, os.WriteFile(cfg.Video.Device, nil, 0o644))
	checks = d.Run(cfg)
	assert.True(t, checks[1].OK)
}

func TestDoctor_UnwritableOutputDir(t *testing.T) {
	d := NewDoctor()
	d.lookPath = fakeLookPath("arecord", "rpicam-vid", "ffmpeg")
	d.createTemp = func(string, string) (*os.File, error) { return nil, os.ErrPermission }

	checks := d.Run(doctorConfig(t.TempDir()))
	last := checks[len(checks)-1]
	assert.False(t, last.OK)
	assert.Contains(t, last.Message, "not writable")
}
