package internal_mux

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/rapidaai/motioncam/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls [][]string
	run   func(name string, args []string) (commandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (commandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.run(name, args)
}

func writeSources(t *testing.T, dir string) MuxJob {
	t.Helper()
	job := NewMuxJob("s-1", 0, filepath.Join(dir, "capture0"))
	require.NoError(t, os.WriteFile(job.AudioPath, []byte("RIFF"), 0o644))
	require.NoError(t, os.WriteFile(job.VideoPath, []byte{0, 0, 0, 1}, 0o644))
	return job
}

func TestNewMuxJob(t *testing.T) {
	job := NewMuxJob("abc", 4, "/var/cam/capture4")
	assert.Equal(t, "/var/cam/capture4.wav", job.AudioPath)
	assert.Equal(t, "/var/cam/capture4.h264", job.VideoPath)
	assert.Equal(t, "/var/cam/capture4.mkv", job.OutputPath)
	assert.Equal(t, 4, job.Sequence)
}

func TestFFmpegArgs(t *testing.T) {
	job := NewMuxJob("abc", 0, "capture0")
	assert.Equal(t, []string{
		"-y", "-i", "capture0.wav", "-r", "30", "-i", "capture0.h264",
		"-filter:a", "aresample=async=1", "-c:a", "flac", "-c:v", "copy", "capture0.mkv",
	}, FFmpegArgs(job))
}

func TestFFmpegMuxer_SuccessRemovesSources(t *testing.T) {
	job := writeSources(t, t.TempDir())
	runner := &fakeRunner{run: func(_ string, args []string) (commandResult, error) {
		return commandResult{}, os.WriteFile(args[len(args)-1], []byte("mkv"), 0o644)
	}}
	m := NewFFmpegMuxer(commons.NewNopLogger(), "")
	m.runner = runner

	require.NoError(t, m.Mux(context.Background(), job))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, DefaultFFmpegBinary, runner.calls[0][0])
	assert.FileExists(t, job.OutputPath)
	assert.NoFileExists(t, job.AudioPath)
	assert.NoFileExists(t, job.VideoPath)
}

func TestFFmpegMuxer_FailureKeepsSources(t *testing.T) {
	job := writeSources(t, t.TempDir())
	m := NewFFmpegMuxer(commons.NewNopLogger(), "/opt/ffmpeg")
	m.runner = &fakeRunner{run: func(_ string, args []string) (commandResult, error) {
		// ffmpeg -y opens the output before it fails mid-stream
		require.NoError(t, os.WriteFile(args[len(args)-1], []byte("partial"), 0o644))
		return commandResult{ExitCode: 1, Stderr: "frame=0\ncapture0.h264: Invalid data found"}, errors.New("exit status 1")
	}}

	err := m.Mux(context.Background(), job)
	var muxErr *MuxFailedError
	require.ErrorAs(t, err, &muxErr)
	assert.Equal(t, 1, muxErr.ExitCode)
	assert.Equal(t, job, muxErr.Job)
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.NotContains(t, err.Error(), "frame=0")

	assert.FileExists(t, job.AudioPath)
	assert.FileExists(t, job.VideoPath)
	assert.NoFileExists(t, job.OutputPath)
}

func TestFFmpegMuxer_RemoveFailureDoesNotFailMux(t *testing.T) {
	job := writeSources(t, t.TempDir())
	m := NewFFmpegMuxer(commons.NewNopLogger(), "")
	m.runner = &fakeRunner{run: func(string, []string) (commandResult, error) { return commandResult{}, nil }}
	m.remove = func(string) error { return errors.New("read-only filesystem") }

	assert.NoError(t, m.Mux(context.Background(), job))
}

func TestExecRunner_CapturesExitCode(t *testing.T) {
	r := &execRunner{}
	result, err := r.Run(context.Background(), "/nonexistent/ffmpeg")
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
}

func TestFFmpegMuxer_FailureWithoutOutputIsNotAWarning(t *testing.T) {
	job := writeSources(t, t.TempDir())
	var removed []string
	m := NewFFmpegMuxer(commons.NewNopLogger(), "")
	m.runner = &fakeRunner{run: func(string, []string) (commandResult, error) {
		return commandResult{ExitCode: -1}, errors.New("exec: \"ffmpeg\": executable file not found in $PATH")
	}}
	m.remove = func(name string) error {
		removed = append(removed, name)
		return os.Remove(name)
	}

	var muxErr *MuxFailedError
	require.ErrorAs(t, m.Mux(context.Background(), job), &muxErr)
	assert.Equal(t, []string{job.OutputPath}, removed)
	assert.FileExists(t, job.AudioPath)
	assert.FileExists(t, job.VideoPath)
}

func TestExecRunner_ChildHasOwnProcessGroup(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("reads /proc")
	}
	r := &execRunner{}
	result, err := r.Run(context.Background(), "sh", "-c", "cut -d' ' -f5 /proc/self/stat")
	require.NoError(t, err)

	pgid, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)
	assert.NotEqual(t, syscall.Getpgrp(), pgid)
}
