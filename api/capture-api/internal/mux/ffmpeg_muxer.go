// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rapidaai/motioncam/pkg/commons"
)

const DefaultFFmpegBinary = "ffmpeg"

// MuxJob pairs the two files of one session with the container they are
// combined into.
type MuxJob struct {
	SessionID  string
	Sequence   int
	AudioPath  string
	VideoPath  string
	OutputPath string
}

// NewMuxJob derives the audio, video and container paths from a session's
// base path (directory plus prefix and sequence, no extension).
func NewMuxJob(sessionID string, sequence int, base string) MuxJob {
	return MuxJob{
		SessionID:  sessionID,
		Sequence:   sequence,
		AudioPath:  base + ".wav",
		VideoPath:  base + ".h264",
		OutputPath: base + ".mkv",
	}
}

// Muxer combines a job's sources into its output.
type Muxer interface {
	Mux(ctx context.Context, job MuxJob) error
}

// MuxFailedError reports a combiner that could not be launched or exited
// non-zero. The job's sources are left in place.
type MuxFailedError struct {
	Job      MuxJob
	ExitCode int
	Stderr   string
	Err      error
}

func (e *MuxFailedError) Error() string {
	msg := fmt.Sprintf("mux %s failed (exit %d): %v", e.Job.OutputPath, e.ExitCode, e.Err)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		if i := strings.LastIndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
		msg += ": " + tail
	}
	return msg
}

func (e *MuxFailedError) Unwrap() error {
	return e.Err
}

type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// own process group: a terminal Ctrl-C must not cut a mux short
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegMuxer muxes H.264 video and WAV audio into Matroska with ffmpeg,
// re-encoding the audio to FLAC and resampling it to follow the video clock.
type FFmpegMuxer struct {
	logger     commons.Logger
	ffmpegPath string
	runner     commandRunner
	remove     func(name string) error
}

func NewFFmpegMuxer(logger commons.Logger, ffmpegPath string) *FFmpegMuxer {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegBinary
	}
	return &FFmpegMuxer{
		logger:     logger,
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		remove:     os.Remove,
	}
}

// FFmpegArgs is the ffmpeg invocation for job. The raw H.264 stream carries
// no timing so the input rate is forced to 30fps.
func FFmpegArgs(job MuxJob) []string {
	return []string{
		"-y",
		"-i", job.AudioPath,
		"-r", "30",
		"-i", job.VideoPath,
		"-filter:a", "aresample=async=1",
		"-c:a", "flac",
		"-c:v", "copy",
		job.OutputPath,
	}
}

// Mux blocks until ffmpeg exits. On success both sources are removed; on
// failure the partial output is removed and the sources are kept.
func (m *FFmpegMuxer) Mux(ctx context.Context, job MuxJob) error {
	start := time.Now()
	result, err := m.runner.Run(ctx, m.ffmpegPath, FFmpegArgs(job)...)
	if err != nil {
		if rerr := m.remove(job.OutputPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			m.logger.Warnw("could not remove partial mux output", "path", job.OutputPath, "error", rerr)
		}
		return &MuxFailedError{Job: job, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}
	m.logger.Benchmark("mux", start)

	for _, src := range []string{job.AudioPath, job.VideoPath} {
		if rerr := m.remove(src); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			m.logger.Warnw("muxed but could not remove source", "path", src, "error", rerr)
		}
	}
	m.logger.Infow("session muxed", "session", job.SessionID, "output", job.OutputPath, "took", time.Since(start))
	return nil
}
