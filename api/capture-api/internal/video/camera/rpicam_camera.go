// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_camera

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const (
	DefaultRPiCamBinary = "rpicam-vid"
	rpicamStopGrace     = 5 * time.Second
)

type commandFactory func(name string, args ...string) *exec.Cmd

// rpicamCamera records H.264 through an rpicam-vid child process. SIGINT
// makes rpicam-vid flush and close the output file.
type rpicamCamera struct {
	logger  commons.Logger
	cfg     CameraConfig
	binary  string
	command commandFactory

	mu     sync.Mutex
	stream *rpicamStream
}

// rpicamStream is one rpicam-vid process. exited receives the Wait result;
// died receives it too when the process ended without EndStream.
type rpicamStream struct {
	cmd      *exec.Cmd
	stderr   *bytes.Buffer
	exited   chan error
	died     chan error
	stopping atomic.Bool
}

func NewRPiCamCamera(logger commons.Logger, cfg CameraConfig) internal_type.Camera {
	binary := cfg.Device
	if binary == "" {
		binary = DefaultRPiCamBinary
	}
	return &rpicamCamera{
		logger:  logger,
		cfg:     cfg,
		binary:  binary,
		command: exec.Command,
	}
}

// RPiCamArgs is the rpicam-vid invocation for an unbounded H.264 recording.
func RPiCamArgs(cfg CameraConfig, path string) []string {
	args := []string{
		"-t", "0",
		"-n",
		"--width", strconv.Itoa(cfg.Width),
		"--height", strconv.Itoa(cfg.Height),
	}
	if cfg.VFlip {
		args = append(args, "--vflip")
	}
	return append(args,
		"--codec", "h264",
		"--framerate", strconv.Itoa(cfg.Framerate),
		"-o", path,
	)
}

func (c *rpicamCamera) BeginStream(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return errors.New("stream already running")
	}

	cmd := c.command(c.binary, RPiCamArgs(c.cfg, path)...)
	// own process group: a terminal Ctrl-C must not reach the encoder
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.binary, err)
	}

	s := &rpicamStream{
		cmd:    cmd,
		stderr: stderr,
		exited: make(chan error, 1),
		died:   make(chan error, 1),
	}
	go func() {
		err := cmd.Wait()
		if !s.stopping.Load() {
			s.died <- encoderExitError(err, stderr)
		}
		s.exited <- err
	}()

	c.stream = s
	c.logger.Debugw("rpicam-vid started", "path", path, "pid", cmd.Process.Pid)
	return nil
}

// Exited delivers the exit of an encoder that stopped before EndStream.
func (c *rpicamCamera) Exited() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	return c.stream.died
}

func (c *rpicamCamera) EndStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return errors.New("stream not running")
	}
	s := c.stream
	c.stream = nil
	s.stopping.Store(true)

	var err error
	select {
	case err = <-s.exited:
		// encoder died on its own while recording
		return encoderExitError(err, s.stderr)
	default:
	}

	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case err = <-s.exited:
	case <-time.After(rpicamStopGrace):
		_ = s.cmd.Process.Kill()
		err = <-s.exited
		return fmt.Errorf("rpicam-vid did not stop within %s: %w", rpicamStopGrace, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && !exitErr.Exited() {
		// terminated by our interrupt
		return nil
	}
	return err
}

// encoderExitError describes an exit nobody asked for. stderr is complete
// once Wait has returned.
func encoderExitError(err error, stderr *bytes.Buffer) error {
	if err == nil {
		err = errors.New("encoder exited before stop")
	}
	return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
