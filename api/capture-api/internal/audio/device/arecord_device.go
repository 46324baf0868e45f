// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio_device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
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
	DefaultArecordBinary = "arecord"
	DefaultDevice        = "default"
	stopGrace            = 3 * time.Second
)

// commandFactory builds the capture process. Tests swap it for a fake.
type commandFactory func(name string, args ...string) *exec.Cmd

// arecordDevice streams raw LINEAR16 PCM from ALSA through an arecord
// child process.
type arecordDevice struct {
	logger  commons.Logger
	binary  string
	device  string
	command commandFactory

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	format  internal_type.AudioFormat
	overrun atomic.Bool
	stderrW sync.WaitGroup
}

type Option func(*arecordDevice)

// WithBinary overrides the arecord executable.
func WithBinary(path string) Option {
	return func(d *arecordDevice) { d.binary = path }
}

func withCommand(fn commandFactory) Option {
	return func(d *arecordDevice) { d.command = fn }
}

func NewArecordDevice(logger commons.Logger, device string, opts ...Option) internal_type.AudioDevice {
	if device == "" {
		device = DefaultDevice
	}
	d := &arecordDevice{
		logger:  logger,
		binary:  DefaultArecordBinary,
		device:  device,
		command: exec.Command,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ArecordArgs is the arecord invocation for raw PCM on stdout.
func ArecordArgs(device string, format internal_type.AudioFormat) []string {
	return []string{
		"-q",
		"-D", device,
		"-f", sampleFormat(format.BitsPerSample),
		"-r", strconv.Itoa(format.SampleRate),
		"-c", strconv.Itoa(format.Channels),
		"-t", "raw",
	}
}

func sampleFormat(bits int) string {
	switch bits {
	case 8:
		return "U8"
	case 24:
		return "S24_LE"
	case 32:
		return "S32_LE"
	default:
		return "S16_LE"
	}
}

func (d *arecordDevice) Open(format internal_type.AudioFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return errors.New("device already open")
	}

	cmd := d.command(d.binary, ArecordArgs(d.device, format)...)
	// own process group: a terminal Ctrl-C must not reach arecord
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", d.binary, err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.format = format
	d.overrun.Store(false)

	d.stderrW.Add(1)
	go d.watchStderr(stderr)

	d.logger.Debugw("arecord started", "device", d.device, "pid", cmd.Process.Pid)
	return nil
}

// watchStderr flags xruns reported by arecord.
func (d *arecordDevice) watchStderr(r io.Reader) {
	defer d.stderrW.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(strings.ToLower(line), "overrun") {
			d.overrun.Store(true)
			continue
		}
		d.logger.Debugw("arecord", "stderr", line)
	}
}

func (d *arecordDevice) ReadChunk() ([]byte, error) {
	d.mu.Lock()
	stdout, format := d.stdout, d.format
	d.mu.Unlock()
	if stdout == nil {
		return nil, errors.New("device not open")
	}

	buf := make([]byte, format.ChunkBytes())
	n, err := io.ReadFull(stdout, buf)
	if err != nil {
		if n > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return buf[:n], io.EOF
		}
		return nil, err
	}
	if d.overrun.Swap(false) {
		return buf, internal_type.ErrBufferOverflow
	}
	return buf, nil
}

// Close interrupts arecord, falling back to kill after a grace period, and
// reaps the process.
func (d *arecordDevice) Close() error {
	d.mu.Lock()
	cmd := d.cmd
	d.cmd = nil
	d.stdout = nil
	d.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	var err error
	select {
	case err = <-waited:
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		err = <-waited
	}
	d.stderrW.Wait()

	// arecord exits non-zero on SIGINT; only a missing process is a failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
