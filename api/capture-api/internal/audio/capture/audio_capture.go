// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio_capture

import (
	"errors"
	"sync"
	"time"

	internal_audio "github.com/rapidaai/motioncam/api/capture-api/internal/audio"
	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const deviceName = "audio"

// AudioCapture pulls fixed-size chunks from a microphone into memory on a
// dedicated goroutine and flushes them to a WAV file when stopped.
type AudioCapture struct {
	logger commons.Logger
	device internal_type.AudioDevice
	format internal_type.AudioFormat
	// writeWAV is injectable for testing; defaults to internal_audio.WriteWAVFile.
	writeWAV func(path string, format internal_type.AudioFormat, frames [][]byte) error

	mu        sync.Mutex
	capturing bool
	path      string
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}

	// owned by the capture goroutine until done is closed
	frames    [][]byte
	loopErr   error
	overflows int
}

type Option func(*AudioCapture)

// WithWAVWriter replaces the WAV writer.
func WithWAVWriter(fn func(path string, format internal_type.AudioFormat, frames [][]byte) error) Option {
	return func(c *AudioCapture) { c.writeWAV = fn }
}

func NewAudioCapture(logger commons.Logger, device internal_type.AudioDevice, opts ...Option) *AudioCapture {
	c := &AudioCapture{
		logger:   logger,
		device:   device,
		format:   internal_audio.CAPTURE_AUDIO_FORMAT,
		writeWAV: internal_audio.WriteWAVFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AudioCapture) Extension() string {
	return ".wav"
}

func (c *AudioCapture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Start opens the device and launches the capture goroutine.
func (c *AudioCapture) Start(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return internal_type.ErrAlreadyCapturing
	}
	if err := c.device.Open(c.format); err != nil {
		return &internal_type.DeviceError{Device: deviceName, Op: "open", Err: err}
	}

	c.path = path
	c.startedAt = time.Now()
	c.frames = nil
	c.loopErr = nil
	c.overflows = 0
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.capturing = true

	go c.run(c.stop, c.done)

	c.logger.Debugw("audio capture started", "path", path,
		"sample_rate", c.format.SampleRate, "chunk_samples", c.format.ChunkSamples)
	return nil
}

func (c *AudioCapture) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		data, err := c.device.ReadChunk()
		if len(data) > 0 {
			c.frames = append(c.frames, data)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, internal_type.ErrBufferOverflow) {
			c.overflows++
			continue
		}
		c.loopErr = &internal_type.DeviceError{Device: deviceName, Op: "read", Err: err}
		return
	}
}

// Err reports a device failure that ended the capture goroutine on its own.
// It returns nil while the goroutine is healthy or when idle.
func (c *AudioCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	select {
	case <-c.done:
		return c.loopErr
	default:
		return nil
	}
}

// Stop signals the capture goroutine, waits for it to exit, closes the
// device and writes every captured chunk to the WAV file. The device is
// released even when the file cannot be written.
func (c *AudioCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return internal_type.ErrNotCapturing
	}

	close(c.stop)
	<-c.done
	c.capturing = false

	frames := c.frames
	c.frames = nil

	var closeErr error
	if err := c.device.Close(); err != nil {
		closeErr = &internal_type.DeviceError{Device: deviceName, Op: "close", Err: err}
	}

	writeErr := c.writeWAV(c.path, c.format, frames)

	bytes := 0
	for _, f := range frames {
		bytes += len(f)
	}
	c.logger.Debugw("audio capture stopped", "path", c.path,
		"chunks", len(frames),
		"audio", internal_audio.PCMDuration(c.format, bytes),
		"wall", time.Since(c.startedAt),
		"overflows", c.overflows)

	if writeErr != nil {
		return errors.Join(writeErr, c.loopErr, closeErr)
	}
	if c.loopErr != nil {
		return errors.Join(c.loopErr, closeErr)
	}
	return closeErr
}
