// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import "context"

// Capture is one recording stream (audio or video) owned by a session.
type Capture interface {
	// Start begins capturing to path. Fails with ErrAlreadyCapturing when a
	// capture is in progress.
	Start(path string) error
	// Stop ends the capture and returns once the capture goroutine has exited
	// and the device is released. Fails with ErrNotCapturing when idle.
	Stop() error
	// IsCapturing reports whether Start succeeded and Stop has not been called.
	IsCapturing() bool
	// Extension is the file extension of the produced file, including the dot.
	Extension() string
}

// CaptureHealth is implemented by captures whose device can fail while the
// capture goroutine runs. Err is nil while healthy.
type CaptureHealth interface {
	Err() error
}

// AudioFormat describes raw PCM input.
type AudioFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	ChunkSamples  int
}

// ChunkBytes is the size of one chunk read.
func (f AudioFormat) ChunkBytes() int {
	return f.ChunkSamples * f.Channels * f.BitsPerSample / 8
}

// BytesPerSecond is the PCM byte rate.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// AudioDevice is a microphone input.
type AudioDevice interface {
	Open(format AudioFormat) error
	// ReadChunk blocks until one chunk of format.ChunkBytes() is available.
	// It may return data together with ErrBufferOverflow when the device
	// dropped samples; the data is still valid.
	ReadChunk() ([]byte, error)
	Close() error
}

// Camera is a video encoder. Resolution and orientation are fixed when the
// camera is constructed.
type Camera interface {
	// BeginStream starts writing the encoded stream to path.
	BeginStream(path string) error
	// EndStream finalizes and closes the output file.
	EndStream() error
	// Exited delivers an error when the running stream ends without
	// EndStream. Nil when no stream is running.
	Exited() <-chan error
}

// MotionSensor is the PIR input.
type MotionSensor interface {
	// MotionDetected reports whether motion is present right now.
	MotionDetected() bool
	// Watch invokes onMotion on every "motion started" edge until ctx is done.
	Watch(ctx context.Context, onMotion func()) error
}
