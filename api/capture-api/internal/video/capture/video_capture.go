// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_video_capture

import (
	"sync"
	"sync/atomic"
	"time"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const deviceName = "camera"

// VideoCapture drives a camera encoder from a dedicated goroutine that owns
// the stream for the life of one capture.
type VideoCapture struct {
	logger commons.Logger
	camera internal_type.Camera

	mu        sync.Mutex
	capturing bool
	path      string
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}
	endErr    error
	fault     atomic.Pointer[internal_type.DeviceError]
}

func NewVideoCapture(logger commons.Logger, camera internal_type.Camera) *VideoCapture {
	return &VideoCapture{logger: logger, camera: camera}
}

func (c *VideoCapture) Extension() string {
	return ".h264"
}

func (c *VideoCapture) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Start returns once the camera accepted the stream or failed to begin it.
func (c *VideoCapture) Start(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return internal_type.ErrAlreadyCapturing
	}

	c.fault.Store(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	started := make(chan error, 1)
	go c.run(path, started, stop, done)

	if err := <-started; err != nil {
		<-done
		return &internal_type.DeviceError{Device: deviceName, Op: "begin", Err: err}
	}

	c.path = path
	c.startedAt = time.Now()
	c.stop = stop
	c.done = done
	c.capturing = true
	c.logger.Debugw("video capture started", "path", path)
	return nil
}

func (c *VideoCapture) run(path string, started chan<- error, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if err := c.camera.BeginStream(path); err != nil {
		started <- err
		return
	}
	exited := c.camera.Exited()
	started <- nil

	select {
	case <-stop:
	case err := <-exited:
		c.logger.Errorw("video encoder exited while recording", "path", path, "error", err)
		c.fault.Store(&internal_type.DeviceError{Device: deviceName, Op: "stream", Err: err})
		<-stop
	}
	if err := c.camera.EndStream(); err != nil {
		c.endErr = &internal_type.DeviceError{Device: deviceName, Op: "end", Err: err}
	}
}

// Err returns the encoder failure seen while capturing, or nil.
func (c *VideoCapture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	if f := c.fault.Load(); f != nil {
		return f
	}
	return nil
}

// Stop signals the stream goroutine and waits until the camera finalized
// the file.
func (c *VideoCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return internal_type.ErrNotCapturing
	}
	close(c.stop)
	<-c.done
	c.capturing = false

	err := c.endErr
	c.endErr = nil
	c.logger.Debugw("video capture stopped", "path", c.path, "wall", time.Since(c.startedAt), "error", err)
	return err
}
