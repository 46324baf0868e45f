// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCapturing is returned by Start on a capture that is running.
	ErrAlreadyCapturing = errors.New("capture already running")
	// ErrNotCapturing is returned by Stop on an idle capture.
	ErrNotCapturing = errors.New("capture not running")
	// ErrShutdown is returned by every controller call after Shutdown.
	ErrShutdown = errors.New("controller is shut down")
	// ErrBufferOverflow marks a transient input overrun; capture continues.
	ErrBufferOverflow = errors.New("input buffer overflow")
)

// DeviceError wraps a failure to open, read or drive a capture device.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// IOError wraps a failure to write a capture file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsDeviceError reports whether err carries a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
