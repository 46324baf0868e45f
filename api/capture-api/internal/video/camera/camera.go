// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_camera

import (
	"fmt"
	"strings"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const (
	BackendRPiCam    = "rpicam"
	BackendGStreamer = "gstreamer"
)

// CameraConfig is fixed for the life of the camera.
type CameraConfig struct {
	Width     int
	Height    int
	VFlip     bool
	Framerate int
	// Device is the V4L2 node for the gstreamer backend, or the rpicam-vid
	// binary path for the rpicam backend. Empty picks the default.
	Device string
}

// NewCamera returns the encoder for backend.
func NewCamera(logger commons.Logger, backend string, cfg CameraConfig) (internal_type.Camera, error) {
	if cfg.Framerate <= 0 {
		cfg.Framerate = 30
	}
	switch strings.ToLower(backend) {
	case "", BackendRPiCam:
		return NewRPiCamCamera(logger, cfg), nil
	case BackendGStreamer:
		return NewGStreamerCamera(logger, cfg), nil
	default:
		return nil, fmt.Errorf("unknown video backend %q", backend)
	}
}
