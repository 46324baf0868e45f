// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_camera

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const (
	DefaultV4L2Device = "/dev/video0"
	eosTimeout        = 5 * time.Second
)

var gstInit sync.Once

// gstreamerCamera encodes a V4L2 source to an H.264 elementary stream with
// a GStreamer pipeline. EndStream pushes EOS so the file is finalized.
type gstreamerCamera struct {
	logger commons.Logger
	cfg    CameraConfig

	mu       sync.Mutex
	pipeline *gst.Pipeline
	started  time.Time
	quit     chan struct{}
	watched  chan struct{}
	died     chan error
	// fault is written by watchBus before watched is closed
	fault error
}

func NewGStreamerCamera(logger commons.Logger, cfg CameraConfig) internal_type.Camera {
	if cfg.Device == "" {
		cfg.Device = DefaultV4L2Device
	}
	return &gstreamerCamera{logger: logger, cfg: cfg}
}

// GStreamerLaunch is the gst-launch description writing an H.264 stream to path.
func GStreamerLaunch(cfg CameraConfig, path string) string {
	elems := []string{
		fmt.Sprintf("v4l2src device=%s", cfg.Device),
		fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.Framerate),
	}
	if cfg.VFlip {
		elems = append(elems, "videoflip method=vertical-flip")
	}
	elems = append(elems,
		"videoconvert",
		"x264enc tune=zerolatency speed-preset=ultrafast",
		"h264parse",
		fmt.Sprintf("filesink location=%q", path),
	)
	return strings.Join(elems, " ! ")
}

func (c *gstreamerCamera) BeginStream(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline != nil {
		return errors.New("stream already running")
	}

	gstInit.Do(func() { gst.Init(nil) })

	pipeline, err := gst.NewPipelineFromString(GStreamerLaunch(c.cfg, path))
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return fmt.Errorf("starting pipeline: %w", err)
	}

	c.pipeline = pipeline
	c.started = time.Now()
	c.quit = make(chan struct{})
	c.watched = make(chan struct{})
	c.died = make(chan error, 1)
	c.fault = nil
	go c.watchBus(pipeline.GetPipelineBus(), c.quit, c.watched, c.died, &c.fault)
	c.logger.Debugw("gstreamer pipeline playing", "path", path, "device", c.cfg.Device)
	return nil
}

// watchBus reports an error or an unrequested EOS while the pipeline plays.
// It owns the bus until quit is closed.
func (c *gstreamerCamera) watchBus(bus *gst.Bus, quit <-chan struct{}, watched chan<- struct{}, died chan<- error, fault *error) {
	defer close(watched)
	for {
		select {
		case <-quit:
			return
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			*fault = fmt.Errorf("pipeline error: %s (%s)", gerr.Error(), gerr.DebugString())
		case gst.MessageEOS:
			*fault = errors.New("pipeline reached EOS before stop")
		default:
			continue
		}
		died <- *fault
		return
	}
}

// Exited delivers a pipeline failure seen before EndStream.
func (c *gstreamerCamera) Exited() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.died
}

// EndStream sends EOS, waits for it to drain through the filesink, then
// tears the pipeline down.
func (c *gstreamerCamera) EndStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipeline == nil {
		return errors.New("stream not running")
	}
	pipeline := c.pipeline
	c.pipeline = nil
	c.died = nil
	defer func() {
		if err := pipeline.SetState(gst.StateNull); err != nil {
			c.logger.Warnw("gstreamer pipeline did not reach NULL", "error", err)
		}
	}()

	close(c.quit)
	<-c.watched
	if c.fault != nil {
		return c.fault
	}

	if !pipeline.SendEvent(gst.NewEOSEvent()) {
		return errors.New("pipeline rejected EOS")
	}

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(eosTimeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			c.logger.Debugw("gstreamer stream finalized", "uptime", time.Since(c.started))
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("pipeline error: %s (%s)", gerr.Error(), gerr.DebugString())
		}
	}
	return fmt.Errorf("no EOS within %s", eosTimeout)
}
