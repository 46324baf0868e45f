// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package capture_app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rapidaai/motioncam/api/capture-api/config"
	internal_audio_device "github.com/rapidaai/motioncam/api/capture-api/internal/audio/device"
	internal_mux "github.com/rapidaai/motioncam/api/capture-api/internal/mux"
	internal_camera "github.com/rapidaai/motioncam/api/capture-api/internal/video/camera"
)

// Check is one prerequisite verdict.
type Check struct {
	Name    string
	OK      bool
	Message string
}

// Doctor verifies external tools and the output directory.
type Doctor struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

func NewDoctor() *Doctor {
	return &Doctor{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run checks only what the enabled modes need.
func (d *Doctor) Run(cfg *config.AppConfig) []Check {
	var checks []Check
	if cfg.Capture.Audio {
		checks = append(checks, d.checkTool("arecord", internal_audio_device.DefaultArecordBinary))
	}
	if cfg.Capture.Video {
		switch cfg.Video.Backend {
		case internal_camera.BackendGStreamer:
			dev := cfg.Video.Device
			if dev == "" {
				dev = internal_camera.DefaultV4L2Device
			}
			checks = append(checks, d.checkDevice(dev))
		default:
			bin := cfg.Video.Device
			if bin == "" {
				bin = internal_camera.DefaultRPiCamBinary
			}
			checks = append(checks, d.checkTool("rpicam-vid", bin))
		}
	}
	if cfg.Capture.Audio && cfg.Capture.Video {
		bin := cfg.Mux.FFmpegPath
		if bin == "" {
			bin = internal_mux.DefaultFFmpegBinary
		}
		checks = append(checks, d.checkTool("ffmpeg", bin))
	}
	return append(checks, d.checkOutputDir(cfg.Capture.OutputDir))
}

func (d *Doctor) checkTool(name, bin string) Check {
	path, err := d.lookPath(bin)
	if err != nil {
		return Check{Name: name, Message: fmt.Sprintf("%s not found in PATH", bin)}
	}
	return Check{Name: name, OK: true, Message: path}
}

func (d *Doctor) checkDevice(dev string) Check {
	if _, err := d.stat(dev); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Check{Name: "camera", Message: fmt.Sprintf("%s does not exist", dev)}
		}
		return Check{Name: "camera", Message: err.Error()}
	}
	return Check{Name: "camera", OK: true, Message: dev}
}

func (d *Doctor) checkOutputDir(dir string) Check {
	if err := d.mkdirAll(dir, 0o755); err != nil {
		return Check{Name: "output directory", Message: err.Error()}
	}
	f, err := d.createTemp(dir, ".motioncam-doctor-*")
	if err != nil {
		return Check{Name: "output directory", Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := f.Name()
	f.Close()
	_ = d.remove(name)
	return Check{Name: "output directory", OK: true, Message: dir}
}

// PrintChecks writes one line per check and reports whether all passed.
func PrintChecks(w io.Writer, checks []Check) bool {
	ok := true
	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
			ok = false
		}
		fmt.Fprintf(w, "[%-4s] %-18s %s\n", mark, c.Name, c.Message)
	}
	return ok
}
