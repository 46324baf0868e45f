// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package capture_app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rapidaai/motioncam/api/capture-api/config"
	internal_audio_capture "github.com/rapidaai/motioncam/api/capture-api/internal/audio/capture"
	internal_audio_device "github.com/rapidaai/motioncam/api/capture-api/internal/audio/device"
	internal_ledger "github.com/rapidaai/motioncam/api/capture-api/internal/ledger"
	internal_motion "github.com/rapidaai/motioncam/api/capture-api/internal/motion"
	internal_mux "github.com/rapidaai/motioncam/api/capture-api/internal/mux"
	internal_session "github.com/rapidaai/motioncam/api/capture-api/internal/session"
	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	internal_camera "github.com/rapidaai/motioncam/api/capture-api/internal/video/camera"
	internal_video_capture "github.com/rapidaai/motioncam/api/capture-api/internal/video/capture"
	capture_routers "github.com/rapidaai/motioncam/api/capture-api/router"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const httpShutdownTimeout = 5 * time.Second

// App holds every long-lived component of one motioncam process.
type App struct {
	Config     *config.AppConfig
	Logger     commons.Logger
	Ledger     internal_ledger.Store
	Controller *internal_session.Controller

	dispatcher *internal_mux.Dispatcher
}

// New builds captures, muxer, ledger and controller from cfg. Devices are
// not opened until the first session starts.
func New(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	ledger := internal_ledger.NewNoopStore()
	if cfg.Ledger.Path != "" {
		store, err := internal_ledger.NewSQLiteStore(cfg.Ledger.Path, logger)
		if err != nil {
			return nil, err
		}
		ledger = store
	}

	startSeq, err := internal_session.ResolveStartSequence(ctx, ledger, cfg.Capture.StartSequence, cfg.Capture.ResumeSequence)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("resolving start sequence: %w", err)
	}

	var audio, video internal_type.Capture
	if cfg.Capture.Audio {
		device := internal_audio_device.NewArecordDevice(logger, cfg.Audio.Device)
		audio = internal_audio_capture.NewAudioCapture(logger, device)
	}
	if cfg.Capture.Video {
		camera, err := internal_camera.NewCamera(logger, cfg.Video.Backend, internal_camera.CameraConfig{
			Width:     cfg.Capture.Width,
			Height:    cfg.Capture.Height,
			VFlip:     cfg.Capture.VFlip,
			Framerate: cfg.Video.Framerate,
			Device:    cfg.Video.Device,
		})
		if err != nil {
			ledger.Close()
			return nil, err
		}
		video = internal_video_capture.NewVideoCapture(logger, camera)
	}

	var controller *internal_session.Controller
	var dispatcher *internal_mux.Dispatcher
	var submitter internal_session.MuxSubmitter
	if cfg.Capture.Audio && cfg.Capture.Video {
		muxer := internal_mux.NewFFmpegMuxer(logger, cfg.Mux.FFmpegPath)
		dispatcher = internal_mux.NewDispatcher(logger, muxer, cfg.Mux.Workers,
			internal_mux.WithResultFunc(func(job internal_mux.MuxJob, err error) {
				controller.MuxResult(job, err)
			}))
		submitter = dispatcher
	}

	controller, err = internal_session.NewController(logger, internal_session.Config{
		OutputDir:        cfg.Capture.OutputDir,
		Prefix:           cfg.Capture.Prefix,
		Window:           cfg.Capture.Window(),
		Audio:            cfg.Capture.Audio,
		Video:            cfg.Capture.Video,
		StartSequence:    startSeq,
		ExtendOnPresence: cfg.Motion.ExtendOnPresence,
	}, audio, video, submitter, internal_session.WithLedger(ledger))
	if err != nil {
		ledger.Close()
		return nil, err
	}

	logger.Infow("motioncam ready",
		"audio", cfg.Capture.Audio, "video", cfg.Capture.Video,
		"window", cfg.Capture.Window(), "output", cfg.Capture.OutputDir,
		"next_sequence", startSeq)
	return &App{Config: cfg, Logger: logger, Ledger: ledger, Controller: controller, dispatcher: dispatcher}, nil
}

// Run watches the PIR sensor until ctx is done and serves the status API
// when enabled. It returns after the controller has shut down.
func (a *App) Run(ctx context.Context) error {
	sensor, err := internal_motion.NewPIRSensor(a.Logger, a.Config.Motion.GPIO)
	if err != nil {
		_ = a.Controller.Shutdown(context.Background())
		return err
	}
	return a.RunWithSensor(ctx, sensor)
}

// RunWithSensor is Run with a caller-supplied sensor.
func (a *App) RunWithSensor(ctx context.Context, sensor internal_type.MotionSensor) error {
	monitor := internal_session.NewMonitor(a.Logger, a.Controller, sensor,
		internal_session.WithTickInterval(a.Config.Capture.TickInterval),
		internal_session.WithShutdownTimeout(a.Config.Mux.ShutdownTimeout))

	if !a.Config.HTTP.Enabled {
		return monitor.Run(ctx)
	}

	server := &http.Server{
		Addr:    a.Config.HTTP.Address,
		Handler: capture_routers.NewEngine(a.Config, a.Logger, a.Controller, a.Ledger),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Infof("status server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := monitor.Run(gctx)
		sctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return errors.Join(err, server.Shutdown(sctx))
	})
	return g.Wait()
}

// Shutdown shuts the controller down within mux.shutdown_timeout.
func (a *App) Shutdown() error {
	ctx, cancel := internal_session.ShutdownContext(a.Config.Mux.ShutdownTimeout)
	defer cancel()
	return a.Controller.Shutdown(ctx)
}

// Close releases the ledger once every mux job has reported. When
// mux.shutdown_timeout cut the wait short the ledger is left open for the
// jobs still running.
func (a *App) Close() error {
	if a.dispatcher != nil {
		ctx, cancel := internal_session.ShutdownContext(a.Config.Mux.ShutdownTimeout)
		defer cancel()
		if err := a.dispatcher.Wait(ctx); err != nil {
			a.Logger.Warnw("mux jobs still running, ledger left open", "error", err)
			return err
		}
	}
	return a.Ledger.Close()
}
