// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const DefaultTickInterval = 100 * time.Millisecond

// ShutdownContext bounds a shutdown by timeout. Zero or less means wait for
// as long as the mux jobs take.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Monitor feeds sensor edges and periodic ticks into a Controller and shuts
// it down when the run context ends.
type Monitor struct {
	logger          commons.Logger
	controller      *Controller
	sensor          internal_type.MotionSensor
	interval        time.Duration
	shutdownTimeout time.Duration
	now             func() time.Time
}

type MonitorOption func(*Monitor)

func WithTickInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithShutdownTimeout bounds how long Run waits for pending mux jobs. The
// default is no bound.
func WithShutdownTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.shutdownTimeout = d }
}

func withMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(logger commons.Logger, controller *Controller, sensor internal_type.MotionSensor, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		logger:     logger,
		controller: controller,
		sensor:     sensor,
		interval:   DefaultTickInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run blocks until ctx is done or the sensor fails, then shuts the
// controller down. The returned error joins a sensor failure with any
// shutdown failure.
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.sensor.Watch(gctx, m.onMotion)
	})
	g.Go(func() error {
		m.tickLoop(gctx)
		return nil
	})
	runErr := g.Wait()
	if runErr != nil {
		m.logger.Errorw("motion sensor stopped", "error", runErr)
	}

	m.logger.Infow("stopping, finishing open session and pending mux jobs")
	sctx, cancel := ShutdownContext(m.shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, m.controller.Shutdown(sctx))
}

func (m *Monitor) onMotion() {
	if err := m.controller.OnMotionStart(); err != nil {
		if errors.Is(err, internal_type.ErrShutdown) {
			m.logger.Debugw("motion after shutdown ignored")
			return
		}
		m.logger.Errorw("motion start failed", "error", err)
	}
}

func (m *Monitor) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.controller.Tick(m.now(), m.sensor.MotionDetected()); err != nil {
				m.logger.Errorw("tick failed", "error", err)
			}
		}
	}
}
