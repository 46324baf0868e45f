// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

// edgePoll bounds how long Watch blocks before rechecking ctx.
const edgePoll = 250 * time.Millisecond

var errAlreadyWatching = errors.New("motion sensor already watched")

type pirSensor struct {
	logger commons.Logger
	pin    gpio.PinIn

	mu       sync.Mutex
	watching bool
}

// NewPIRSensor opens the PIR output on a GPIO pin by name, e.g. "GPIO4".
func NewPIRSensor(logger commons.Logger, pinName string) (internal_type.MotionSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing gpio host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", pinName)
	}
	return newPIRSensor(logger, pin)
}

func newPIRSensor(logger commons.Logger, pin gpio.PinIn) (*pirSensor, error) {
	if err := pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("configuring %s as input: %w", pin, err)
	}
	logger.Debugw("pir sensor ready", "pin", pin.Name())
	return &pirSensor{logger: logger, pin: pin}, nil
}

func (s *pirSensor) MotionDetected() bool {
	return s.pin.Read() == gpio.High
}

// Watch calls onMotion for each rising edge until ctx is done. Only one
// watcher is allowed per sensor.
func (s *pirSensor) Watch(ctx context.Context, onMotion func()) error {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return errAlreadyWatching
	}
	s.watching = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watching = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !s.pin.WaitForEdge(edgePoll) {
			continue
		}
		if s.pin.Read() != gpio.High {
			continue
		}
		s.logger.Debugw("motion edge", "pin", s.pin.Name())
		onMotion()
	}
}
