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

	internal_mux "github.com/rapidaai/motioncam/api/capture-api/internal/mux"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Config is fixed once the controller is built.
type Config struct {
	OutputDir string
	Prefix    string
	Window    time.Duration
	Audio     bool
	Video     bool
	// StartSequence is the number given to the first session.
	StartSequence int
	// ExtendOnPresence makes a tick that observes motion refresh the window.
	ExtendOnPresence bool
}

func (c Config) validate() error {
	if !c.Audio && !c.Video {
		return errors.New("at least one of audio or video must be enabled")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	if c.StartSequence < 0 {
		return errors.New("start sequence must not be negative")
	}
	return nil
}

// Session is the recording in progress.
type Session struct {
	ID         string    `json:"id"`
	Sequence   int       `json:"sequence"`
	BasePath   string    `json:"basePath"`
	StartedAt  time.Time `json:"startedAt"`
	LastMotion time.Time `json:"lastMotion"`
}

// Counters are cumulative since the controller was built.
type Counters struct {
	Started   int64 `json:"started"`
	Closed    int64 `json:"closed"`
	Degraded  int64 `json:"degraded"`
	Muxed     int64 `json:"muxed"`
	MuxFailed int64 `json:"muxFailed"`
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State        string   `json:"state"`
	Session      *Session `json:"session,omitempty"`
	NextSequence int      `json:"nextSequence"`
	Window       string   `json:"window"`
	Audio        bool     `json:"audio"`
	Video        bool     `json:"video"`
	Counters     Counters `json:"counters"`
}

// MuxSubmitter runs mux jobs asynchronously.
type MuxSubmitter interface {
	Submit(job internal_mux.MuxJob)
	Wait(ctx context.Context) error
}
