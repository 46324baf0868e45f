// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	internal_ledger "github.com/rapidaai/motioncam/api/capture-api/internal/ledger"
	internal_mux "github.com/rapidaai/motioncam/api/capture-api/internal/mux"
	internal_type "github.com/rapidaai/motioncam/api/capture-api/internal/type"
	"github.com/rapidaai/motioncam/pkg/commons"
)

const ledgerTimeout = 2 * time.Second

// Controller owns at most one recording session. It starts one on a motion
// edge, extends it on further edges and closes it on the first tick that
// finds the window expired with no motion present.
//
// Every transition, including stopping and joining the captures, runs under
// one mutex, so a motion edge that arrives during a close is applied after it.
type Controller struct {
	logger commons.Logger
	cfg    Config
	audio  internal_type.Capture
	video  internal_type.Capture
	mux    MuxSubmitter
	ledger internal_ledger.Store
	now    func() time.Time

	mu      sync.Mutex
	state   State
	session *Session
	nextSeq int

	started   atomic.Int64
	closed    atomic.Int64
	degraded  atomic.Int64
	muxed     atomic.Int64
	muxFailed atomic.Int64

	// mux failures reported while Shutdown drains the dispatcher
	drainMu       sync.Mutex
	draining      bool
	drainFailures []error
}

type Option func(*Controller)

// WithClock replaces time.Now for motion timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLedger records every session in store.
func WithLedger(store internal_ledger.Store) Option {
	return func(c *Controller) { c.ledger = store }
}

// NewController validates cfg against the captures supplied: audio must be
// non-nil when cfg.Audio is set, likewise video. mux may be nil only when
// one of the modes is disabled.
func NewController(logger commons.Logger, cfg Config, audio, video internal_type.Capture, mux MuxSubmitter, opts ...Option) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Audio && audio == nil {
		return nil, errors.New("audio enabled without an audio capture")
	}
	if cfg.Video && video == nil {
		return nil, errors.New("video enabled without a video capture")
	}
	if cfg.Audio && cfg.Video && mux == nil {
		return nil, errors.New("audio and video enabled without a muxer")
	}
	if !cfg.Audio {
		audio = nil
	}
	if !cfg.Video {
		video = nil
	}

	c := &Controller{
		logger:  logger,
		cfg:     cfg,
		audio:   audio,
		video:   video,
		mux:     mux,
		ledger:  internal_ledger.NewNoopStore(),
		now:     time.Now,
		state:   StateIdle,
		nextSeq: cfg.StartSequence,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) captures() []internal_type.Capture {
	out := make([]internal_type.Capture, 0, 2)
	if c.audio != nil {
		out = append(out, c.audio)
	}
	if c.video != nil {
		out = append(out, c.video)
	}
	return out
}

// OnMotionStart opens a session when idle, otherwise restarts its window.
func (c *Controller) OnMotionStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	switch c.state {
	case StateShutdown:
		return internal_type.ErrShutdown
	case StateRecording:
		c.session.LastMotion = now
		c.logger.Debugw("motion extends session", "session", c.session.ID, "sequence", c.session.Sequence)
		return nil
	}

	seq := c.nextSeq
	c.nextSeq++
	s := &Session{
		ID:         uuid.New().String(),
		Sequence:   seq,
		BasePath:   filepath.Join(c.cfg.OutputDir, c.cfg.Prefix+strconv.Itoa(seq)),
		StartedAt:  now,
		LastMotion: now,
	}
	c.started.Add(1)
	c.recordBegin(s)

	if err := c.startCaptures(s); err != nil {
		c.degraded.Add(1)
		c.recordFinish(s, internal_ledger.StatusDegraded, now)
		c.recordMux(s.ID, internal_ledger.MuxSkipped, err.Error())
		c.logger.Errorw("session could not start", "session", s.ID, "sequence", seq, "error", err)
		return err
	}

	c.session = s
	c.state = StateRecording
	c.logger.Infow("recording started", "session", s.ID, "sequence", seq, "base", s.BasePath,
		"audio", c.audio != nil, "video", c.video != nil)
	return nil
}

// startCaptures starts every enabled capture. On failure the ones already
// started are stopped and the start error is returned.
func (c *Controller) startCaptures(s *Session) error {
	var running []internal_type.Capture
	for _, cp := range c.captures() {
		err := cp.Start(s.BasePath + cp.Extension())
		if errors.Is(err, internal_type.ErrAlreadyCapturing) {
			c.logger.Debugw("capture already running", "extension", cp.Extension())
			running = append(running, cp)
			continue
		}
		if err != nil {
			if stopErr := c.stopAll(running); stopErr != nil {
				c.logger.Warnw("stopping partial session", "session", s.ID, "error", stopErr)
			}
			return err
		}
		running = append(running, cp)
	}
	return nil
}

// stopAll stops captures in parallel and returns their joined errors.
// Duplicate stops are ignored.
func (c *Controller) stopAll(captures []internal_type.Capture) error {
	errs := make([]error, len(captures))
	var g errgroup.Group
	for i, cp := range captures {
		g.Go(func() error {
			err := cp.Stop()
			if errors.Is(err, internal_type.ErrNotCapturing) {
				c.logger.Debugw("capture already stopped", "extension", cp.Extension())
				err = nil
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Tick closes the session once now is past lastMotion+window and motion is
// not present. A capture that failed on its own closes the session degraded
// at once.
func (c *Controller) Tick(now time.Time, motionPresent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateShutdown:
		return internal_type.ErrShutdown
	case StateIdle:
		return nil
	}

	if fault := c.captureFault(); fault != nil {
		c.logger.Errorw("capture failed mid-session", "session", c.session.ID, "error", fault)
		return c.closeSession(now, fault)
	}

	if motionPresent && c.cfg.ExtendOnPresence {
		c.session.LastMotion = now
		return nil
	}
	if now.Sub(c.session.LastMotion) <= c.cfg.Window {
		return nil
	}
	if motionPresent {
		return nil
	}
	return c.closeSession(now, nil)
}

func (c *Controller) captureFault() error {
	for _, cp := range c.captures() {
		if h, ok := cp.(internal_type.CaptureHealth); ok {
			if err := h.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// closeSession stops the captures and, for a clean audio+video session,
// submits the mux job. Caller holds mu.
func (c *Controller) closeSession(now time.Time, fault error) error {
	s := c.session
	stopErr := c.stopAll(c.captures())
	c.session = nil
	c.state = StateIdle

	if err := errors.Join(fault, stopErr); err != nil {
		c.degraded.Add(1)
		c.recordFinish(s, internal_ledger.StatusDegraded, now)
		c.recordMux(s.ID, internal_ledger.MuxSkipped, err.Error())
		c.logger.Errorw("session closed degraded", "session", s.ID, "sequence", s.Sequence, "error", err)
		return fmt.Errorf("session %d: %w", s.Sequence, err)
	}

	c.closed.Add(1)
	c.recordFinish(s, internal_ledger.StatusClosed, now)
	c.logger.Infow("recording stopped", "session", s.ID, "sequence", s.Sequence,
		"duration", now.Sub(s.StartedAt))

	if c.audio == nil || c.video == nil {
		c.recordMux(s.ID, internal_ledger.MuxSkipped, "")
		return nil
	}
	job := internal_mux.NewMuxJob(s.ID, s.Sequence, s.BasePath)
	c.recordMux(s.ID, internal_ledger.MuxPending, "")
	c.mux.Submit(job)
	return nil
}

// MuxResult records the outcome of a job submitted by this controller.
func (c *Controller) MuxResult(job internal_mux.MuxJob, err error) {
	if err != nil {
		c.muxFailed.Add(1)
		c.recordMux(job.SessionID, internal_ledger.MuxFailed, err.Error())
		c.drainMu.Lock()
		if c.draining {
			c.drainFailures = append(c.drainFailures, err)
		}
		c.drainMu.Unlock()
		return
	}
	c.muxed.Add(1)
	c.recordMux(job.SessionID, internal_ledger.MuxMuxed, job.OutputPath)
}

// Shutdown closes any open session, waits for in-flight mux jobs and leaves
// the controller terminal. Mux failures of jobs finishing during Shutdown
// are returned, not fatal; earlier ones are only in the ledger.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateShutdown {
		c.mu.Unlock()
		return internal_type.ErrShutdown
	}
	c.drainMu.Lock()
	c.draining = true
	c.drainMu.Unlock()

	var closeErr error
	if c.state == StateRecording {
		closeErr = c.closeSession(c.now(), nil)
	}
	c.state = StateShutdown
	c.mu.Unlock()

	var waitErr error
	if c.mux != nil {
		waitErr = c.mux.Wait(ctx)
	}
	c.logger.Infow("controller shut down",
		"sessions", c.started.Load(), "degraded", c.degraded.Load(),
		"muxed", c.muxed.Load(), "mux_failed", c.muxFailed.Load())

	c.drainMu.Lock()
	failures := c.drainFailures
	c.drainFailures = nil
	c.drainMu.Unlock()
	return errors.Join(append([]error{closeErr, waitErr}, failures...)...)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:        c.state.String(),
		NextSequence: c.nextSeq,
		Window:       c.cfg.Window.String(),
		Audio:        c.audio != nil,
		Video:        c.video != nil,
		Counters: Counters{
			Started:   c.started.Load(),
			Closed:    c.closed.Load(),
			Degraded:  c.degraded.Load(),
			Muxed:     c.muxed.Load(),
			MuxFailed: c.muxFailed.Load(),
		},
	}
	if c.session != nil {
		cp := *c.session
		snap.Session = &cp
	}
	return snap
}

func (c *Controller) recordBegin(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	err := c.ledger.Begin(ctx, &internal_ledger.SessionRecord{
		SessionID: s.ID,
		Sequence:  s.Sequence,
		BasePath:  s.BasePath,
		Audio:     c.audio != nil,
		Video:     c.video != nil,
		StartedAt: s.StartedAt,
	})
	if err != nil {
		c.logger.Warnw("ledger begin failed", "session", s.ID, "error", err)
	}
}

func (c *Controller) recordFinish(s *Session, status string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := c.ledger.Finish(ctx, s.ID, status, at); err != nil {
		c.logger.Warnw("ledger finish failed", "session", s.ID, "error", err)
	}
}

func (c *Controller) recordMux(sessionID, status, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := c.ledger.RecordMux(ctx, sessionID, status, detail); err != nil {
		c.logger.Warnw("ledger mux update failed", "session", sessionID, "error", err)
	}
}

// ResolveStartSequence returns configured, or one past the highest sequence
// in the ledger when resume is set and that is larger.
func ResolveStartSequence(ctx context.Context, store internal_ledger.Store, configured int, resume bool) (int, error) {
	if !resume {
		return configured, nil
	}
	last, err := store.LastSequence(ctx)
	if err != nil {
		return 0, err
	}
	return max(configured, last+1), nil
}
