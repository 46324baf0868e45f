// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_mux

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/rapidaai/motioncam/pkg/commons"
)

// ResultFunc is called once per job with its outcome. A dispatcher with a
// ResultFunc hands every failure to it and keeps none for Wait.
type ResultFunc func(job MuxJob, err error)

// Dispatcher runs mux jobs off the control flow with bounded concurrency.
type Dispatcher struct {
	logger   commons.Logger
	muxer    Muxer
	sem      *semaphore.Weighted
	onResult ResultFunc

	wg       sync.WaitGroup
	mu       sync.Mutex
	failures []error
}

type DispatcherOption func(*Dispatcher)

func WithResultFunc(fn ResultFunc) DispatcherOption {
	return func(d *Dispatcher) { d.onResult = fn }
}

func NewDispatcher(logger commons.Logger, muxer Muxer, workers int, opts ...DispatcherOption) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		logger: logger,
		muxer:  muxer,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit queues job and returns immediately. Jobs are not cancelled by the
// caller's context; Wait bounds how long shutdown waits for them.
func (d *Dispatcher) Submit(job MuxJob) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := context.Background()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.finish(job, err)
			return
		}
		defer d.sem.Release(1)
		d.finish(job, d.muxer.Mux(ctx, job))
	}()
}

func (d *Dispatcher) finish(job MuxJob, err error) {
	if err != nil {
		d.logger.Errorw("mux failed, sources kept", "session", job.SessionID,
			"audio", job.AudioPath, "video", job.VideoPath, "error", err)
	}
	if d.onResult != nil {
		d.onResult(job, err)
		return
	}
	if err != nil {
		d.mu.Lock()
		d.failures = append(d.failures, err)
		d.mu.Unlock()
	}
}

// Wait blocks until every submitted job has finished or ctx is done, and
// returns the failures collected since the previous Wait when no ResultFunc
// is set.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var ctxErr error
	select {
	case <-done:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	d.mu.Lock()
	failures := d.failures
	d.failures = nil
	d.mu.Unlock()
	return errors.Join(append(failures, ctxErr)...)
}
