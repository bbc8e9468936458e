// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

// Package sync2 provides synchronization primitives for running recurring work.
package sync2

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/errs"
)

// Cycle implements a controllable recurring event.
//
// Cycle control methods don't have any effect after Stop has been called.
//
// Run must be only called once.
type Cycle struct {
	noCopy noCopy //nolint:structcheck

	running atomic.Bool

	interval time.Duration

	ticker  *time.Ticker
	control chan interface{}

	stopOnce sync.Once
	stopping chan struct{}
	stopped  chan struct{}

	init sync.Once
}

type (
	// cycle control messages.
	cyclePause          struct{}
	cycleContinue       struct{}
	cycleChangeInterval struct{ Interval time.Duration }
	cycleTrigger        struct{ done chan struct{} }
)

// NewCycle creates a new cycle with the specified interval.
func NewCycle(interval time.Duration) *Cycle {
	cycle := &Cycle{}
	cycle.SetInterval(interval)
	return cycle
}

// SetInterval allows to change the interval before starting.
func (cycle *Cycle) SetInterval(interval time.Duration) {
	cycle.interval = interval
}

func (cycle *Cycle) initialize() {
	cycle.init.Do(func() {
		cycle.stopping = make(chan struct{})
		cycle.stopped = make(chan struct{})
		cycle.control = make(chan interface{})
	})
}

// Run runs the specified function in an interval.
//
// Every interval `fn` is started.
// When `fn` is not fast enough, it may skip some of those executions.
// A non-positive interval is an error.
func (cycle *Cycle) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	cycle.initialize()
	if !cycle.running.CompareAndSwap(false, true) {
		panic("sync2.Cycle.Run called twice")
	}
	defer close(cycle.stopped)

	currentInterval := cycle.interval
	if currentInterval <= 0 {
		return errs.New("non-positive cycle interval %s", currentInterval)
	}
	cycle.ticker = time.NewTicker(currentInterval)
	defer cycle.ticker.Stop()

	if err := fn(ctx); err != nil {
		return err
	}
	for {
		// prioritize stopping messages
		select {
		case <-cycle.stopping:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case message := <-cycle.control:
			// handle control messages
			switch message := message.(type) {
			case cycleChangeInterval:
				if message.Interval > 0 {
					currentInterval = message.Interval
					cycle.ticker.Reset(currentInterval)
				}

			case cyclePause:
				cycle.ticker.Stop()

			case cycleContinue:
				cycle.ticker.Reset(currentInterval)

			case cycleTrigger:
				// trigger the function
				if err := fn(ctx); err != nil {
					return err
				}
				if message.done != nil {
					close(message.done)
				}
			}

		case <-cycle.stopping:
			return nil

		case <-ctx.Done():
			return ctx.Err()

		case <-cycle.ticker.C:
			// trigger the function
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}

// Close closes all resources associated with it.
//
// It MUST NOT be called concurrently.
func (cycle *Cycle) Close() {
	cycle.Stop()
	if cycle.running.Load() {
		<-cycle.stopped
	}
}

// sendControl sends a control message.
func (cycle *Cycle) sendControl(message interface{}) {
	cycle.initialize()
	select {
	case cycle.control <- message:
	case <-cycle.stopping:
	case <-cycle.stopped:
	}
}

// Stop stops the cycle permanently.
func (cycle *Cycle) Stop() {
	cycle.initialize()
	cycle.stopOnce.Do(func() {
		close(cycle.stopping)
	})
}

// ChangeInterval allows to change the ticker interval after it has started.
// It also resumes a paused cycle. Non-positive intervals are ignored.
func (cycle *Cycle) ChangeInterval(interval time.Duration) {
	cycle.sendControl(cycleChangeInterval{interval})
}

// Pause pauses the cycle.
func (cycle *Cycle) Pause() {
	cycle.sendControl(cyclePause{})
}

// Restart restarts the ticker from 0.
func (cycle *Cycle) Restart() {
	cycle.sendControl(cycleContinue{})
}

// Trigger ensures that the loop is done at least once.
// If it's currently running it waits for the previous to complete and then runs.
func (cycle *Cycle) Trigger() {
	cycle.sendControl(cycleTrigger{})
}

// TriggerWait ensures that the loop is done at least once and waits for completion.
// If it's currently running it waits for the previous to complete and then runs.
func (cycle *Cycle) TriggerWait() {
	done := make(chan struct{})

	cycle.sendControl(cycleTrigger{done})
	select {
	case <-done:
	case <-cycle.stopping:
	case <-cycle.stopped:
	}
}

// noCopy is used to ensure that we don't copy things that shouldn't be copied.
//
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock implements sync.Locker so go vet flags copies.
func (noCopy) Lock() {}

// Unlock implements sync.Locker so go vet flags copies.
func (noCopy) Unlock() {}
