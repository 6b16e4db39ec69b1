// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"time"
)

// Raiser accepts timer events
type Raiser interface {
	RaiseSend()
	RaisePoll()
}

// Cadence is a deterministic millisecond clock that raises the send and
// poll flags every SendPeriod and PollPeriod ticks
type Cadence struct {
	SendPeriod int
	PollPeriod int

	target Raiser
	ticks  int64
}

// NewCadence creates a cadence driving target. Periods below 1 disable
// the respective flag.
func NewCadence(sendPeriodMs, pollPeriodMs int, target Raiser) *Cadence {
	return &Cadence{SendPeriod: sendPeriodMs, PollPeriod: pollPeriodMs, target: target}
}

// Tick advances the clock by one millisecond
func (c *Cadence) Tick() {
	c.ticks++
	if c.SendPeriod > 0 && c.ticks%int64(c.SendPeriod) == 0 {
		c.target.RaiseSend()
	}
	if c.PollPeriod > 0 && c.ticks%int64(c.PollPeriod) == 0 {
		c.target.RaisePoll()
	}
}

// Ticks returns the elapsed milliseconds
func (c *Cadence) Ticks() int64 {
	return c.ticks
}

// Now returns the cadence time as an offset from base
func (c *Cadence) Now(base time.Time) time.Time {
	return base.Add(time.Duration(c.ticks) * time.Millisecond)
}

// StartTimers raises the send and poll flags from wall-clock tickers
// until ctx is done. A zero period disables that timer.
func StartTimers(ctx context.Context, target Raiser, send, poll time.Duration) {
	start := func(period time.Duration, raise func()) {
		if period <= 0 {
			return
		}
		go func() {
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					raise()
				}
			}
		}()
	}
	start(send, target.RaiseSend)
	start(poll, target.RaisePoll)
}
