// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

// Inbox is the bounded handoff from the CAN receive path to the main loop.
// Deliver is called by exactly one producer goroutine and never blocks.
type Inbox struct {
	frames chan Frame
	wake   chan<- struct{}
	stats  *Statistics
}

func newInbox(depth int, wake chan<- struct{}, stats *Statistics) *Inbox {
	if depth < 1 {
		depth = DefaultInboxDepth
	}
	return &Inbox{
		frames: make(chan Frame, depth),
		wake:   wake,
		stats:  stats,
	}
}

// Deliver hands a frame to the main loop. When every slot holds an
// unread frame the new frame is dropped, counted as an overrun, and
// false is returned.
func (in *Inbox) Deliver(f Frame) bool {
	select {
	case in.frames <- f:
	default:
		in.stats.Overruns.Add(1)
		return false
	}
	signal(in.wake)
	return true
}

// Pending returns the number of unread frames
func (in *Inbox) Pending() int {
	return len(in.frames)
}

// Depth returns the number of frame slots
func (in *Inbox) Depth() int {
	return cap(in.frames)
}

func signal(wake chan<- struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}
