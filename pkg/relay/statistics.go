// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Statistics tracks relay activity. Counters are atomic so the event
// domain (overruns) and observers can touch them without locks.
type Statistics struct {
	StartTime time.Time

	FramesRouted     atomic.Uint64
	LengthMismatches atomic.Uint64
	Overruns         atomic.Uint64
	StaleClears      atomic.Uint64
	Sends            atomic.Uint64
	SendDeferrals    atomic.Uint64
	Polls            atomic.Uint64
	PollDeferrals    atomic.Uint64
}

// StatisticsSnapshot is a point-in-time copy of Statistics
type StatisticsSnapshot struct {
	Elapsed          time.Duration
	FramesRouted     uint64
	LengthMismatches uint64
	Overruns         uint64
	StaleClears      uint64
	Sends            uint64
	SendDeferrals    uint64
	Polls            uint64
	PollDeferrals    uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Snapshot copies every counter
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		Elapsed:          time.Since(s.StartTime),
		FramesRouted:     s.FramesRouted.Load(),
		LengthMismatches: s.LengthMismatches.Load(),
		Overruns:         s.Overruns.Load(),
		StaleClears:      s.StaleClears.Load(),
		Sends:            s.Sends.Load(),
		SendDeferrals:    s.SendDeferrals.Load(),
		Polls:            s.Polls.Load(),
		PollDeferrals:    s.PollDeferrals.Load(),
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var frameRate, sendRate float64
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		frameRate = float64(snap.FramesRouted) / secs
		sendRate = float64(snap.Sends) / secs
	}

	result := fmt.Sprintf("=== Relay Statistics (%.0f seconds) ===\n", snap.Elapsed.Seconds())
	result += fmt.Sprintf("Frames Routed:   %8d\n", snap.FramesRouted)
	if snap.LengthMismatches > 0 {
		result += fmt.Sprintf("  Length Mismatch:  %5d\n", snap.LengthMismatches)
	}
	if snap.Overruns > 0 {
		result += fmt.Sprintf("  Rx Overruns:      %5d\n", snap.Overruns)
	}
	result += fmt.Sprintf("Telemetry Sent:  %8d\n", snap.Sends)
	if snap.SendDeferrals > 0 {
		result += fmt.Sprintf("  Deferred:         %5d\n", snap.SendDeferrals)
	}
	result += fmt.Sprintf("Polls Sent:      %8d\n", snap.Polls)
	if snap.PollDeferrals > 0 {
		result += fmt.Sprintf("  Deferred:         %5d\n", snap.PollDeferrals)
	}
	result += fmt.Sprintf("Stale Clears:    %8d\n", snap.StaleClears)
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", frameRate)
	result += fmt.Sprintf("Send Rate:       %8.1f pkts/sec\n", sendRate)
	result += "======================================\n"

	return result
}

// Reset zeroes every counter and restarts the clock
func (s *Statistics) Reset() {
	s.StartTime = time.Now()
	s.FramesRouted.Store(0)
	s.LengthMismatches.Store(0)
	s.Overruns.Store(0)
	s.StaleClears.Store(0)
	s.Sends.Store(0)
	s.SendDeferrals.Store(0)
	s.Polls.Store(0)
	s.PollDeferrals.Store(0)
}
