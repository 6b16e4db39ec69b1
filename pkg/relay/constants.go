// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay implements the CAN to radio telemetry relay core.
//
// Inbound CAN frames are routed into fixed-size pages, pages of silent
// sources are cleared after a timeout, and two rotations emit radio
// telemetry packets and CAN poll requests at fixed cadences. A single
// state machine drains frames before any scheduled output.
package relay

import "fmt"

// CAN identifier space
const (
	MaxStandardID   = 0x7FF
	ReservedIDStart = 0x7F0 // bootloader block of the motor controller
	ReservedIDEnd   = 0x7FF
	MaxFrameLength  = 8
)

// Page and telemetry limits
const (
	MaxPageSize        = 60
	MaxTelemetryLength = 60
)

// Default cadences (milliseconds) and staleness thresholds (send ticks)
const (
	DefaultSendPeriodMs   = 50
	DefaultPollPeriodMs   = 200
	DefaultStaleThreshold = 8
	// each MPPT answers once per full poll rotation (6 × 200 ms)
	DefaultMPPTStaleThreshold = 32
	DefaultInboxDepth         = 2
)

// Source is a monitored bus participant
type Source uint8

// Monitored sources
const (
	SourceMotor Source = iota
	SourceDriverControls
	SourceBPS
	SourceMPPT1
	SourceMPPT2
	SourceMPPT3
	SourceMPPT4
	sourceCount
)

var sourceNames = [...]string{
	SourceMotor:          "motor",
	SourceDriverControls: "driver_controls",
	SourceBPS:            "bps",
	SourceMPPT1:          "mppt1",
	SourceMPPT2:          "mppt2",
	SourceMPPT3:          "mppt3",
	SourceMPPT4:          "mppt4",
}

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	return s < sourceCount
}

func (s Source) String() string {
	if !s.Valid() {
		return fmt.Sprintf("source(%d)", uint8(s))
	}
	return sourceNames[s]
}

// ParseSource resolves a source name as used in configuration files
func ParseSource(name string) (Source, error) {
	for i, n := range sourceNames {
		if n == name {
			return Source(i), nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

// AllSources returns every known source
func AllSources() []Source {
	out := make([]Source, 0, sourceCount)
	for s := Source(0); s < sourceCount; s++ {
		out = append(out, s)
	}
	return out
}

// State is the relay state machine state
type State int

// Relay states
const (
	StateIdle State = iota
	StateDataReceived
	StateDataSending
	StateDataPolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDataReceived:
		return "DATA_RECEIVED"
	case StateDataSending:
		return "DATA_SENDING"
	case StateDataPolling:
		return "DATA_POLLING"
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}
