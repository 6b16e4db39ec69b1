// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package radio implements the telemetry framing used on the radio link.
//
// Each telemetry packet is an identifier byte followed by its payload.
// With implicit framing the payload length comes from a table shared by
// both ends; with length-prefixed framing a length byte follows the
// identifier. The framing is fixed per deployment and never detected.
package radio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Framing selects the wire layout of a telemetry packet
type Framing int

// Supported framings
const (
	FramingImplicit       Framing = iota // [id][payload]
	FramingLengthPrefixed                // [id][len][payload]
)

func (f Framing) String() string {
	switch f {
	case FramingImplicit:
		return "implicit"
	case FramingLengthPrefixed:
		return "length-prefixed"
	}
	return fmt.Sprintf("framing(%d)", int(f))
}

// ParseFraming resolves a framing name from configuration
func ParseFraming(name string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "implicit":
		return FramingImplicit, nil
	case "length-prefixed", "length_prefixed", "prefixed":
		return FramingLengthPrefixed, nil
	}
	return 0, fmt.Errorf("unknown radio framing %q", name)
}

// Packet size limits
const (
	MaxPayloadSize = 60
	MaxPacketSize  = 2 + MaxPayloadSize
)

// Radio bring-up defaults
const (
	DefaultHandshake       = "bb"
	DefaultHandshakeSettle = 100 * time.Millisecond
)

// Sentinel errors
var (
	ErrUnknownTelemetry = errors.New("unknown telemetry id")
	ErrPayloadTooLarge  = errors.New("telemetry payload too large")
	ErrLengthMismatch   = errors.New("telemetry length mismatch")
)

// Decoder states (internal)
const (
	stateID = iota
	stateLength
	statePayload
)
