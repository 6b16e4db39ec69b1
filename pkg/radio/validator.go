// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyStale
	AnomalyInvalidFloat
	AnomalyInvalidTemp
	AnomalyDecodeError
)

// Plausibility limits
const (
	maxBatteryTemp = 80  // °C, int8 cell temperatures
	minBatteryTemp = -40 // °C
	maxMPPTTemp    = 120 // °C
)

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks a decoded packet against its table length and
// the plausible ranges of the default telemetry. Returns an empty slice
// for a valid packet.
func ValidatePacket(p *Packet, lengths map[uint8]int, order binary.ByteOrder) []ValidationError {
	errors := []ValidationError{}

	if want, ok := lengths[p.id]; ok && want != len(p.payload) {
		return append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s payload %d bytes, expected %d", FormatTelemetryType(p.id), len(p.payload), want),
		})
	}

	if p.IsZero() && len(p.payload) > 0 {
		return append(errors, ValidationError{
			Type:    AnomalyStale,
			Message: fmt.Sprintf("%s has no recent data", FormatTelemetryType(p.id)),
		})
	}

	switch p.id {
	case relay.TelemMotorBusVI, relay.TelemMotorVelocity, relay.TelemMotorHSTemp,
		relay.TelemMotorDSPTemp, relay.TelemDriverCommand:
		errors = append(errors, validateFloats(p, order)...)
	case relay.TelemBPSTemperature:
		errors = append(errors, validateBatteryTemps(p)...)
	case relay.TelemMPPT:
		errors = append(errors, validateMPPT(p)...)
	}

	return errors
}

func validateFloats(p *Packet, order binary.ByteOrder) []ValidationError {
	lo, hi, err := relay.DecodeFloatPair(p.payload, order)
	if err != nil {
		return []ValidationError{{Type: AnomalyDecodeError, Message: err.Error()}}
	}
	var errors []ValidationError
	for _, f := range []float32{lo, hi} {
		v := float64(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidFloat,
				Message: fmt.Sprintf("%s carries non-finite value %v", FormatTelemetryType(p.id), f),
			})
		}
	}
	return errors
}

func validateBatteryTemps(p *Packet) []ValidationError {
	var errors []ValidationError
	for i, b := range p.payload {
		t := int(int8(b))
		if t > maxBatteryTemp || t < minBatteryTemp {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidTemp,
				Message: fmt.Sprintf("battery temperature %d = %d C out of range", i, t),
			})
		}
	}
	return errors
}

func validateMPPT(p *Packet) []ValidationError {
	var errors []ValidationError
	for ch := 0; ch+8 <= len(p.payload); ch += 8 {
		m, _ := ParseMPPT(p.payload[ch : ch+8])
		if int(m.Temp) > maxMPPTTemp {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidTemp,
				Message: fmt.Sprintf("mppt%d temperature %d C out of range", ch/8+1, m.Temp),
			})
		}
	}
	return errors
}
