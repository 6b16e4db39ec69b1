// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks telemetry reception and error rates on the ground side
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets     uint64
	ValidPackets     uint64
	DecodeErrors     uint64
	UnknownIDs       uint64
	LengthMismatches uint64
	StalePackets     uint64
	AnomalousValues  uint64
	InvalidFloats    uint64
	InvalidTemps     uint64

	// Per telemetry id
	PerID map[uint8]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		PerID:          make(map[uint8]uint64),
	}
}

// Update updates statistics based on a packet and its errors
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	if decodeErr != nil {
		switch {
		case errors.Is(decodeErr, ErrUnknownTelemetry):
			s.UnknownIDs++
		case errors.Is(decodeErr, ErrLengthMismatch):
			s.LengthMismatches++
			s.DecodeErrors++
		default:
			s.DecodeErrors++
		}
		return
	}
	if packet == nil {
		return
	}

	s.TotalPackets++
	s.PerID[packet.id]++

	stale := false
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyLengthMismatch:
			s.LengthMismatches++
		case AnomalyStale:
			stale = true
			s.StalePackets++
		case AnomalyInvalidFloat:
			s.InvalidFloats++
			s.AnomalousValues++
		case AnomalyInvalidTemp:
			s.InvalidTemps++
			s.AnomalousValues++
		case AnomalyDecodeError:
			s.DecodeErrors++
		}
	}
	if len(validationErrors) == 0 || (stale && len(validationErrors) == 1) {
		s.ValidPackets++
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.DecodeErrors + s.UnknownIDs + s.AnomalousValues
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, stalePercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
		stalePercent = float64(s.StalePackets) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)

	if s.StalePackets > 0 {
		result += fmt.Sprintf("Stale Packets:   %8d (%.1f%%)\n", s.StalePackets, stalePercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
	}
	if s.UnknownIDs > 0 {
		result += fmt.Sprintf("Unknown IDs:     %8d bytes\n", s.UnknownIDs)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", s.AnomalousValues)
		if s.InvalidFloats > 0 {
			result += fmt.Sprintf("  Invalid Floats:   %5d\n", s.InvalidFloats)
		}
		if s.InvalidTemps > 0 {
			result += fmt.Sprintf("  Invalid Temp:     %5d\n", s.InvalidTemps)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalPackets = 0
	s.ValidPackets = 0
	s.DecodeErrors = 0
	s.UnknownIDs = 0
	s.LengthMismatches = 0
	s.StalePackets = 0
	s.AnomalousValues = 0
	s.InvalidFloats = 0
	s.InvalidTemps = 0
	s.PerID = make(map[uint8]uint64)
	s.PacketRate = 0
	s.ErrorRate = 0
}
