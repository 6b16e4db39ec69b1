// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// LengthsFromRegistry builds the decoder length table of a registry
func LengthsFromRegistry(reg *relay.Registry) map[uint8]int {
	lengths := make(map[uint8]int, reg.TelemetryCount())
	for i := 0; i < reg.TelemetryCount(); i++ {
		spec := reg.TelemetryAt(i)
		lengths[spec.ID] = spec.Length
	}
	return lengths
}

// MPPTReading is one MPPT channel as packed by the charge controller
type MPPTReading struct {
	Status  uint8
	VoltIn  uint16
	CurrIn  uint16
	VoltOut uint16
	Temp    uint8
}

// ParseMPPT unpacks a 7-byte MPPT response
func ParseMPPT(b []byte) (MPPTReading, error) {
	if len(b) < 7 {
		return MPPTReading{}, fmt.Errorf("mppt needs 7 bytes, got %d", len(b))
	}
	return MPPTReading{
		Status:  b[0] >> 4,
		VoltIn:  uint16(b[0]&0x03)<<8 | uint16(b[1]),
		CurrIn:  uint16(b[2])<<8 | uint16(b[3]),
		VoltOut: uint16(b[4])<<8 | uint16(b[5]),
		Temp:    b[6],
	}, nil
}

// FormatTelemetryType returns the human-readable name for a telemetry id
func FormatTelemetryType(id uint8) string {
	switch id {
	case relay.TelemMotorStatus:
		return "MOTOR_STATUS"
	case relay.TelemMotorBusVI:
		return "MOTOR_BUS_VI"
	case relay.TelemMotorVelocity:
		return "MOTOR_VELOCITY"
	case relay.TelemMotorHSTemp:
		return "MOTOR_HS_TEMP"
	case relay.TelemMotorDSPTemp:
		return "MOTOR_DSP_TEMP"
	case relay.TelemDriverCommand:
		return "DRIVER_COMMAND"
	case relay.TelemBPSVoltage:
		return "BPS_VOLTAGE"
	case relay.TelemBPSTemperature:
		return "BPS_TEMPERATURE"
	case relay.TelemBPSCurBalStat:
		return "BPS_CUR_BAL_STAT"
	case relay.TelemPMS:
		return "PMS"
	case relay.TelemMPPT:
		return "MPPT"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", id)
	}
}

// FormatPacket formats a packet into a human-readable string. order is
// the byte order of the motor controller floats.
func FormatPacket(p *Packet, order binary.ByteOrder) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d", timestamp, FormatTelemetryType(p.id), p.id, len(p.payload))
	if p.IsZero() && len(p.payload) > 0 {
		return result + " (no recent data)\n"
	}
	return result + "\n  " + FormatPayload(p.id, p.payload, order) + "\n"
}

// FormatPayload decodes the payload of a default telemetry packet
func FormatPayload(id uint8, b []byte, order binary.ByteOrder) string {
	floats := func(loName, hiName, loUnit, hiUnit string) string {
		lo, hi, err := relay.DecodeFloatPair(b, order)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%s=%.1f%s %s=%.1f%s", loName, lo, loUnit, hiName, hi, hiUnit)
	}

	switch id {
	case relay.TelemMotorStatus:
		if len(b) < 8 {
			break
		}
		return fmt.Sprintf("limits=0x%04X errors=0x%04X motor=%d tx_err=%d rx_err=%d",
			binary.LittleEndian.Uint16(b[0:2]), binary.LittleEndian.Uint16(b[2:4]),
			binary.LittleEndian.Uint16(b[4:6]), b[6], b[7])
	case relay.TelemMotorBusVI:
		return floats("bus_v", "bus_i", "V", "A")
	case relay.TelemMotorVelocity:
		return floats("rpm", "velocity", "", "m/s")
	case relay.TelemMotorHSTemp:
		return floats("motor_temp", "heatsink_temp", "C", "C")
	case relay.TelemMotorDSPTemp:
		return floats("dsp_temp", "reserved", "C", "")
	case relay.TelemDriverCommand:
		return floats("velocity", "current", "rpm", "%")
	case relay.TelemBPSVoltage:
		cells := make([]string, len(b))
		for i, v := range b {
			cells[i] = fmt.Sprintf("%02X", v)
		}
		return "cells=" + strings.Join(cells, ",")
	case relay.TelemBPSTemperature:
		temps := make([]string, len(b))
		for i, v := range b {
			temps[i] = fmt.Sprintf("%d", int8(v))
		}
		return "temps=" + strings.Join(temps, ",")
	case relay.TelemBPSCurBalStat:
		if len(b) < 7 {
			break
		}
		return fmt.Sprintf("current=%d balancing=0x%08X status=0x%02X",
			int16(binary.BigEndian.Uint16(b[0:2])), binary.BigEndian.Uint32(b[2:6]), b[6])
	case relay.TelemMPPT:
		var parts []string
		for ch := 0; ch+8 <= len(b); ch += 8 {
			m, _ := ParseMPPT(b[ch : ch+8])
			parts = append(parts, fmt.Sprintf("mppt%d: stat=%d vin=%d iin=%d vout=%d temp=%d",
				ch/8+1, m.Status, m.VoltIn, m.CurrIn, m.VoltOut, m.Temp))
		}
		return strings.Join(parts, "\n  ")
	}
	return fmt.Sprintf("raw=% X", b)
}
