// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

// Default page identifiers
const (
	PageMotorStatus PageID = iota
	PageMotorBusVI
	PageMotorVelocity
	PageMotorHSTemp
	PageMotorDSPTemp
	PageDriverCommand
	PageBPSVoltage
	PageBPSTemperature
	PageBPSCurBalStat
	PagePMS
	PageMPPT
)

// Default telemetry identifiers (radio side)
const (
	TelemMotorStatus    = 0x01
	TelemMotorBusVI     = 0x03
	TelemMotorVelocity  = 0x05
	TelemMotorHSTemp    = 0x07
	TelemMotorDSPTemp   = 0x09
	TelemDriverCommand  = 0x0A
	TelemBPSVoltage     = 0x0B
	TelemBPSTemperature = 0x0D
	TelemBPSCurBalStat  = 0x11
	TelemPMS            = 0x19
	TelemMPPT           = 0x1D
)

// Default CAN identifiers
const (
	CANMotorStatus    = 0x401
	CANMotorBusVI     = 0x402
	CANMotorVelocity  = 0x403
	CANMotorHSTemp    = 0x40B
	CANMotorDSPTemp   = 0x40C
	CANDriverCommand  = 0x501
	CANBPSVoltage1    = 0x600
	CANBPSVoltage8    = 0x607
	CANBPSTemperature = 0x608
	CANBPSCurBalStat  = 0x60B
	CANPMS            = 0x60E
	CANMPPTResponse   = 0x770 // + channel 1..4
	CANMPPTRequest    = 0x710 // + channel 1..4
)

// DefaultPages returns the compiled-in page layout
func DefaultPages() []PageSpec {
	return []PageSpec{
		{ID: PageMotorStatus, Name: "motor_status", Size: 8},
		{ID: PageMotorBusVI, Name: "motor_bus_vi", Size: 8},
		{ID: PageMotorVelocity, Name: "motor_velocity", Size: 8},
		{ID: PageMotorHSTemp, Name: "motor_hs_temp", Size: 8},
		{ID: PageMotorDSPTemp, Name: "motor_dsp_temp", Size: 8},
		{ID: PageDriverCommand, Name: "driver_command", Size: 8},
		{ID: PageBPSVoltage, Name: "bps_voltage", Size: 60},
		{ID: PageBPSTemperature, Name: "bps_temperature", Size: 24},
		{ID: PageBPSCurBalStat, Name: "bps_cur_bal_stat", Size: 7},
		{ID: PagePMS, Name: "pms", Size: 7},
		{ID: PageMPPT, Name: "mppt", Size: 32},
	}
}

// DefaultCANPackets returns the compiled-in CAN table
func DefaultCANPackets() []CANPacketSpec {
	specs := []CANPacketSpec{
		{Name: "motor_status", ID: CANMotorStatus, Length: 8, Page: PageMotorStatus, Source: SourceMotor},
		{Name: "motor_bus_vi", ID: CANMotorBusVI, Length: 8, Page: PageMotorBusVI, Source: SourceMotor},
		{Name: "motor_velocity", ID: CANMotorVelocity, Length: 8, Page: PageMotorVelocity, Source: SourceMotor},
		{Name: "motor_hs_temp", ID: CANMotorHSTemp, Length: 8, Page: PageMotorHSTemp, Source: SourceMotor},
		{Name: "motor_dsp_temp", ID: CANMotorDSPTemp, Length: 8, Page: PageMotorDSPTemp, Source: SourceMotor},
		{Name: "driver_command", ID: CANDriverCommand, Length: 8, Page: PageDriverCommand, Source: SourceDriverControls},
	}

	for i := 0; i < 7; i++ {
		specs = append(specs, CANPacketSpec{
			Name:   "bps_voltage" + string(rune('1'+i)),
			ID:     uint16(CANBPSVoltage1 + i),
			Length: 8,
			Page:   PageBPSVoltage,
			Offset: 8 * i,
			Source: SourceBPS,
		})
	}
	specs = append(specs, CANPacketSpec{Name: "bps_voltage8", ID: CANBPSVoltage8, Length: 4, Page: PageBPSVoltage, Offset: 56, Source: SourceBPS})

	for i := 0; i < 3; i++ {
		specs = append(specs, CANPacketSpec{
			Name:   "bps_temperature" + string(rune('1'+i)),
			ID:     uint16(CANBPSTemperature + i),
			Length: 8,
			Page:   PageBPSTemperature,
			Offset: 8 * i,
			Source: SourceBPS,
		})
	}

	specs = append(specs,
		CANPacketSpec{Name: "bps_cur_bal_stat", ID: CANBPSCurBalStat, Length: 7, Page: PageBPSCurBalStat, Source: SourceBPS},
		CANPacketSpec{Name: "pms", ID: CANPMS, Length: 7, Page: PagePMS, Source: SourceBPS},
	)

	// MPPT responses are 7 bytes; each channel keeps an 8-byte slot
	for ch := 1; ch <= 4; ch++ {
		specs = append(specs, CANPacketSpec{
			Name:   "mppt" + string(rune('0'+ch)),
			ID:     uint16(CANMPPTResponse + ch),
			Length: 7,
			Page:   PageMPPT,
			Offset: 8 * (ch - 1),
			Source: SourceMPPT1 + Source(ch-1),
		})
	}

	return specs
}

// DefaultTelemetry returns the compiled-in send rotation
func DefaultTelemetry() []TelemetryPacketSpec {
	return []TelemetryPacketSpec{
		{Name: "motor_status", ID: TelemMotorStatus, Pages: []PageID{PageMotorStatus}},
		{Name: "motor_bus_vi", ID: TelemMotorBusVI, Pages: []PageID{PageMotorBusVI}},
		{Name: "motor_velocity", ID: TelemMotorVelocity, Pages: []PageID{PageMotorVelocity}},
		{Name: "motor_hs_temp", ID: TelemMotorHSTemp, Pages: []PageID{PageMotorHSTemp}},
		{Name: "motor_dsp_temp", ID: TelemMotorDSPTemp, Pages: []PageID{PageMotorDSPTemp}},
		{Name: "driver_command", ID: TelemDriverCommand, Pages: []PageID{PageDriverCommand}},
		{Name: "bps_voltage", ID: TelemBPSVoltage, Pages: []PageID{PageBPSVoltage}},
		{Name: "bps_temperature", ID: TelemBPSTemperature, Pages: []PageID{PageBPSTemperature}},
		{Name: "bps_cur_bal_stat", ID: TelemBPSCurBalStat, Pages: []PageID{PageBPSCurBalStat}},
		{Name: "pms", ID: TelemPMS, Pages: []PageID{PagePMS}},
		{Name: "mppt", ID: TelemMPPT, Pages: []PageID{PageMPPT}},
	}
}

// DefaultPolls returns the compiled-in poll rotation
func DefaultPolls() []PollSpec {
	polls := []PollSpec{
		{Name: "motor_hs_temp", Request: CANMotorHSTemp, Response: CANMotorHSTemp},
		{Name: "motor_dsp_temp", Request: CANMotorDSPTemp, Response: CANMotorDSPTemp},
	}
	for ch := 1; ch <= 4; ch++ {
		polls = append(polls, PollSpec{
			Name:     "mppt" + string(rune('0'+ch)),
			Request:  uint16(CANMPPTRequest + ch),
			Response: uint16(CANMPPTResponse + ch),
		})
	}
	return polls
}

// DefaultRegistry builds the registry from the compiled-in tables
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultPages(), DefaultCANPackets(), DefaultTelemetry(), DefaultPolls())
	if err != nil {
		panic("relay: default tables are invalid: " + err.Error())
	}
	return r
}

// DefaultThresholds returns the staleness threshold per source
func DefaultThresholds() map[Source]int {
	th := make(map[Source]int, sourceCount)
	for _, s := range AllSources() {
		th[s] = DefaultStaleThreshold
	}
	for s := SourceMPPT1; s <= SourceMPPT4; s++ {
		th[s] = DefaultMPPTStaleThreshold
	}
	return th
}
