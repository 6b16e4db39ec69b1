// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Thermoquad/canrelay/pkg/radio"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	if cfg.Timing.SendPeriodMs <= 0 {
		return fmt.Errorf("timing.send_period_ms must be > 0, got %d", cfg.Timing.SendPeriodMs)
	}
	if cfg.Timing.PollPeriodMs <= 0 {
		return fmt.Errorf("timing.poll_period_ms must be > 0, got %d", cfg.Timing.PollPeriodMs)
	}
	// a polled response must not be requested faster than it is consumed
	if cfg.Timing.PollPeriodMs < cfg.Timing.SendPeriodMs {
		return fmt.Errorf("timing.poll_period_ms (%d) must be >= send_period_ms (%d)",
			cfg.Timing.PollPeriodMs, cfg.Timing.SendPeriodMs)
	}

	if cfg.CAN.RxDepth < 1 {
		return fmt.Errorf("can.rx_depth must be >= 1, got %d", cfg.CAN.RxDepth)
	}
	if cfg.Radio.Baud <= 0 {
		return fmt.Errorf("radio.baud must be > 0, got %d", cfg.Radio.Baud)
	}
	if cfg.Radio.HandshakeSettleMs < 0 {
		return fmt.Errorf("radio.handshake_settle_ms must be >= 0, got %d", cfg.Radio.HandshakeSettleMs)
	}
	if _, err := radio.ParseFraming(cfg.Radio.Framing); err != nil {
		return fmt.Errorf("radio.framing: %w", err)
	}
	if _, err := radio.ParseHandshake(cfg.Radio.Handshake); err != nil {
		return fmt.Errorf("radio.handshake: %w", err)
	}
	if _, err := relay.ParseByteOrder(cfg.MotorFloatOrder); err != nil {
		return fmt.Errorf("motor_float_order: %w", err)
	}

	if cfg.Staleness.Default < 1 {
		return fmt.Errorf("staleness.default must be >= 1, got %d", cfg.Staleness.Default)
	}
	for name, th := range cfg.Staleness.Sources {
		if _, err := relay.ParseSource(name); err != nil {
			return fmt.Errorf("staleness.sources: %w", err)
		}
		if th < 1 {
			return fmt.Errorf("staleness.sources.%s must be >= 1, got %d", name, th)
		}
	}

	custom := len(cfg.Pages) > 0 || len(cfg.CANPackets) > 0 || len(cfg.Telemetry) > 0 || len(cfg.Polls) > 0
	if custom && (len(cfg.Pages) == 0 || len(cfg.CANPackets) == 0 || len(cfg.Telemetry) == 0) {
		return fmt.Errorf("custom tables need pages, can_packets and telemetry together")
	}
	if _, err := cfg.Registry(); err != nil {
		return err
	}
	return nil
}

// Registry builds the packet registry: the compiled-in tables unless the
// configuration declares its own
func (cfg *Config) Registry() (*relay.Registry, error) {
	if len(cfg.Pages) == 0 {
		return relay.DefaultRegistry(), nil
	}

	pageIDs := make(map[string]relay.PageID, len(cfg.Pages))
	pages := make([]relay.PageSpec, 0, len(cfg.Pages))
	for i, p := range cfg.Pages {
		if p.Name == "" {
			return nil, fmt.Errorf("pages[%d]: name is required", i)
		}
		if _, dup := pageIDs[p.Name]; dup {
			return nil, fmt.Errorf("pages[%d]: duplicate page name %q", i, p.Name)
		}
		id := relay.PageID(i)
		pageIDs[p.Name] = id
		pages = append(pages, relay.PageSpec{ID: id, Name: p.Name, Size: p.Size})
	}

	lookupPage := func(ctx, name string) (relay.PageID, error) {
		id, ok := pageIDs[name]
		if !ok {
			return 0, fmt.Errorf("%s: unknown page %q", ctx, name)
		}
		return id, nil
	}

	can := make([]relay.CANPacketSpec, 0, len(cfg.CANPackets))
	for i, c := range cfg.CANPackets {
		ctx := fmt.Sprintf("can_packets[%d] %q", i, c.Name)
		pid, err := lookupPage(ctx, c.Page)
		if err != nil {
			return nil, err
		}
		src, err := relay.ParseSource(c.Source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ctx, err)
		}
		can = append(can, relay.CANPacketSpec{
			Name: c.Name, ID: c.ID, Length: c.Length, Page: pid, Offset: c.Offset, Source: src,
		})
	}

	telemetry := make([]relay.TelemetryPacketSpec, 0, len(cfg.Telemetry))
	for i, t := range cfg.Telemetry {
		ctx := fmt.Sprintf("telemetry[%d] %q", i, t.Name)
		spec := relay.TelemetryPacketSpec{Name: t.Name, ID: t.ID}
		for _, name := range t.Pages {
			pid, err := lookupPage(ctx, name)
			if err != nil {
				return nil, err
			}
			spec.Pages = append(spec.Pages, pid)
		}
		telemetry = append(telemetry, spec)
	}

	polls := make([]relay.PollSpec, 0, len(cfg.Polls))
	for _, p := range cfg.Polls {
		polls = append(polls, relay.PollSpec{Name: p.Name, Request: p.Request, Response: p.Response})
	}

	reg, err := relay.NewRegistry(pages, can, telemetry, polls)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	return reg, nil
}

// Thresholds resolves the staleness threshold of every source
func (cfg *Config) Thresholds() (map[relay.Source]int, error) {
	th := relay.DefaultThresholds()
	for _, src := range relay.AllSources() {
		if src >= relay.SourceMPPT1 && src <= relay.SourceMPPT4 && cfg.Staleness.Default <= relay.DefaultMPPTStaleThreshold {
			continue
		}
		th[src] = cfg.Staleness.Default
	}
	for name, v := range cfg.Staleness.Sources {
		src, err := relay.ParseSource(name)
		if err != nil {
			return nil, err
		}
		th[src] = v
	}
	return th, nil
}

// Warnings reports settings that are valid but likely wrong: sources
// known only from poll responses whose staleness window is shorter than
// the interval between two polls of that source
func (cfg *Config) Warnings(reg *relay.Registry) []string {
	th, err := cfg.Thresholds()
	if err != nil {
		return nil
	}

	pollsPer := make(map[relay.Source]int)
	responses := make(map[uint16]bool)
	for i := 0; i < reg.PollCount(); i++ {
		p := reg.PollAt(i)
		if spec, ok := reg.Lookup(p.Response); ok {
			pollsPer[spec.Source]++
			responses[p.Response] = true
		}
	}

	onlyPolled := make(map[relay.Source]bool)
	for src := range pollsPer {
		onlyPolled[src] = true
	}
	for _, spec := range reg.CANPackets() {
		if !responses[spec.ID] {
			onlyPolled[spec.Source] = false
		}
	}

	var warnings []string
	for _, src := range reg.PolledSources() {
		if !onlyPolled[src] {
			continue
		}
		interval := cfg.Timing.PollPeriodMs * reg.PollCount() / pollsPer[src]
		window := th[src] * cfg.Timing.SendPeriodMs
		if window < interval {
			warnings = append(warnings, fmt.Sprintf(
				"staleness window of %s (%d ms) is shorter than its poll interval (%d ms); its data will be cleared between polls",
				src, window, interval))
		}
	}
	return warnings
}

// SendPeriod returns the send cadence
func (cfg *Config) SendPeriod() time.Duration {
	return time.Duration(cfg.Timing.SendPeriodMs) * time.Millisecond
}

// PollPeriod returns the poll cadence
func (cfg *Config) PollPeriod() time.Duration {
	return time.Duration(cfg.Timing.PollPeriodMs) * time.Millisecond
}

// FloatOrder returns the byte order of the motor controller floats
func (cfg *Config) FloatOrder() binary.ByteOrder {
	order, err := relay.ParseByteOrder(cfg.MotorFloatOrder)
	if err != nil {
		return binary.BigEndian
	}
	return order
}

// Framing returns the radio framing
func (cfg *Config) Framing() radio.Framing {
	f, _ := radio.ParseFraming(cfg.Radio.Framing)
	return f
}

// Handshake returns the radio bring-up sequence
func (cfg *Config) Handshake() []byte {
	b, _ := radio.ParseHandshake(cfg.Radio.Handshake)
	return b
}

// HandshakeSettle returns the delay around the handshake
func (cfg *Config) HandshakeSettle() time.Duration {
	return time.Duration(cfg.Radio.HandshakeSettleMs) * time.Millisecond
}
