// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the relay configuration: compiled-in defaults,
// then an optional YAML file, then CANRELAY_* environment variables.
// Command line flags are applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/canrelay/pkg/radio"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Config is the full relay configuration
type Config struct {
	CAN       CANConfig       `yaml:"can"`
	Radio     RadioConfig     `yaml:"radio"`
	Timing    TimingConfig    `yaml:"timing"`
	Staleness StalenessConfig `yaml:"staleness"`

	// byte order of the motor controller floats
	MotorFloatOrder string `yaml:"motor_float_order" env:"CANRELAY_MOTOR_FLOAT_ORDER"`

	// optional packet tables, all-or-nothing (polls may be empty)
	Pages      []PageConfig      `yaml:"pages"`
	CANPackets []CANPacketConfig `yaml:"can_packets"`
	Telemetry  []TelemetryConfig `yaml:"telemetry"`
	Polls      []PollConfig      `yaml:"polls"`
}

// ---- CAN ----

type CANConfig struct {
	Interface string `yaml:"interface" env:"CANRELAY_CAN_INTERFACE"`
	RxDepth   int    `yaml:"rx_depth" env:"CANRELAY_CAN_RX_DEPTH"`
}

// ---- RADIO ----

type RadioConfig struct {
	Port              string `yaml:"port" env:"CANRELAY_RADIO_PORT"`
	Baud              int    `yaml:"baud" env:"CANRELAY_RADIO_BAUD"`
	URL               string `yaml:"url" env:"CANRELAY_RADIO_URL"`
	Username          string `yaml:"username" env:"CANRELAY_RADIO_USERNAME"`
	NoSSLVerify       bool   `yaml:"no_ssl_verify" env:"CANRELAY_RADIO_NO_SSL_VERIFY"`
	Framing           string `yaml:"framing" env:"CANRELAY_RADIO_FRAMING"`
	Handshake         string `yaml:"handshake" env:"CANRELAY_RADIO_HANDSHAKE"`
	HandshakeSettleMs int    `yaml:"handshake_settle_ms" env:"CANRELAY_RADIO_HANDSHAKE_SETTLE_MS"`
}

// ---- TIMING ----

type TimingConfig struct {
	SendPeriodMs int `yaml:"send_period_ms" env:"CANRELAY_SEND_PERIOD_MS"`
	PollPeriodMs int `yaml:"poll_period_ms" env:"CANRELAY_POLL_PERIOD_MS"`
}

// ---- STALENESS ----

// StalenessConfig holds thresholds in send ticks. Sources without an
// entry use Default, except the MPPT channels which default to a window
// covering a full poll rotation.
type StalenessConfig struct {
	Default int            `yaml:"default" env:"CANRELAY_STALE_DEFAULT"`
	Sources map[string]int `yaml:"sources"`
}

// ---- TABLES ----

type PageConfig struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

type CANPacketConfig struct {
	Name   string `yaml:"name"`
	ID     uint16 `yaml:"id"`
	Length int    `yaml:"length"`
	Page   string `yaml:"page"`
	Offset int    `yaml:"offset"`
	Source string `yaml:"source"`
}

type TelemetryConfig struct {
	Name  string   `yaml:"name"`
	ID    uint8    `yaml:"id"`
	Pages []string `yaml:"pages"`
}

type PollConfig struct {
	Name     string `yaml:"name"`
	Request  uint16 `yaml:"request"`
	Response uint16 `yaml:"response"`
}

// Default returns the compiled-in configuration
func Default() *Config {
	return &Config{
		CAN: CANConfig{
			Interface: "can0",
			RxDepth:   relay.DefaultInboxDepth,
		},
		Radio: RadioConfig{
			Baud:              115200,
			Framing:           radio.FramingImplicit.String(),
			Handshake:         radio.DefaultHandshake,
			HandshakeSettleMs: int(radio.DefaultHandshakeSettle.Milliseconds()),
		},
		Timing: TimingConfig{
			SendPeriodMs: relay.DefaultSendPeriodMs,
			PollPeriodMs: relay.DefaultPollPeriodMs,
		},
		Staleness: StalenessConfig{
			Default: relay.DefaultStaleThreshold,
		},
		MotorFloatOrder: "big-endian",
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// (skipped when path is empty) and the environment. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without reading the environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays CANRELAY_* environment variables that are set
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
