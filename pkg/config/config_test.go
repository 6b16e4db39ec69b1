// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Thermoquad/canrelay/pkg/radio"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

const testYaml = `
can:
  interface: vcan0
  rx_depth: 4
radio:
  port: /dev/ttyUSB1
  baud: 57600
  framing: length-prefixed
  handshake: "hex:6262"
timing:
  send_period_ms: 40
  poll_period_ms: 160
staleness:
  default: 10
  sources:
    mppt1: 40
motor_float_order: little-endian
`

const tablesYaml = `
pages:
  - name: motor
    size: 8
  - name: mppt
    size: 16
can_packets:
  - {name: bus, id: 0x402, length: 8, page: motor, source: motor}
  - {name: mppt1, id: 0x771, length: 8, page: mppt, offset: 0, source: mppt1}
  - {name: mppt2, id: 0x772, length: 8, page: mppt, offset: 8, source: mppt2}
telemetry:
  - {name: motor, id: 0x03, pages: [motor]}
  - {name: mppt, id: 0x1D, pages: [mppt]}
polls:
  - {name: mppt1, request: 0x711, response: 0x771}
  - {name: mppt2, request: 0x712, response: 0x772}
`

func TestDefaultConfig(t *testing.T) {
	Convey("the compiled-in configuration", t, func() {
		cfg := Default()

		Convey("is valid", func() {
			So(Validate(cfg), ShouldBeNil)
		})

		Convey("uses the documented cadences", func() {
			So(cfg.Timing.SendPeriodMs, ShouldEqual, 50)
			So(cfg.Timing.PollPeriodMs, ShouldEqual, 200)
		})

		Convey("uses implicit framing and the bb handshake", func() {
			So(cfg.Framing(), ShouldEqual, radio.FramingImplicit)
			So(string(cfg.Handshake()), ShouldEqual, "bb")
		})

		Convey("gives MPPT sources a window covering the poll rotation", func() {
			th, err := cfg.Thresholds()
			So(err, ShouldBeNil)
			So(th[relay.SourceBPS], ShouldEqual, 8)
			So(th[relay.SourceMPPT2], ShouldEqual, 32)
		})

		Convey("produces no warnings", func() {
			reg, err := cfg.Registry()
			So(err, ShouldBeNil)
			So(cfg.Warnings(reg), ShouldBeEmpty)
		})
	})
}

func TestConfigParsing(t *testing.T) {
	Convey("parsing is successful", t, func() {
		cfg, err := Parse([]byte(testYaml))
		So(err, ShouldBeNil)
		So(Validate(cfg), ShouldBeNil)

		Convey("file values override the defaults", func() {
			So(cfg.CAN.Interface, ShouldEqual, "vcan0")
			So(cfg.CAN.RxDepth, ShouldEqual, 4)
			So(cfg.Radio.Baud, ShouldEqual, 57600)
			So(cfg.Framing(), ShouldEqual, radio.FramingLengthPrefixed)
			So(cfg.Handshake(), ShouldResemble, []byte("bb"))
			So(cfg.FloatOrder() == binary.LittleEndian, ShouldBeTrue)
		})

		Convey("unset values keep their defaults", func() {
			So(cfg.Radio.HandshakeSettleMs, ShouldEqual, 100)
		})

		Convey("per-source thresholds apply", func() {
			th, err := cfg.Thresholds()
			So(err, ShouldBeNil)
			So(th[relay.SourceMPPT1], ShouldEqual, 40)
			So(th[relay.SourceBPS], ShouldEqual, 10)
			So(th[relay.SourceMPPT3], ShouldEqual, 32)
		})
	})

	Convey("unknown keys are rejected", t, func() {
		_, err := Parse([]byte("radio:\n  bogus: 1\n"))
		So(err, ShouldNotBeNil)
	})

	Convey("an empty document keeps the defaults", t, func() {
		cfg, err := Parse(nil)
		So(err, ShouldBeNil)
		So(cfg.CAN.Interface, ShouldEqual, "can0")
	})
}

func TestConfigValidation(t *testing.T) {
	Convey("given the default configuration", t, func() {
		cfg := Default()

		Convey("poll faster than send is rejected", func() {
			cfg.Timing.PollPeriodMs = 20
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("a zero send period is rejected", func() {
			cfg.Timing.SendPeriodMs = 0
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("unknown framing is rejected", func() {
			cfg.Radio.Framing = "auto"
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("unknown float order is rejected", func() {
			cfg.MotorFloatOrder = "pdp"
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("bad handshake hex is rejected", func() {
			cfg.Radio.Handshake = "hex:xyz"
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("unknown source names are rejected", func() {
			cfg.Staleness.Sources = map[string]int{"inverter": 5}
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("a zero threshold is rejected", func() {
			cfg.Staleness.Sources = map[string]int{"bps": 0}
			So(Validate(cfg), ShouldNotBeNil)
		})

		Convey("a short MPPT window produces a warning", func() {
			cfg.Staleness.Sources = map[string]int{"mppt1": 8}
			So(Validate(cfg), ShouldBeNil)
			reg, _ := cfg.Registry()
			warnings := cfg.Warnings(reg)
			So(len(warnings), ShouldEqual, 1)
			So(warnings[0], ShouldContainSubstring, "mppt1")
		})
	})
}

func TestCustomTables(t *testing.T) {
	Convey("custom tables build a registry", t, func() {
		cfg, err := Parse([]byte(tablesYaml))
		So(err, ShouldBeNil)
		So(Validate(cfg), ShouldBeNil)

		reg, err := cfg.Registry()
		So(err, ShouldBeNil)
		So(reg.TelemetryCount(), ShouldEqual, 2)
		So(reg.PollCount(), ShouldEqual, 2)

		spec, ok := reg.Lookup(0x772)
		So(ok, ShouldBeTrue)
		So(spec.Offset, ShouldEqual, 8)
		So(spec.Source, ShouldEqual, relay.SourceMPPT2)
	})

	Convey("tables referencing unknown pages are rejected", t, func() {
		cfg, err := Parse([]byte(`
pages: [{name: a, size: 8}]
can_packets: [{name: x, id: 0x100, length: 8, page: b, source: bps}]
telemetry: [{name: t, id: 1, pages: [a]}]
`))
		So(err, ShouldBeNil)
		So(Validate(cfg), ShouldNotBeNil)
	})

	Convey("partial tables are rejected", t, func() {
		cfg, err := Parse([]byte("pages: [{name: a, size: 8}]\n"))
		So(err, ShouldBeNil)
		So(Validate(cfg), ShouldNotBeNil)
	})
}

func TestLoad(t *testing.T) {
	Convey("loading a file and the environment", t, func() {
		path := filepath.Join(t.TempDir(), "canrelay.yaml")
		So(os.WriteFile(path, []byte(testYaml), 0o644), ShouldBeNil)

		t.Setenv("CANRELAY_CAN_INTERFACE", "can1")
		t.Setenv("CANRELAY_SEND_PERIOD_MS", "25")

		cfg, err := Load(path)
		So(err, ShouldBeNil)

		Convey("environment overrides the file", func() {
			So(cfg.CAN.Interface, ShouldEqual, "can1")
			So(cfg.Timing.SendPeriodMs, ShouldEqual, 25)
		})

		Convey("file values without an override survive", func() {
			So(cfg.Radio.Port, ShouldEqual, "/dev/ttyUSB1")
			So(cfg.Timing.PollPeriodMs, ShouldEqual, 160)
		})
	})

	Convey("a missing file is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}
