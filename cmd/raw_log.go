// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/config"
	"github.com/Thermoquad/canrelay/pkg/radio"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display received telemetry in human-readable format",
	Long: `Continuously decode and display telemetry packets as they arrive on the
ground side of the radio link.

Each packet is shown with timestamp, telemetry type and decoded payload.
Packets from sources that went stale are shown as "(no recent data)".

The framing and packet tables must match the relay's configuration.
Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

// newGroundDecoder builds a telemetry decoder matching the relay configuration
func newGroundDecoder(cfg *config.Config) (*radio.Decoder, map[uint8]int, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	lengths := radio.LengthsFromRegistry(reg)
	return radio.NewDecoder(cfg.Framing(), lengths), lengths, nil
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	decoder, _, err := newGroundDecoder(cfg)
	if err != nil {
		return err
	}

	conn, connInfo, err := openRadio(cfg.Radio)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("canrelay - Raw Telemetry Log\n")
	fmt.Printf("Connection: %s (%s framing)\n", connInfo, cfg.Framing())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	order := cfg.FloatOrder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// a closed bridge or unplugged modem does not come back
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			packet, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if packet != nil {
				fmt.Print(radio.FormatPacket(packet, order))
			}
		}
	}
}
