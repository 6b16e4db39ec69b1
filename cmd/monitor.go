// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/radio"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and validate telemetry on the ground side",
	Long: `Track telemetry reception, stale sources and anomalous values with statistics.

This command validates each packet and detects:
  - Decode failures (unknown ids, length byte mismatches)
  - Packets whose source went stale on the relay (all-zero payload)
  - Non-finite motor controller floats
  - Battery and MPPT temperatures out of range
  - Statistics and trends (packet rate, error rate, per-type counts)

By default, only problems are displayed. Use --show-all to display valid packets too.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just problems)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// telemetryEvent is one decoder result from the radio reader
type telemetryEvent struct {
	packet           *radio.Packet
	decodeErr        error
	validationErrors []radio.ValidationError
}

// syncEvent reports the first valid packet
type syncEvent struct {
	invalidBytes int
}

// readTelemetry decodes the radio stream and reports events until the
// connection closes. Decode errors before the first valid packet only
// count as skipped bytes.
func readTelemetry(conn Connection, decoder *radio.Decoder, lengths map[uint8]int, order binary.ByteOrder, emit func(any)) {
	synchronized := false
	invalidBytes := 0
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				emit(err)
				return
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			switch {
			case decodeErr != nil:
				if synchronized {
					emit(telemetryEvent{decodeErr: decodeErr})
				} else {
					invalidBytes++
				}
			case packet != nil:
				if !synchronized {
					synchronized = true
					emit(syncEvent{invalidBytes: invalidBytes})
				}
				emit(telemetryEvent{
					packet:           packet,
					validationErrors: radio.ValidatePacket(packet, lengths, order),
				})
			}
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	decoder, lengths, err := newGroundDecoder(cfg)
	if err != nil {
		return err
	}

	conn, connInfo, err := openRadio(cfg.Radio)
	if err != nil {
		return err
	}
	defer conn.Close()

	order := cfg.FloatOrder()
	if useTUI {
		m := initialModel(connInfo, statsInterval, showAll, order)
		p := tea.NewProgram(m)
		go readTelemetry(conn, decoder, lengths, order, func(ev any) { p.Send(ev) })
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	}
	return runTextMonitor(conn, connInfo, decoder, lengths, order)
}

// runTextMonitor prints problems and periodic statistics to stdout
func runTextMonitor(conn Connection, connInfo string, decoder *radio.Decoder, lengths map[uint8]int, order binary.ByteOrder) error {
	fmt.Printf("canrelay - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Problems only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := radio.NewStatistics()
	events := make(chan any, 64)
	go readTelemetry(conn, decoder, lengths, order, func(ev any) { events <- ev })

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case syncEvent:
				if ev.invalidBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", ev.invalidBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}

			case telemetryEvent:
				stats.Update(ev.packet, ev.decodeErr, ev.validationErrors)
				switch {
				case ev.decodeErr != nil:
					printDecodeError(ev.decodeErr)
				case len(ev.validationErrors) > 0:
					printValidationErrors(ev.packet, ev.validationErrors)
				case showAll:
					fmt.Print(radio.FormatPacket(ev.packet, order))
				}

			case error:
				log.Printf("Connection closed")
				fmt.Println()
				fmt.Print(stats.String())
				return nil
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n\n", timestamp, err)
}

// printValidationErrors prints the problems found in a packet
func printValidationErrors(packet *radio.Packet, problems []radio.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	name := radio.FormatTelemetryType(packet.ID())

	for i, err := range problems {
		switch err.Type {
		case radio.AnomalyStale:
			fmt.Printf("[%s] \033[1;33mSTALE:\033[0m %s (0x%02X)\n", timestamp, name, packet.ID())
		case radio.AnomalyLengthMismatch, radio.AnomalyDecodeError:
			fmt.Printf("[%s] \033[1;31mMALFORMED:\033[0m Issue %d: %s\n", timestamp, i+1, err.Message)
		default:
			fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m Issue %d: %s\n", timestamp, i+1, err.Message)
		}
	}
	fmt.Println()
}
