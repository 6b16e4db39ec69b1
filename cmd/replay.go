// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/capture"
	"github.com/Thermoquad/canrelay/pkg/radio"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

var (
	replayRealtime bool
	replayRadio    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Feed a CAN capture through the relay",
	Long: `Replay a capture written by "run --record" through the relay core on a
simulated millisecond clock.

By default the telemetry packets are decoded and printed. With --radio they
are written to the configured radio connection instead, so a ground station
can be exercised from a recorded drive. Remote requests are counted but not
transmitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Pace the replay at recorded speed")
	replayCmd.Flags().BoolVar(&replayRadio, "radio", false, "Write telemetry to the radio connection")
}

// printSink formats telemetry instead of transmitting it
type printSink struct {
	order binary.ByteOrder
}

func (s printSink) SendTelemetry(id uint8, payload []byte) error {
	fmt.Print(radio.FormatPacket(radio.NewPacket(id, payload), s.order))
	return nil
}

// countingTx accepts remote requests without a bus
type countingTx struct {
	requests map[uint16]int
}

func (t *countingTx) TxReady() bool { return true }

func (t *countingTx) SendRemoteRequest(id uint16) error {
	t.requests[id]++
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return err
	}

	reader, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("capture %s holds no frames", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink relay.TelemetrySink = printSink{order: cfg.FloatOrder()}
	if replayRadio {
		conn, connInfo, err := openRadio(cfg.Radio)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := radio.BringUp(ctx, conn, cfg.Handshake(), cfg.HandshakeSettle()); err != nil {
			return fmt.Errorf("radio bring-up: %w", err)
		}
		sink = radio.NewLink(conn, cfg.Framing())
		log.Printf("Replaying to %s", connInfo)
	}

	hdr := reader.Header()
	fmt.Printf("canrelay - Replay\n")
	fmt.Printf("Capture: %s (%s, %s, %d frames)\n", args[0], hdr.Interface,
		time.Unix(0, hdr.Created).Format(time.RFC3339), len(entries))
	fmt.Printf("Send period: %d ms, poll period: %d ms\n\n", cfg.Timing.SendPeriodMs, cfg.Timing.PollPeriodMs)

	base := entries[0].Time
	var cadence *relay.Cadence
	tx := &countingTx{requests: make(map[uint16]int)}
	machine, err := relay.NewMachine(relay.Options{
		Registry:   reg,
		Sink:       sink,
		Tx:         tx,
		Thresholds: thresholds,
		InboxDepth: cfg.CAN.RxDepth,
		Verbose:    verbose,
		Now:        func() time.Time { return cadence.Now(base) },
	})
	if err != nil {
		return err
	}
	cadence = relay.NewCadence(cfg.Timing.SendPeriodMs, cfg.Timing.PollPeriodMs, machine)

	end := entries[len(entries)-1].Time.Sub(base).Milliseconds()
	next := 0
	for ms := int64(0); ms <= end; ms++ {
		if ctx.Err() != nil {
			break
		}
		for next < len(entries) && entries[next].Time.Sub(base).Milliseconds() <= ms {
			machine.Inbox().Deliver(entries[next].Frame)
			machine.Drain()
			next++
		}
		cadence.Tick()
		machine.Drain()

		if replayRealtime {
			time.Sleep(time.Millisecond)
		}
	}

	fmt.Println()
	fmt.Print(machine.Stats().String())
	for i := 0; i < reg.PollCount(); i++ {
		p := reg.PollAt(i)
		fmt.Printf("Remote requests 0x%03X: %d\n", p.Request, tx.requests[p.Request])
	}
	return nil
}
