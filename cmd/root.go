// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/config"
)

var (
	configPath string
	verbose    bool

	// CAN flags
	canInterface string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "canrelay",
	Short: "CAN to radio telemetry relay",
	Long: `canrelay - Relays vehicle CAN bus telemetry over a serial radio link.

Frames from the motor controller, driver controls, battery protection system
and MPPTs are collected into pages, which are sent round-robin as fixed-size
telemetry packets. Stale sources are zeroed, polled nodes are requested over
CAN, and the ground side can decode the stream with the monitor command.

Configuration is read from --config (YAML), then CANRELAY_* environment
variables, then command line flags.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the CANRELAY_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.PersistentFlags().StringVar(&canInterface, "can", "", "SocketCAN interface (default can0)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, default 115200)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig resolves the configuration and applies command line flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("can") {
		cfg.CAN.Interface = canInterface
	}
	if flags.Changed("port") {
		cfg.Radio.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Radio.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Radio.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Radio.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Radio.NoSSLVerify = wsNoSSLVerify
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if reg, err := cfg.Registry(); err == nil {
		for _, w := range cfg.Warnings(reg) {
			log.Printf("WARNING: %s", w)
		}
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
