// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/broadcastkit/swp08d/internal/config"
	"github.com/broadcastkit/swp08d/internal/transport"
)

var (
	configFile string

	// Connection override flags
	transportKind string
	tcpHost       string
	tcpPort       int
	serialPath    string
	serialBaud    int
)

var rootCmd = &cobra.Command{
	Use:   "swp08d",
	Short: "SW-P-08 Router Control Daemon",
	Long: `swp08d - control daemon for SW-P-08 (Pro-Bel) matrix routers.

Speaks the SW-P-08 serial control protocol over TCP or RS-232/RS-422,
caches crosspoint tallies, and fans router state out to local
WebSocket clients.

Connection modes:
  TCP:    --transport tcp --host 10.0.0.5 --port 2000
  Serial: --transport serial --serial /dev/ttyUSB0 --baud 38400

Flags override the configuration file where both are given.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVarP(&transportKind, "transport", "t", "", "Router transport (tcp or serial)")
	rootCmd.PersistentFlags().StringVar(&tcpHost, "host", "", "Router TCP host")
	rootCmd.PersistentFlags().IntVar(&tcpPort, "port", 0, "Router TCP port")
	rootCmd.PersistentFlags().StringVarP(&serialPath, "serial", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&serialBaud, "baud", "b", 0, "Baud rate (serial only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig builds the effective configuration: file over defaults,
// flags over both.
func loadConfig() (*config.Config, error) {
	cfg := config.New()
	if configFile != "" {
		if err := cfg.Load(configFile); err != nil {
			return nil, err
		}
	}

	if transportKind != "" {
		cfg.Transport = transportKind
	}
	if tcpHost != "" {
		cfg.TCPHost = tcpHost
	}
	if tcpPort != 0 {
		cfg.TCPPort = tcpPort
	}
	if serialPath != "" {
		cfg.SerialPath = serialPath
	}
	if serialBaud != 0 {
		cfg.SerialBaud = serialBaud
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newTransport builds the configured router transport
func newTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportTCP:
		return transport.NewTCP(cfg.TCPHost, cfg.TCPPort), nil
	case config.TransportSerial:
		return transport.NewSerial(cfg.SerialPath, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
