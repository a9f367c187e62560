// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/broadcastkit/swp08d/pkg/swp08"
)

var monitorAck bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and print router traffic",
	Long: `Connects to the router and prints every decoded frame in
human-readable form, plus a statistics summary on exit.

With --ack the monitor acknowledges received frames on the wire, which
stops a router from retrying its tallies while no controller is
attached. Leave it off when snooping alongside another controller.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorAck, "ack", false, "Acknowledge received frames")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tr, err := newTransport(cfg)
	if err != nil {
		return err
	}
	if err := tr.Open(); err != nil {
		return err
	}
	defer tr.Close()

	fmt.Printf("swp08d monitor - %s\n", tr.Describe())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		tr.Close()
	}()

	dec := swp08.NewDecoder()
	stats := swp08.NewStatistics()

	for chunk := range tr.Chunks() {
		for _, b := range chunk {
			ev, err := dec.DecodeByte(b)
			if err != nil {
				stats.CountFramingError()
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if ev == nil {
				continue
			}
			switch ev.Kind {
			case swp08.EventFrame:
				stats.CountFrame()
				if monitorAck {
					if err := tr.Write(swp08.AckBytes); err != nil {
						fmt.Printf("[ERROR] ack write: %v\n", err)
					}
				}
				fmt.Print(swp08.FormatFrame(ev.Frame))
			case swp08.EventAck:
				stats.CountAck()
				fmt.Println("[ACK]")
			case swp08.EventNak:
				stats.CountNak()
				fmt.Println("[NAK]")
			}
		}
		if n := dec.Discarded(); n > 0 {
			stats.CountDiscarded(n)
		}
	}

	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
