// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/broadcastkit/swp08d/internal/link"
	"github.com/broadcastkit/swp08d/pkg/swp08"
)

var (
	interrogateMatrix int
	interrogateLevel  int
	interrogateDest   int
)

var interrogateCmd = &cobra.Command{
	Use:   "interrogate",
	Short: "Ask which source feeds a destination",
	RunE:  runInterrogate,
}

func init() {
	interrogateCmd.Flags().IntVarP(&interrogateMatrix, "matrix", "m", 0, "Matrix")
	interrogateCmd.Flags().IntVarP(&interrogateLevel, "level", "l", 0, "Level")
	interrogateCmd.Flags().IntVarP(&interrogateDest, "destination", "d", 0, "Destination")
	interrogateCmd.MarkFlagRequired("destination")
	rootCmd.AddCommand(interrogateCmd)
}

func runInterrogate(cmd *cobra.Command, args []string) error {
	frame, err := swp08.EncodeInterrogate(interrogateMatrix, interrogateLevel, interrogateDest)
	if err != nil {
		return err
	}

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

	lk := link.New(tr, swp08.NewStatistics(), newLogger("link"))
	go lk.Run()

	done := lk.Send(frame)
	timeout := time.After(2 * link.DefaultAckTimeout * (link.MaxAttempts + 1))

	for {
		select {
		case f, ok := <-lk.Frames():
			if !ok {
				return link.ErrDisconnected
			}
			if !f.IsTally() {
				continue
			}
			t, err := swp08.ParseTally(f)
			if err != nil {
				continue
			}
			if t.Matrix != interrogateMatrix || t.Level != interrogateLevel ||
				t.Destination != interrogateDest {
				continue
			}
			fmt.Printf("matrix %d level %d: dest %d <- src %d\n",
				t.Matrix, t.Level, t.Destination, t.Source)
			return nil

		case err := <-done:
			if err != nil {
				return err
			}
			done = nil

		case <-timeout:
			return fmt.Errorf("no tally received for destination %d", interrogateDest)
		}
	}
}
