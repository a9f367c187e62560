// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/broadcastkit/swp08d/internal/link"
	"github.com/broadcastkit/swp08d/pkg/swp08"
)

var (
	takeMatrix int
	takeLevel  int
	takeDest   int
	takeSrc    int
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Connect a source to a destination",
	Long: `Sends a single Crosspoint Connect and waits for the router's
link-level acknowledgement. The routed state is reported back by the
router as a tally; use interrogate to confirm it.`,
	RunE: runTake,
}

func init() {
	takeCmd.Flags().IntVarP(&takeMatrix, "matrix", "m", 0, "Matrix")
	takeCmd.Flags().IntVarP(&takeLevel, "level", "l", 0, "Level")
	takeCmd.Flags().IntVarP(&takeDest, "destination", "d", 0, "Destination")
	takeCmd.Flags().IntVarP(&takeSrc, "source", "s", 0, "Source")
	takeCmd.MarkFlagRequired("destination")
	takeCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(takeCmd)
}

func runTake(cmd *cobra.Command, args []string) error {
	frame, err := swp08.EncodeConnect(takeMatrix, takeLevel, takeDest, takeSrc)
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

	if err := <-lk.Send(frame); err != nil {
		return err
	}

	fmt.Printf("took matrix %d level %d: dest %d <- src %d\n",
		takeMatrix, takeLevel, takeDest, takeSrc)
	return nil
}
