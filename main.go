// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors
//
// swp08d - SW-P-08 router control daemon
//
// Controls a broadcast matrix router speaking the SW-P-08 (Pro-Bel)
// serial control protocol and fans the crosspoint state out to local
// WebSocket clients.

package main

import (
	"os"

	"github.com/broadcastkit/swp08d/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
