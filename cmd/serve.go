// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/broadcastkit/swp08d/internal/link"
	"github.com/broadcastkit/swp08d/internal/router"
	"github.com/broadcastkit/swp08d/internal/server"
	"github.com/broadcastkit/swp08d/internal/store"
	"github.com/broadcastkit/swp08d/pkg/swp08"
)

const reconnectDelay = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the router control daemon",
	Long: `Connects to the router, reconciles the crosspoint cache, and serves
the WebSocket fan-out for local clients. The router link is retried
with a fixed backoff for as long as the daemon runs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := swp08.NewStatistics()

	st, err := store.Open(cfg.DatabasePath, newLogger("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	r := router.New(router.Config{
		MaxSources:      cfg.MaxSources,
		MaxDestinations: cfg.MaxDestinations,
		MaxLevels:       cfg.MaxLevels,
	}, newLogger("router"))

	srv := server.New(server.Config{
		Listen:        cfg.Listen,
		AllowedOrigin: cfg.AllowedOrigin,
	}, r, st, newLogger("server"))
	defer srv.Stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			newLogger("server").Printf("fan-out server failed: %v", err)
			stop()
		}
	}()

	logger := newLogger("link")
	if !cfg.AutoConnect {
		logger.Printf("auto connect disabled; serving fan-out only")
		<-ctx.Done()
		return nil
	}

	// Supervisor: hold the router link, reconnect with backoff.
	for {
		tr, err := newTransport(cfg)
		if err != nil {
			return err
		}

		if err := tr.Open(); err != nil {
			logger.Printf("connect failed: %v", err)
		} else {
			logger.Printf("connected to %s", tr.Describe())

			// Close the transport when the daemon is told to exit, so
			// the link's run loop unblocks.
			connCtx, cancel := context.WithCancel(ctx)
			go func() {
				<-connCtx.Done()
				tr.Close()
			}()

			lk := link.New(tr, stats, logger)
			r.Attach(lk, cfg.Transport)
			lk.Run()
			r.Detach(tr.Err())
			cancel()

			logger.Printf("router disconnected: %v", tr.Err())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func newLogger(subsystem string) *log.Logger {
	return log.New(os.Stderr, "["+subsystem+"] ", log.LstdFlags|log.Lmsgprefix)
}
