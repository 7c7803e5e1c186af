// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Continuously read the controller and report link errors",
	Long: `Read the full controller state at the poll interval and report failures.

Unlike the background poller used by monitor and publish, this command never
gives up after consecutive failures. Every failure is printed with its kind:
  - timeout: no complete response within the retry budget
  - protocol error: bad CRC, wrong operation or missing write acknowledgement
  - I/O error: the link failed

By default, only errors are displayed. Use --show-all to print every
snapshot. Statistics are printed at --stats-interval and on exit.`,
	Args: cobra.NoArgs,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all snapshots (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	s, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("lnbctl - Error Detection\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interval := s.Options().PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		state, err := s.ReadFullState()
		timestamp := time.Now().Format("15:04:05.000")
		switch {
		case err != nil:
			fmt.Printf("[%s] \033[1;31m%s:\033[0m %v\n", timestamp, lnb.KindOf(err), err)
			if lnb.KindOf(err) == lnb.KindIO {
				fmt.Printf("\n%s", s.Statistics())
				return err
			}
		case showAll:
			fmt.Printf("[%s] \033[1;32mOK\033[0m power=%t ch1=%.2fV/%s/%s ch2=%.2fV/%s/%s\n",
				timestamp, state.PowerEnabled,
				state.Channels[0].Voltage, state.Channels[0].Polarity, state.Channels[0].Band,
				state.Channels[1].Voltage, state.Channels[1].Polarity, state.Channels[1].Band)
		}

		select {
		case <-ctx.Done():
			fmt.Printf("\n%s", s.Statistics())
			return nil
		case <-statsTicker.C:
			fmt.Printf("\n%s\n", s.Statistics())
		case <-ticker.C:
		}
	}
}
