// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

var packetTestCount int

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test the link with power register reads",
	Long: `Read the power register and report each round trip.

Each read is one full transaction: the request frame is written, then the
response is awaited with the configured retry count and read timeout.

Exit codes:
  0 - Every read got a valid response
  1 - At least one read timed out or returned a bad frame
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVarP(&packetTestCount, "count", "n", 1, "Number of reads")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	s, connInfo, err := openSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	opts := s.Options()
	fmt.Printf("lnbctl - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Response budget: %v (%d x %v)\n\n", opts.ResponseBudget(), opts.RetryCount, opts.ReadTimeout)

	failed := 0
	for i := 1; i <= packetTestCount; i++ {
		start := time.Now()
		arg1, _, err := s.Read(lnbproto.CmdPowerSupply)
		elapsed := time.Since(start).Round(time.Millisecond)

		if err != nil {
			failed++
			fmt.Printf("%d: FAILED after %v: %v\n", i, elapsed, err)
			if errors.Is(err, lnb.ErrIO) {
				break
			}
			continue
		}
		fmt.Printf("%d: OK in %v  power=%s\n", i, elapsed, lnbproto.FormatValue(lnbproto.CmdPowerSupply, arg1))
	}

	fmt.Printf("\n%s\n", s.Statistics())

	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
