// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display frames on a link in human-readable format",
	Long: `Passively decode and display LNB protocol frames as they arrive.

Nothing is sent. Attach to a tap on the controller's line, or to the port of
a running emulator, to watch the traffic. Each frame is printed with a
timestamp, its operation, command, decoded arguments and CRC status.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print the raw frame bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openTransport()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("lnbctl - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := lnbproto.NewDecoder()
	buf := make([]byte, lnbproto.PacketLen)
	skipped := 0

	for {
		ready, err := conn.WaitReadable(time.Second)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || transport.IsDisconnect(err) {
				log.Info("Connection closed")
				return nil
			}
			return err
		}
		if !ready {
			continue
		}

		n, err := conn.Read(buf)
		if errors.Is(err, transport.ErrWouldBlock) {
			continue
		}
		if err != nil {
			log.Warnf("Read error: %v", err)
			continue
		}

		for _, frame := range decoder.Decode(buf[:n]) {
			if s := decoder.Skipped(); s > skipped {
				fmt.Printf("(skipped %d bytes before sync)\n", s-skipped)
				skipped = s
			}
			printFrame(frame)
		}
	}
}

func printFrame(frame []byte) {
	timestamp := time.Now().Format("15:04:05.000")
	p, err := lnbproto.Parse(frame)
	if err != nil {
		fmt.Printf("[%s] \033[1;31mERROR:\033[0m %v\n", timestamp, err)
		return
	}
	fmt.Printf("[%s] %s\n", timestamp, lnbproto.FormatPacket(p))
	if rawLogHex {
		fmt.Printf("  %s\n", lnbproto.FormatHex(frame))
	}
}
