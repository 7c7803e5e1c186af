// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

var discoveryProbe bool

var discoveryCmd = &cobra.Command{
	Use:     "discovery",
	Aliases: []string{"ports"},
	Short:   "List USB serial ports that may host a controller",
	Long: `List USB CDC serial devices (ttyACM, ttyUSB and their macOS and
Windows equivalents) with their USB IDs.

With --probe each port is opened and asked for its power register. Ports
that answer with a valid response are marked as controllers.

Exit codes:
  0 - At least one port found (with --probe: at least one controller)
  1 - Nothing found`,
	Args: cobra.NoArgs,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().BoolVar(&discoveryProbe, "probe", false, "Probe each port for a controller")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Fprintln(os.Stderr, "No USB serial ports found")
		os.Exit(1)
	}

	found := 0
	for _, p := range ports {
		if !discoveryProbe {
			fmt.Println(p)
			found++
			continue
		}

		if err := probePort(p.Name); err != nil {
			fmt.Printf("%s  -  %v\n", p, err)
			continue
		}
		fmt.Printf("%s  -  controller\n", p)
		found++
	}

	if found == 0 {
		fmt.Fprintln(os.Stderr, "No controller found")
		os.Exit(1)
	}
	return nil
}

// probePort issues one power read on name
func probePort(name string) error {
	opts := cfg.Options()
	opts.RetryCount = 2

	s, err := lnb.Connect(name, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	_, _, err = s.Read(lnbproto.CmdPowerSupply)
	return err
}
