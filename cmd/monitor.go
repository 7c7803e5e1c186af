// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and controlling the LNB controller",
	Long: `Monitor and control the controller in an interactive terminal UI.

The background poller reads the full state at the poll interval and the
display follows every snapshot. Power, polarity and band can be toggled
from the keyboard; those commands share the link with the poller.

After the configured number of consecutive read failures the poller stops
and reports the error. Press 'r' to restart it.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	s, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defer silenceLogs()()

	p := tea.NewProgram(initialModel(ctx, s, connInfo))

	// The poller runs on its own goroutine; Send hands each event to the
	// UI loop
	if err := s.RegisterDataCallback(func(st lnb.HardwareState) {
		p.Send(stateMsg(st))
	}); err != nil {
		return err
	}
	if err := s.RegisterErrorCallback(func(err error) {
		p.Send(pollerErrorMsg{err: err})
	}); err != nil {
		return err
	}
	if err := s.StartPoller(ctx); err != nil {
		return err
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	s.StopPoller()
	return nil
}

// silenceLogs discards log output until the returned func restores it.
// Any write to the terminal would tear the alternate screen.
func silenceLogs() (restore func()) {
	std := log.StandardLogger()
	prev := std.Out
	log.SetOutput(io.Discard)
	return func() { log.SetOutput(prev) }
}
