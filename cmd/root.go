// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/config"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

var (
	configPath string
	verbose    bool

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// cfg is the loaded configuration with flag overrides applied
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "lnbctl",
	Short: "LNB power/polarity/band controller tool",
	Long: `lnbctl - control and monitor a dual-channel LNB power controller.

Each channel supplies 13V (vertical/right polarity) or 18V (horizontal/left
polarity) and can superimpose a 22KHz tone to select the high band.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings can also come from a YAML file given with --config; flags win over
the file. For WebSocket authentication, the password is read from the
LNB_PASSWORD environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log frame traffic and link diagnostics")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", transport.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// setup configures logging and merges the config file with the flags
func setup(cmd *cobra.Command, args []string) error {
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(log.InfoLevel)
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Device.Port = portName
		if !flags.Changed("url") {
			cfg.Device.URL = ""
		}
	}
	if flags.Changed("baud") {
		cfg.Device.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Device.URL = wsURL
		if !flags.Changed("port") {
			cfg.Device.Port = ""
		}
	}
	if flags.Changed("username") {
		cfg.Device.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Device.SkipSSLVerify = wsNoSSLVerify
	}
	return config.Validate(&cfg)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
