// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the controller over an HTTP API",
	Long: `Serve a JSON HTTP API for the connected controller.

Routes:
  GET /api/state                   full state (live read)
  GET /api/stats                   link statistics
  PUT /api/power                   {"enabled": true|false}
  PUT /api/channels/{ch}/polarity  {"polarity": "vertical"|"horizontal"}
  PUT /api/channels/{ch}/band      {"band": "low"|"high"}

Errors are JSON objects with an "error" field. Status codes:
  400 bad request body, 404 unknown channel,
  502 protocol or I/O error, 504 device timeout.

The listen address defaults to the http.listen configuration value.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default from config, :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := cfg.HTTP.Listen
	if serveListen != "" {
		listen = serveListen
	}

	s, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &http.Server{
		Addr:              listen,
		Handler:           newAPIRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("lnbctl - HTTP API\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening on %s\n", listen)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return runHTTPServer(ctx, srv, nil)
}
