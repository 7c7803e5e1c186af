// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/Thermoquad/lnbctl/pkg/device"
)

var (
	emulateListen   string
	emulatePath     string
	emulateJitter   float64
	emulateStatus   int
	emulateAuthUser string
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a simulated LNB controller",
	Long: `Answer LNB protocol frames with a simulated controller.

The emulator implements the controller's command dispatcher on top of a
simulated actuator bank: power and voltage-mode writes change the reported
channel voltages, and tone writes switch the 22KHz indicator.

Modes:
  Serial:    --port /dev/ttyUSB1   (pair with a null-modem or virtual tty)
  WebSocket: --listen :8081        (one binary message per frame)

With --auth-user the WebSocket endpoint requires HTTP Basic auth; the
password is read from LNB_PASSWORD or prompted.

The board state (power, per-channel 13V/18V/22kHz LEDs, frame and error
blink counters) is printed at --status-interval.`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().StringVar(&emulateListen, "listen", "", "Serve a WebSocket endpoint on this address")
	emulateCmd.Flags().StringVar(&emulatePath, "path", "/lnb", "WebSocket endpoint path")
	emulateCmd.Flags().Float64Var(&emulateJitter, "jitter", 0.05, "Peak output voltage noise (volts)")
	emulateCmd.Flags().IntVar(&emulateStatus, "status-interval", 5, "Board status interval (seconds, 0 disables)")
	emulateCmd.Flags().StringVar(&emulateAuthUser, "auth-user", "", "Require HTTP Basic auth with this username")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	if emulateListen == "" && cfg.Device.Port == "" {
		return fmt.Errorf("either --port or --listen must be specified")
	}
	if emulateListen != "" && cfg.Device.Port != "" {
		return fmt.Errorf("--port and --listen are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bank := device.NewSimBank(emulateJitter)
	d := device.NewDispatcher(bank, bank)

	if emulateStatus > 0 {
		go printBoardStatus(ctx, bank, time.Duration(emulateStatus)*time.Second)
	}

	if emulateListen != "" {
		return emulateWebSocket(ctx, d)
	}
	return emulateSerial(ctx, d)
}

func emulateSerial(ctx context.Context, d *device.Dispatcher) error {
	mode := &serial.Mode{
		BaudRate: cfg.Device.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Device.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", cfg.Device.Port, err)
	}

	fmt.Printf("lnbctl - Emulator\n")
	fmt.Printf("Serial: %s @ %d baud\n", cfg.Device.Port, cfg.Device.Baud)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	conn := device.NewStreamConn(port)
	err = device.Serve(ctx, conn, d)
	if skipped := conn.Skipped(); skipped > 0 {
		log.Infof("skipped %d bytes outside frames", skipped)
	}
	fmt.Printf("\n%s", d.Statistics())
	return err
}

func emulateWebSocket(ctx context.Context, d *device.Dispatcher) error {
	var creds *device.Credentials
	if emulateAuthUser != "" {
		password, err := GetPassword()
		if err != nil {
			return err
		}
		creds = &device.Credentials{Username: emulateAuthUser, Password: password}
	}

	r := mux.NewRouter()
	r.Handle(emulatePath, device.WebSocketHandler(ctx, d, creds))
	srv := &http.Server{
		Addr:              emulateListen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("lnbctl - Emulator\n")
	fmt.Printf("WebSocket: ws://%s%s\n", emulateListen, emulatePath)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return runHTTPServer(ctx, srv, func() {
		fmt.Printf("\n%s", d.Statistics())
	})
}

// runHTTPServer serves until ctx is done, then shuts down gracefully
func runHTTPServer(ctx context.Context, srv *http.Server, onStop func()) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if onStop != nil {
		onStop()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// printBoardStatus prints the simulated board at every interval, clearing
// the activity LED afterwards like the firmware main loop
func printBoardStatus(ctx context.Context, bank *device.SimBank, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), bank)
			bank.ClearActivity()
		}
	}
}
