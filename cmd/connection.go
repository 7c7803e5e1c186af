// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

// passwordEnv holds the WebSocket Basic auth password
const passwordEnv = "LNB_PASSWORD"

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line instead
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openTransport opens either a serial or WebSocket link based on the
// merged configuration
func openTransport() (transport.Transport, string, error) {
	dev := cfg.Device

	if dev.URL != "" {
		password := ""
		if dev.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ws, err := transport.DialWebSocket(ctx, transport.WebSocketOptions{
			URL:           dev.URL,
			Username:      dev.Username,
			Password:      password,
			SkipSSLVerify: dev.SkipSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", dev.URL), nil
	}

	if dev.Port != "" {
		s, err := transport.OpenSerial(dev.Port, dev.Baud)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", dev.Port, dev.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// openSession connects and wraps the link in a session using the
// configured link and poller timing
func openSession() (*lnb.Session, string, error) {
	t, info, err := openTransport()
	if err != nil {
		return nil, "", err
	}
	log.Debugf("opened %s", info)
	return lnb.NewSession(t, cfg.Options()), info, nil
}
