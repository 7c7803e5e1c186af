// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"net/url"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Device.Port != "" && cfg.Device.URL != "" {
		return fmt.Errorf("device: port and url are mutually exclusive")
	}
	if cfg.Device.Baud < 0 {
		return fmt.Errorf("device: baud must be positive, got %d", cfg.Device.Baud)
	}
	if cfg.Device.URL != "" {
		u, err := url.Parse(cfg.Device.URL)
		if err != nil {
			return fmt.Errorf("device: invalid url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("device: url scheme must be ws or wss, got %q", u.Scheme)
		}
	}

	if cfg.Link.RetryCount < 0 {
		return fmt.Errorf("link: retry_count must not be negative")
	}
	if cfg.Link.ReadTimeoutMs < 0 {
		return fmt.Errorf("link: read_timeout_ms must not be negative")
	}

	if cfg.Poller.IntervalMs < 0 {
		return fmt.Errorf("poller: interval_ms must not be negative")
	}
	if cfg.Poller.FailureThreshold < 0 {
		return fmt.Errorf("poller: failure_threshold must not be negative")
	}

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	switch cfg.MQTT.Format {
	case "", "json", "cbor":
	default:
		return fmt.Errorf("mqtt: format must be json or cbor, got %q", cfg.MQTT.Format)
	}

	return nil
}
