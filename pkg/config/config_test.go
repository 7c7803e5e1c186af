// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_MatchesProtocolTiming(t *testing.T) {
	opts := Default().Options()

	if opts.RetryCount != 6 {
		t.Errorf("expected 6 retries, got %d", opts.RetryCount)
	}
	if opts.ReadTimeout != 300*time.Millisecond {
		t.Errorf("expected 300ms read timeout, got %v", opts.ReadTimeout)
	}
	if opts.PollInterval != 700*time.Millisecond {
		t.Errorf("expected 700ms poll interval, got %v", opts.PollInterval)
	}
	if opts.FailureThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", opts.FailureThreshold)
	}
	if opts.BaudRate != 115200 {
		t.Errorf("expected 115200 baud, got %d", opts.BaudRate)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Error("empty path should return defaults")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lnbctl.yaml")
	doc := `
device:
  port: /dev/ttyACM0
link:
  read_timeout_ms: 150
mqtt:
  broker: tcp://broker:1883
  topic: dish/lnb
  qos: 1
  format: cbor
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Device.Port != "/dev/ttyACM0" || cfg.Device.Baud != 115200 {
		t.Errorf("unexpected device section %+v", cfg.Device)
	}
	if cfg.Link.ReadTimeoutMs != 150 || cfg.Link.RetryCount != 6 {
		t.Errorf("unexpected link section %+v", cfg.Link)
	}
	if cfg.MQTT.Topic != "dish/lnb" || cfg.MQTT.QoS != 1 || cfg.MQTT.Format != "cbor" || cfg.MQTT.ClientID != "lnbctl" {
		t.Errorf("unexpected mqtt section %+v", cfg.MQTT)
	}
	if cfg.Options().ReadTimeout != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %v", cfg.Options().ReadTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte(""), &cfg); err != nil {
		t.Errorf("empty document should be accepted: %v", err)
	}
}

func TestParse_UnknownField(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("device:\n  speed: 9600\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port and url", func(c *Config) {
			c.Device.Port = "/dev/ttyUSB0"
			c.Device.URL = "ws://bridge/lnb"
		}, "mutually exclusive"},
		{"bad scheme", func(c *Config) { c.Device.URL = "http://bridge" }, "scheme"},
		{"negative retries", func(c *Config) { c.Link.RetryCount = -1 }, "retry_count"},
		{"negative interval", func(c *Config) { c.Poller.IntervalMs = -5 }, "interval_ms"},
		{"qos 3", func(c *Config) { c.MQTT.QoS = 3 }, "qos"},
		{"format", func(c *Config) { c.MQTT.Format = "xml" }, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
