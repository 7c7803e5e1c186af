// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the optional lnbctl YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

type Config struct {
	Device DeviceConfig `yaml:"device"`
	Link   LinkConfig   `yaml:"link"`
	Poller PollerConfig `yaml:"poller"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	SkipSSLVerify bool   `yaml:"no_ssl_verify"`
}

// ---- LINK ----

type LinkConfig struct {
	RetryCount    int `yaml:"retry_count"`
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// ---- POLLER ----

type PollerConfig struct {
	IntervalMs       int `yaml:"interval_ms"`
	FailureThreshold int `yaml:"failure_threshold"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // prefix; state and status are published below it
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
	Format   string `yaml:"format"` // json or cbor
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration
func Default() Config {
	opts := lnb.DefaultOptions()
	return Config{
		Device: DeviceConfig{
			Baud: opts.BaudRate,
		},
		Link: LinkConfig{
			RetryCount:    opts.RetryCount,
			ReadTimeoutMs: int(opts.ReadTimeout / time.Millisecond),
		},
		Poller: PollerConfig{
			IntervalMs:       int(opts.PollInterval / time.Millisecond),
			FailureThreshold: opts.FailureThreshold,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "lnbctl",
			Topic:    "lnb",
			QoS:      0,
			Format:   "json",
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document leaves out,
// then validates the result
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return Validate(cfg)
}

// Options converts the link and poller sections to session options
func (c Config) Options() lnb.Options {
	return lnb.Options{
		BaudRate:         c.Device.Baud,
		RetryCount:       c.Link.RetryCount,
		ReadTimeout:      time.Duration(c.Link.ReadTimeoutMs) * time.Millisecond,
		PollInterval:     time.Duration(c.Poller.IntervalMs) * time.Millisecond,
		FailureThreshold: c.Poller.FailureThreshold,
	}
}
