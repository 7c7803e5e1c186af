// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/lnbctl/pkg/config"
	"github.com/Thermoquad/lnbctl/pkg/lnb"
)

// Availability payloads on <topic>/status
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

const publishTimeout = 5 * time.Second

var (
	publishBroker string
	publishTopic  string
	publishFormat string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish controller snapshots to an MQTT broker",
	Long: `Poll the controller and publish every snapshot to MQTT.

Topics (prefix from --topic or mqtt.topic):
  <prefix>/state   each snapshot, JSON or CBOR (--format)
  <prefix>/status  "online" or "offline", always retained

The broker connection registers "offline" as its last will. When the poller
gives up after consecutive read failures, "offline" is published and the
command exits with the poller's error.

Broker credentials, client ID, QoS and retain come from the mqtt section of
the configuration file.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishBroker, "broker", "", "Broker URL (default from config, tcp://localhost:1883)")
	publishCmd.Flags().StringVar(&publishTopic, "topic", "", "Topic prefix (default from config, lnb)")
	publishCmd.Flags().StringVarP(&publishFormat, "format", "f", "", "Payload format: json or cbor (default from config)")
}

// mqttPublisher is the part of mqtt.Client used for publishing
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// statePublisher encodes snapshots and availability onto MQTT topics
type statePublisher struct {
	client mqttPublisher
	topic  string
	qos    byte
	retain bool
	format string
}

func newStatePublisher(client mqttPublisher, c config.MQTTConfig) *statePublisher {
	format := c.Format
	if format == "" {
		format = "json"
	}
	return &statePublisher{
		client: client,
		topic:  c.Topic,
		qos:    c.QoS,
		retain: c.Retain,
		format: format,
	}
}

func (p *statePublisher) stateTopic() string  { return p.topic + "/state" }
func (p *statePublisher) statusTopic() string { return p.topic + "/status" }

func (p *statePublisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// PublishState sends one snapshot
func (p *statePublisher) PublishState(st lnb.HardwareState) error {
	payload, err := encodeState(p.format, st)
	if err != nil {
		return err
	}
	return p.publish(p.stateTopic(), p.retain, payload)
}

// PublishStatus sends a retained availability message
func (p *statePublisher) PublishStatus(status string) error {
	return p.publish(p.statusTopic(), true, []byte(status))
}

// mqttSettings merges the publish flags over the mqtt config section
func mqttSettings() (config.MQTTConfig, error) {
	c := cfg.MQTT
	if publishBroker != "" {
		c.Broker = publishBroker
	}
	if publishTopic != "" {
		c.Topic = publishTopic
	}
	if publishFormat != "" {
		c.Format = publishFormat
	}
	switch c.Format {
	case "", "json", "cbor":
	default:
		return c, fmt.Errorf("unknown format %q (use json or cbor)", c.Format)
	}
	if c.Topic == "" {
		return c, fmt.Errorf("mqtt topic must not be empty")
	}
	return c, nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	mc, err := mqttSettings()
	if err != nil {
		return err
	}

	s, connInfo, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	opts := mqtt.NewClientOptions().
		AddBroker(mc.Broker).
		SetClientID(mc.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10*time.Second).
		SetWill(mc.Topic+"/status", statusOffline, mc.QoS, true)
	if mc.Username != "" {
		opts.SetUsername(mc.Username)
		opts.SetPassword(mc.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("MQTT connect to %s timed out", mc.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect to %s failed: %w", mc.Broker, err)
	}
	defer client.Disconnect(250)

	pub := newStatePublisher(client, mc)

	fmt.Printf("lnbctl - MQTT Publisher\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Broker: %s  Topic: %s/#  Format: %s\n", mc.Broker, mc.Topic, pub.format)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Buffered so the poller goroutine never blocks on it
	pollErr := make(chan error, 1)

	if err := s.RegisterDataCallback(func(st lnb.HardwareState) {
		if err := pub.PublishState(st); err != nil {
			log.Warnf("failed to publish state: %v", err)
			return
		}
		log.Debugf("published state to %s", pub.stateTopic())
	}); err != nil {
		return err
	}
	if err := s.RegisterErrorCallback(func(err error) {
		if perr := pub.PublishStatus(statusOffline); perr != nil {
			log.Warnf("failed to publish status: %v", perr)
		}
		pollErr <- err
	}); err != nil {
		return err
	}

	if err := pub.PublishStatus(statusOnline); err != nil {
		return err
	}
	if err := s.StartPoller(ctx); err != nil {
		return err
	}

	select {
	case err := <-pollErr:
		return fmt.Errorf("poller stopped: %w", err)
	case <-ctx.Done():
	}

	s.StopPoller()
	if err := pub.PublishStatus(statusOffline); err != nil {
		log.Warnf("failed to publish status: %v", err)
	}
	fmt.Printf("\n%s", s.Statistics())
	return nil
}
