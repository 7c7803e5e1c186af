// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/lnbctl/pkg/device"
	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

func newEmulatedSession(t *testing.T) (*Session, *device.Dispatcher, *device.SimBank) {
	t.Helper()
	bank := device.NewSimBank(0)
	d := device.NewDispatcher(bank, bank)
	s := NewSession(transport.NewLoopback(d), fastOptions())
	t.Cleanup(func() { s.Close() })
	return s, d, bank
}

func TestEndToEnd_PowerWriteThenRead(t *testing.T) {
	s, d, bank := newEmulatedSession(t)

	if err := s.Write(lnbproto.CmdPowerSupply, lnbproto.PowerSupplyEnabled, 0); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !bank.Powered() || !d.Registers().Power {
		t.Error("device should be powered after the write")
	}

	a1, a2, err := s.Read(lnbproto.CmdPowerSupply)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if a1 != lnbproto.PowerSupplyEnabled || a2 != 0 {
		t.Errorf("expected (ENABLED, 0), got (0x%02X, 0x%02X)", a1, a2)
	}
}

func TestEndToEnd_FullState(t *testing.T) {
	s, _, _ := newEmulatedSession(t)

	st, err := s.ReadFullState()
	if err != nil {
		t.Fatalf("read full state failed: %v", err)
	}
	if st.PowerEnabled || st.Channel(Channel1).Voltage != 0 {
		t.Errorf("fresh device should be off: %+v", st)
	}
	if st.Channel(Channel1).Polarity != PolarityVertical || st.Channel(Channel2).Band != BandLow {
		t.Errorf("fresh device should be 13V without tone: %+v", st)
	}

	steps := []func() error{
		func() error { return s.SetPower(true) },
		func() error { return s.SetChannelPolarity(Channel2, PolarityHorizontal) },
		func() error { return s.SetChannelBand(Channel1, BandHigh) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	st, err = s.ReadFullState()
	if err != nil {
		t.Fatalf("read full state failed: %v", err)
	}
	if !st.PowerEnabled {
		t.Error("expected power on")
	}
	if math.Abs(st.Channel(Channel1).Voltage-device.Output13V) > 0.05 {
		t.Errorf("expected ~13V on CH1, got %.3f", st.Channel(Channel1).Voltage)
	}
	if math.Abs(st.Channel(Channel2).Voltage-device.Output18V) > 0.05 {
		t.Errorf("expected ~18V on CH2, got %.3f", st.Channel(Channel2).Voltage)
	}
	if st.Channel(Channel2).Polarity != PolarityHorizontal || st.Channel(Channel1).Band != BandHigh {
		t.Errorf("unexpected channel state %+v", st.Channels)
	}
	if st.Channel(Channel1).Polarity != PolarityVertical || st.Channel(Channel2).Band != BandLow {
		t.Errorf("untouched settings changed: %+v", st.Channels)
	}
}

func TestEndToEnd_UnknownReadTimesOut(t *testing.T) {
	s, _, _ := newEmulatedSession(t)
	_, _, err := s.Read(0x42)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected timeout for unknown read, got %v", err)
	}
	if s.Statistics().Timeouts != 1 {
		t.Errorf("expected 1 timeout in statistics, got %d", s.Statistics().Timeouts)
	}
}

func TestEndToEnd_LateResponseIgnored(t *testing.T) {
	bank := device.NewSimBank(0)
	link := transport.NewLoopback(device.NewDispatcher(bank, bank))
	s := NewSession(link, Options{RetryCount: 6, ReadTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { s.Close() })

	// Answer lands after the 300ms budget, during the next transaction
	link.SetLatency(400 * time.Millisecond)
	if _, _, err := s.Read(lnbproto.CmdPowerSupply); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	link.SetLatency(200 * time.Millisecond)
	a1, _, err := s.Read(lnbproto.CmdToneSignalCh1)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if a1 != lnbproto.ToneDisabled {
		t.Errorf("expected tone register 0x%02X, got 0x%02X", lnbproto.ToneDisabled, a1)
	}
}

func TestEndToEnd_Poller(t *testing.T) {
	s, _, _ := newEmulatedSession(t)
	s.SetPower(true)

	got := make(chan HardwareState, 4)
	s.RegisterDataCallback(func(st HardwareState) {
		select {
		case got <- st:
		default:
		}
	})
	if err := s.StartPoller(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case st := <-got:
			if !st.PowerEnabled {
				t.Errorf("snapshot %d: expected power on", i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("snapshot %d never arrived", i)
		}
	}
	s.StopPoller()
}

func TestEndToEnd_WebSocketBridge(t *testing.T) {
	bank := device.NewSimBank(0)
	d := device.NewDispatcher(bank, bank)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(device.WebSocketHandler(ctx, d, &device.Credentials{Username: "lnb", Password: "pw"}))
	defer srv.Close()

	w, err := transport.DialWebSocket(context.Background(), transport.WebSocketOptions{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Username: "lnb",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	s := NewSession(w, Options{ReadTimeout: 50 * time.Millisecond})
	defer s.Close()

	if err := s.SetChannelBand(Channel2, BandHigh); err != nil {
		t.Fatalf("set band failed: %v", err)
	}
	st, err := s.ReadFullState()
	if err != nil {
		t.Fatalf("read full state failed: %v", err)
	}
	if st.Channel(Channel2).Band != BandHigh {
		t.Errorf("expected high band on CH2, got %v", st.Channel(Channel2).Band)
	}
	if !bank.LEDs().Channels[1].Tone {
		t.Error("tone LED should be lit on CH2")
	}
}
