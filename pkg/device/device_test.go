// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// ============================================================
// Test Helpers
// ============================================================

// recordingBank logs every actuator call after construction
type recordingBank struct {
	calls  []string
	rawMV  [2]uint16
	record bool
}

func (b *recordingBank) log(s string) {
	if b.record {
		b.calls = append(b.calls, s)
	}
}

func (b *recordingBank) SetPower(on bool) {
	if on {
		b.log("power:on")
	} else {
		b.log("power:off")
	}
}

func (b *recordingBank) SetChannelVoltage(ch int, high bool) {
	if high {
		b.log("voltage:" + string(rune('0'+ch)) + ":18")
	} else {
		b.log("voltage:" + string(rune('0'+ch)) + ":13")
	}
}

func (b *recordingBank) SetChannelTone(ch int, on bool) {
	if on {
		b.log("tone:" + string(rune('0'+ch)) + ":on")
	} else {
		b.log("tone:" + string(rune('0'+ch)) + ":off")
	}
}

func (b *recordingBank) ReadChannelVoltage(ch int) uint16 {
	return b.rawMV[ch-1]
}

type recordingIndicator struct {
	activity int
	blinks   []int
}

func (i *recordingIndicator) Activity()        { i.activity++ }
func (i *recordingIndicator) ErrorBlink(n int) { i.blinks = append(i.blinks, n) }

func newTestDispatcher() (*Dispatcher, *recordingBank, *recordingIndicator) {
	bank := &recordingBank{rawMV: [2]uint16{2036, 2735}}
	ind := &recordingIndicator{}
	d := NewDispatcher(bank, ind)
	bank.record = true
	return d, bank, ind
}

func mustParse(t *testing.T, frame []byte) lnbproto.Packet {
	t.Helper()
	p, err := lnbproto.Parse(frame)
	if err != nil {
		t.Fatalf("response is not a frame: %v", err)
	}
	return p
}

// ============================================================
// Dispatcher Tests
// ============================================================

func TestDispatcher_Defaults(t *testing.T) {
	d, _, _ := newTestDispatcher()
	regs := d.Registers()
	if regs != DefaultRegisters() {
		t.Errorf("unexpected default registers %+v", regs)
	}

	tests := []struct {
		cmd  byte
		want byte
	}{
		{lnbproto.CmdPowerSupply, lnbproto.PowerSupplyDisabled},
		{lnbproto.CmdOutVoltageCh1, lnbproto.VoltageMode13V},
		{lnbproto.CmdOutVoltageCh2, lnbproto.VoltageMode13V},
		{lnbproto.CmdToneSignalCh1, lnbproto.ToneDisabled},
		{lnbproto.CmdToneSignalCh2, lnbproto.ToneDisabled},
	}
	for _, tt := range tests {
		resp := d.Handle(lnbproto.Build(lnbproto.OpRead, tt.cmd, 0, 0).Bytes())
		p := mustParse(t, resp)
		if p.Op() != lnbproto.OpResponse || p.Cmd() != tt.cmd || p.Arg1() != tt.want {
			t.Errorf("read %s: unexpected response %s", lnbproto.FormatCommand(tt.cmd), lnbproto.FormatPacket(p))
		}
	}
}

func TestDispatcher_WriteAppliesAndAcks(t *testing.T) {
	tests := []struct {
		name string
		cmd  byte
		arg  byte
		call string
	}{
		{"power on", lnbproto.CmdPowerSupply, lnbproto.PowerSupplyEnabled, "power:on"},
		{"power other", lnbproto.CmdPowerSupply, 0x42, "power:off"},
		{"ch1 18V", lnbproto.CmdOutVoltageCh1, lnbproto.VoltageMode18V, "voltage:1:18"},
		{"ch2 13V", lnbproto.CmdOutVoltageCh2, lnbproto.VoltageMode13V, "voltage:2:13"},
		{"ch1 tone on", lnbproto.CmdToneSignalCh1, lnbproto.ToneEnabled, "tone:1:on"},
		{"ch2 tone other", lnbproto.CmdToneSignalCh2, 0x00, "tone:2:off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bank, ind := newTestDispatcher()
			resp := d.Handle(lnbproto.Build(lnbproto.OpWrite, tt.cmd, tt.arg, 0).Bytes())

			p := mustParse(t, resp)
			if p.Op() != lnbproto.OpWrite || p.Cmd() != tt.cmd || !lnbproto.IsWriteAck(p) || !lnbproto.Verify(p) {
				t.Errorf("unexpected ack %s", lnbproto.FormatPacket(p))
			}
			if len(bank.calls) != 1 || bank.calls[0] != tt.call {
				t.Errorf("expected [%s], got %v", tt.call, bank.calls)
			}
			if ind.activity != 1 {
				t.Errorf("expected 1 activity indication, got %d", ind.activity)
			}
		})
	}
}

func TestDispatcher_InvalidVoltageModeIgnored(t *testing.T) {
	d, bank, _ := newTestDispatcher()
	d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdOutVoltageCh1, lnbproto.VoltageMode18V, 0).Bytes())
	bank.calls = nil

	resp := d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdOutVoltageCh1, 0x55, 0).Bytes())
	if !lnbproto.IsWriteAck(mustParse(t, resp)) {
		t.Error("invalid mode should still be acknowledged")
	}
	if len(bank.calls) != 0 {
		t.Errorf("invalid mode should not touch the bank, got %v", bank.calls)
	}
	if !d.Registers().VoltageHigh[0] {
		t.Error("register should keep its previous 18V value")
	}
}

func TestDispatcher_UnknownCommands(t *testing.T) {
	d, bank, ind := newTestDispatcher()

	resp := d.Handle(lnbproto.Build(lnbproto.OpWrite, 0x42, 0x01, 0x02).Bytes())
	if resp == nil || !lnbproto.IsWriteAck(mustParse(t, resp)) {
		t.Error("unknown write should be acknowledged")
	}
	if len(bank.calls) != 0 {
		t.Errorf("unknown write should not actuate, got %v", bank.calls)
	}

	if resp := d.Handle(lnbproto.Build(lnbproto.OpRead, 0x42, 0, 0).Bytes()); resp != nil {
		t.Errorf("unknown read should get no response, got % X", resp)
	}
	if resp := d.Handle(lnbproto.Build(lnbproto.OpResponse, lnbproto.CmdPowerSupply, 0, 0).Bytes()); resp != nil {
		t.Errorf("RESPONSE from host should get no response, got % X", resp)
	}
	if ind.activity != 3 {
		t.Errorf("every valid frame should indicate activity, got %d", ind.activity)
	}
}

func TestDispatcher_RealVoltage(t *testing.T) {
	d, _, _ := newTestDispatcher()

	p := mustParse(t, d.Handle(lnbproto.Build(lnbproto.OpRead, lnbproto.CmdRealVoltageCh2, 0, 0).Bytes()))
	if p.Uint16() != 2735 {
		t.Errorf("expected 2735 mV, got %d", p.Uint16())
	}
	if p.Arg1() != 0x0A || p.Arg2() != 0xAF {
		t.Errorf("expected big-endian 0x0A 0xAF, got 0x%02X 0x%02X", p.Arg1(), p.Arg2())
	}
}

func TestDispatcher_RejectsCorruptFrames(t *testing.T) {
	good := lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdPowerSupply, lnbproto.PowerSupplyEnabled, 0).Bytes()

	badMagic := append([]byte(nil), good...)
	badMagic[1] = 0x00
	badMagic[6] = lnbproto.CalculateCRC(badMagic[:6])

	badCRC := append([]byte(nil), good...)
	badCRC[6] ^= 0x01

	tests := []struct {
		name   string
		frame  []byte
		blinks []int
	}{
		{"bad magic", badMagic, []int{BlinkBadMagic}},
		{"bad crc", badCRC, []int{BlinkBadCRC}},
		{"short", good[:5], nil},
		{"long", append(append([]byte(nil), good...), 0x00), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bank, ind := newTestDispatcher()
			before := d.Registers()

			if resp := d.Handle(tt.frame); resp != nil {
				t.Errorf("expected no response, got % X", resp)
			}
			if len(bank.calls) != 0 {
				t.Errorf("corrupt frame touched the bank: %v", bank.calls)
			}
			if d.Registers() != before {
				t.Error("corrupt frame changed registers")
			}
			if ind.activity != 0 {
				t.Error("corrupt frame should not indicate activity")
			}
			if len(ind.blinks) != len(tt.blinks) || (len(tt.blinks) > 0 && ind.blinks[0] != tt.blinks[0]) {
				t.Errorf("expected blinks %v, got %v", tt.blinks, ind.blinks)
			}
		})
	}
}

func TestDispatcher_Statistics(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Handle(lnbproto.Build(lnbproto.OpRead, lnbproto.CmdPowerSupply, 0, 0).Bytes())
	d.Handle([]byte{0x00})

	snap := d.Statistics()
	if snap.Frames != 2 || snap.Responses != 1 || snap.LengthErrors != 1 {
		t.Errorf("unexpected statistics %+v", snap)
	}
}

func TestDispatcher_Reset(t *testing.T) {
	d, _, _ := newTestDispatcher()
	d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdPowerSupply, lnbproto.PowerSupplyEnabled, 0).Bytes())
	d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdToneSignalCh2, lnbproto.ToneEnabled, 0).Bytes())

	d.Reset()
	if d.Registers() != DefaultRegisters() {
		t.Errorf("reset should restore defaults, got %+v", d.Registers())
	}
}

// ============================================================
// Simulated Bank Tests
// ============================================================

func TestSimBank_Voltages(t *testing.T) {
	s := NewSimBank(0)
	d := NewDispatcher(s, s)

	if mv := s.ReadChannelVoltage(1); mv != 0 {
		t.Errorf("unpowered output should read 0, got %d", mv)
	}

	d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdPowerSupply, lnbproto.PowerSupplyEnabled, 0).Bytes())
	d.Handle(lnbproto.Build(lnbproto.OpWrite, lnbproto.CmdOutVoltageCh2, lnbproto.VoltageMode18V, 0).Bytes())

	v1 := float64(s.ReadChannelVoltage(1)) / 1000 * dividerCoeff
	v2 := float64(s.ReadChannelVoltage(2)) / 1000 * dividerCoeff
	if v1 < 12.9 || v1 > 13.1 {
		t.Errorf("expected ~13V on CH1, got %.3f", v1)
	}
	if v2 < 17.9 || v2 > 18.1 {
		t.Errorf("expected ~18V on CH2, got %.3f", v2)
	}

	leds := s.LEDs()
	if !leds.Channels[0].V13 || leds.Channels[0].V18 || !leds.Channels[1].V18 {
		t.Errorf("unexpected LEDs %+v", leds)
	}
	if !leds.System {
		t.Error("system LED should be on after activity")
	}
	s.ClearActivity()
	if s.LEDs().System {
		t.Error("system LED should be off after clear")
	}
}

func TestSampleMillivolts(t *testing.T) {
	if SampleMillivolts(-1) != 0 {
		t.Error("negative voltage should clamp to 0")
	}
	if SampleMillivolts(100) != adcReferenceMV {
		t.Errorf("overrange should clamp to %d, got %d", adcReferenceMV, SampleMillivolts(100))
	}
}

// ============================================================
// Serve Tests
// ============================================================

func TestServe_StreamConn(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()

	d, _, _ := newTestDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- Serve(ctx, NewStreamConn(dev), d) }()

	// Noise before the frame is skipped
	req := append([]byte{0x01, 0x02}, lnbproto.Build(lnbproto.OpRead, lnbproto.CmdPowerSupply, 0, 0).Bytes()...)
	if _, err := host.Write(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	resp := make([]byte, lnbproto.PacketLen)
	host.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(host, resp); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	p := mustParse(t, resp)
	if p.Op() != lnbproto.OpResponse || p.Arg1() != lnbproto.PowerSupplyDisabled {
		t.Errorf("unexpected response %s", lnbproto.FormatPacket(p))
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("serve returned %v after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_ConnectionError(t *testing.T) {
	host, dev := net.Pipe()
	d, _, _ := newTestDispatcher()

	served := make(chan error, 1)
	go func() { served <- Serve(context.Background(), NewStreamConn(dev), d) }()
	host.Close()

	select {
	case err := <-served:
		if err == nil || !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("serve did not return")
	}
}
