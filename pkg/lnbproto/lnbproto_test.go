// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

import (
	"strings"
	"testing"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	crc := CalculateCRC([]byte{})
	if crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%02X", crc)
	}
}

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected byte
	}{
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0xF4, // CRC-8/SMBUS check value
		},
		{
			name:     "power on write",
			data:     []byte{0xAE, 0xAB, 0x01, 0xDD, 0xD1, 0x00},
			expected: 0x25,
		},
		{
			name:     "ch1 real voltage read",
			data:     []byte{0xAE, 0xAB, 0x02, 0xC0, 0x00, 0x00},
			expected: 0x83,
		},
		{
			name:     "write ack",
			data:     []byte{0xAE, 0xAB, 0x01, 0xB0, 0xFF, 0xFF},
			expected: 0xFA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CalculateCRC(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%02X, got 0x%02X", tt.expected, crc)
			}
		})
	}
}

func TestCalculateCRC_Deterministic(t *testing.T) {
	data := []byte{0xAE, 0xAB, 0x01, 0x07, 0xEE, 0x00}
	crc1 := CalculateCRC(data)
	crc2 := CalculateCRC(data)
	if crc1 != crc2 {
		t.Errorf("CRC should be deterministic: 0x%02X != 0x%02X", crc1, crc2)
	}
}

// ============================================================
// Packet Tests
// ============================================================

func TestBuild_Layout(t *testing.T) {
	p := Build(OpWrite, CmdPowerSupply, PowerSupplyEnabled, 0x00)

	expected := []byte{0xAE, 0xAB, 0x01, 0xDD, 0xD1, 0x00, 0x25}
	for i, b := range expected {
		if p[i] != b {
			t.Errorf("byte %d: expected 0x%02X, got 0x%02X", i, b, p[i])
		}
	}
	if !Verify(p) {
		t.Error("built packet should verify")
	}
}

func TestBuild_Accessors(t *testing.T) {
	p := Build(OpRead, CmdToneSignalCh2, 0x12, 0x34)

	if !p.HasMagic() {
		t.Error("expected magic bytes")
	}
	if p.Op() != OpRead {
		t.Errorf("expected op 0x%02X, got 0x%02X", OpRead, p.Op())
	}
	if p.Cmd() != CmdToneSignalCh2 {
		t.Errorf("expected cmd 0x%02X, got 0x%02X", CmdToneSignalCh2, p.Cmd())
	}
	a1, a2 := p.Args()
	if a1 != 0x12 || a2 != 0x34 || p.Arg1() != 0x12 || p.Arg2() != 0x34 {
		t.Errorf("unexpected args 0x%02X 0x%02X", a1, a2)
	}
	if p.Uint16() != 0x1234 {
		t.Errorf("expected 0x1234, got 0x%04X", p.Uint16())
	}
}

func TestBuild_BytesIsCopy(t *testing.T) {
	p := Build(OpWrite, CmdOutVoltageCh1, VoltageMode18V, 0)
	b := p.Bytes()
	b[offCmd] = 0x00
	if p.Cmd() != CmdOutVoltageCh1 {
		t.Error("Bytes should return an independent copy")
	}
}

func TestVerify_Corrupted(t *testing.T) {
	p := Build(OpWrite, CmdOutVoltageCh2, VoltageMode13V, 0)
	p[offArg1] ^= 0x01
	if Verify(p) {
		t.Error("corrupted packet should not verify")
	}
}

func TestParse_Length(t *testing.T) {
	for _, n := range []int{0, 1, 6, 8, 64} {
		_, err := Parse(make([]byte, n))
		if err == nil {
			t.Errorf("length %d: expected error", n)
			continue
		}
		fe, ok := err.(*FrameError)
		if !ok || fe.Type != FrameErrLength {
			t.Errorf("length %d: expected length FrameError, got %v", n, err)
		}
	}

	want := Build(OpResponse, CmdRealVoltageCh1, 0x01, 0xF4)
	got, err := Parse(want.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("parse mismatch: %v != %v", got, want)
	}
}

func TestPutUint16_RoundTrip(t *testing.T) {
	hi, lo := PutUint16(4000)
	p := Build(OpResponse, CmdRealVoltageCh1, hi, lo)
	if p.Uint16() != 4000 {
		t.Errorf("expected 4000, got %d", p.Uint16())
	}
	if hi != 0x0F || lo != 0xA0 {
		t.Errorf("expected big-endian 0x0F 0xA0, got 0x%02X 0x%02X", hi, lo)
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidate_Order(t *testing.T) {
	good := Build(OpWrite, CmdPowerSupply, PowerSupplyEnabled, 0).Bytes()

	badMagic := append([]byte(nil), good...)
	badMagic[offMagic1] = 0x00
	badMagic[offCRC] = 0x00 // magic is checked before CRC

	badCRC := append([]byte(nil), good...)
	badCRC[offCRC] ^= 0xFF

	tests := []struct {
		name  string
		frame []byte
		want  FrameErrorType
	}{
		{"short", good[:6], FrameErrLength},
		{"long", append(append([]byte(nil), good...), 0x00), FrameErrLength},
		{"bad magic", badMagic, FrameErrMagic},
		{"bad crc", badCRC, FrameErrCRC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.frame)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if err.Type != tt.want {
				t.Errorf("expected %s, got %s", tt.want, err.Type)
			}
		})
	}

	if err := Validate(good); err != nil {
		t.Errorf("valid frame rejected: %v", err)
	}
}

func TestValidateResponse(t *testing.T) {
	if err := ValidateResponse(Build(OpResponse, CmdPowerSupply, PowerSupplyEnabled, 0)); err != nil {
		t.Errorf("valid response rejected: %v", err)
	}

	err := ValidateResponse(Build(OpWrite, CmdPowerSupply, PowerSupplyEnabled, 0))
	if err == nil || err.Type != FrameErrOp {
		t.Errorf("expected op error, got %v", err)
	}

	p := Build(OpResponse, CmdPowerSupply, PowerSupplyEnabled, 0)
	p[offCRC]++
	err = ValidateResponse(p)
	if err == nil || err.Type != FrameErrCRC {
		t.Errorf("expected crc error, got %v", err)
	}
}

func TestIsWriteAck(t *testing.T) {
	if !IsWriteAck(Build(OpWrite, CmdOutVoltageCh1, WriteAck, WriteAck)) {
		t.Error("0xFF 0xFF should be an ack")
	}
	if IsWriteAck(Build(OpWrite, CmdOutVoltageCh1, WriteAck, 0x00)) {
		t.Error("single 0xFF should not be an ack")
	}
	if IsWriteAck(Build(OpWrite, CmdOutVoltageCh1, 0x00, WriteAck)) {
		t.Error("single 0xFF should not be an ack")
	}

	// The ack CRC is not part of the check
	p := Build(OpWrite, CmdOutVoltageCh1, WriteAck, WriteAck)
	p[offCRC] ^= 0x55
	if !IsWriteAck(p) {
		t.Error("ack with bad CRC should still be accepted")
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatPacket(t *testing.T) {
	tests := []struct {
		name     string
		packet   Packet
		contains []string
	}{
		{
			name:     "power write",
			packet:   Build(OpWrite, CmdPowerSupply, PowerSupplyEnabled, 0),
			contains: []string{"WRITE", "POWER_SUPPLY_CONTROL", "ENABLED", "crc=OK"},
		},
		{
			name:     "voltage read",
			packet:   Build(OpRead, CmdOutVoltageCh2, 0, 0),
			contains: []string{"READ", "OUT_VOLTAGE_CH2"},
		},
		{
			name:     "real voltage response",
			packet:   Build(OpResponse, CmdRealVoltageCh1, 0x00, 0x64),
			contains: []string{"RESPONSE", "READ_REAL_VOLTAGE_CH1", "raw=100"},
		},
		{
			name:     "ack",
			packet:   Build(OpWrite, CmdToneSignalCh1, WriteAck, WriteAck),
			contains: []string{"OUT_TONE_SIGNAL_CH1", "ACK"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatPacket(tt.packet)
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("expected %q in %q", s, out)
				}
			}
		})
	}
}

func TestFormatPacket_BadCRC(t *testing.T) {
	p := Build(OpWrite, CmdPowerSupply, PowerSupplyDisabled, 0)
	p[offCRC]++
	if !strings.Contains(FormatPacket(p), "crc=BAD") {
		t.Error("expected crc=BAD")
	}
}

func TestFormatHex(t *testing.T) {
	got := FormatHex([]byte{0xAE, 0xAB, 0x01})
	if got != "AE AB 01" {
		t.Errorf("expected %q, got %q", "AE AB 01", got)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()
	s.RecordTransaction(OutcomeOK)
	s.RecordTransaction(OutcomeOK)
	s.RecordTransaction(OutcomeTimeout)
	s.RecordTransaction(OutcomeProtocolError)
	s.RecordFrame(nil)
	s.RecordFrame(Validate([]byte{0x00}))
	s.RecordResponse()

	snap := s.Snapshot()
	if snap.Transactions != 4 || snap.Completed != 2 || snap.Timeouts != 1 || snap.ProtocolErrors != 1 {
		t.Errorf("unexpected host counters: %+v", snap)
	}
	if snap.Frames != 2 || snap.LengthErrors != 1 || snap.Responses != 1 {
		t.Errorf("unexpected device counters: %+v", snap)
	}
	if snap.Errors() != 3 {
		t.Errorf("expected 3 errors, got %d", snap.Errors())
	}
	if !strings.Contains(snap.String(), "Transactions:") {
		t.Error("summary should include transactions")
	}

	s.Reset()
	if s.Snapshot().Transactions != 0 {
		t.Error("reset should clear counters")
	}
}

func TestValidateResponse_BadMagic(t *testing.T) {
	p := Build(OpResponse, CmdPowerSupply, PowerSupplyEnabled, 0)
	p[offMagic2] = 0x00
	p[offCRC] = CalculateCRC(p[:offCRC])
	err := ValidateResponse(p)
	if err == nil || err.Type != FrameErrMagic {
		t.Errorf("expected magic error, got %v", err)
	}
}
