// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device is the controller side of the LNB link: a command
// dispatcher that validates frames, applies register writes to an actuator
// bank and answers reads, plus a simulated bank for running an emulator.
package device

// Bank is the actuator and sensor hardware behind the dispatcher. Channels
// are numbered 1 and 2.
type Bank interface {
	SetPower(on bool)
	SetChannelVoltage(ch int, high bool) // high selects 18V
	SetChannelTone(ch int, on bool)
	ReadChannelVoltage(ch int) uint16 // millivolts at the divider tap
}

// Indicator is the status LED
type Indicator interface {
	Activity()
	ErrorBlink(count int)
}

// Error blink counts
const (
	BlinkBadMagic = 3
	BlinkBadCRC   = 4
)

type nopIndicator struct{}

func (nopIndicator) Activity()      {}
func (nopIndicator) ErrorBlink(int) {}

// NopIndicator discards all indications
var NopIndicator Indicator = nopIndicator{}

// Registers mirrors the controller's register file
type Registers struct {
	Power       bool    `json:"power"`
	VoltageHigh [2]bool `json:"voltage_high"` // true = 18V
	Tone        [2]bool `json:"tone"`
}

// DefaultRegisters is the power-on state: supply off, 13V, no tone
func DefaultRegisters() Registers {
	return Registers{}
}
