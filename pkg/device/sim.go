// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// ADC model: 12-bit converter on a 3.3V reference, reporting millivolts
const (
	adcReferenceMV = 3300
	adcMaxCode     = 4095
	dividerCoeff   = 6.58
)

// Nominal LNB supply outputs
const (
	Output13V = 13.0
	Output18V = 18.0
)

// ChannelLEDs is the per-channel indicator row
type ChannelLEDs struct {
	V13  bool `json:"13v"`
	V18  bool `json:"18v"`
	Tone bool `json:"22khz"`
}

// LEDState is a snapshot of every indicator on the board
type LEDState struct {
	System   bool           `json:"system"`
	Channels [2]ChannelLEDs `json:"channels"`
}

// SimBank is an in-memory Bank and Indicator. Output voltage follows the
// power and mode registers with optional jitter.
type SimBank struct {
	mu       sync.Mutex
	power    bool
	high     [2]bool
	tone     [2]bool
	leds     LEDState
	blinks   int
	activity uint64
	jitter   float64
	rng      *rand.Rand
}

// NewSimBank creates a simulated bank. jitter is the peak output noise in
// volts; zero gives exact readings.
func NewSimBank(jitter float64) *SimBank {
	return &SimBank{
		jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetPower implements Bank
func (s *SimBank) SetPower(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = on
}

// SetChannelVoltage implements Bank
func (s *SimBank) SetChannelVoltage(ch int, high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.high[ch-1] = high
	s.leds.Channels[ch-1].V13 = !high
	s.leds.Channels[ch-1].V18 = high
}

// SetChannelTone implements Bank
func (s *SimBank) SetChannelTone(ch int, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tone[ch-1] = on
	s.leds.Channels[ch-1].Tone = on
}

// ReadChannelVoltage implements Bank
func (s *SimBank) ReadChannelVoltage(ch int) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	volts := 0.0
	if s.power {
		volts = Output13V
		if s.high[ch-1] {
			volts = Output18V
		}
	}
	if s.jitter > 0 {
		volts += (s.rng.Float64()*2 - 1) * s.jitter
	}
	return SampleMillivolts(volts)
}

// Activity implements Indicator
func (s *SimBank) Activity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leds.System = true
	s.activity++
}

// ErrorBlink implements Indicator
func (s *SimBank) ErrorBlink(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blinks += count
}

// ClearActivity turns the system LED off again, as the firmware main loop
// does
func (s *SimBank) ClearActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leds.System = false
}

// LEDs returns the current indicator state
func (s *SimBank) LEDs() LEDState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds
}

// Blinks returns the total error blinks so far
func (s *SimBank) Blinks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blinks
}

// Powered reports the supply state
func (s *SimBank) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

// String renders the board state on one line
func (s *SimBank) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	power := "off"
	if s.power {
		power = "on"
	}
	fmt.Fprintf(&sb, "power=%s", power)
	for i, l := range s.leds.Channels {
		mode := "13V"
		if l.V18 {
			mode = "18V"
		}
		tone := "-"
		if l.Tone {
			tone = "22kHz"
		}
		fmt.Fprintf(&sb, " ch%d=%s/%s", i+1, mode, tone)
	}
	fmt.Fprintf(&sb, " frames=%d blinks=%d", s.activity, s.blinks)
	return sb.String()
}

// SampleMillivolts converts an output voltage to the millivolt reading the
// ADC reports at the divider tap, including 12-bit quantization
func SampleMillivolts(volts float64) uint16 {
	if volts <= 0 {
		return 0
	}
	tapMV := volts / dividerCoeff * 1000
	code := math.Round(tapMV * adcMaxCode / adcReferenceMV)
	if code > adcMaxCode {
		code = adcMaxCode
	}
	return uint16(code * adcReferenceMV / adcMaxCode)
}
