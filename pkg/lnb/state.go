// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// ADC scaling: the controller reports millivolts at the divider tap
const voltageDividerCoeff = 6.58

// Channel selects one of the two outputs
type Channel int

const (
	Channel1 Channel = 1
	Channel2 Channel = 2
)

// Channels lists both outputs in read order
var Channels = [...]Channel{Channel1, Channel2}

// Valid reports whether c is 1 or 2
func (c Channel) Valid() bool {
	return c == Channel1 || c == Channel2
}

func (c Channel) index() int {
	return int(c) - 1
}

func (c Channel) voltageCmd() byte {
	if c == Channel2 {
		return lnbproto.CmdOutVoltageCh2
	}
	return lnbproto.CmdOutVoltageCh1
}

func (c Channel) realVoltageCmd() byte {
	if c == Channel2 {
		return lnbproto.CmdRealVoltageCh2
	}
	return lnbproto.CmdRealVoltageCh1
}

func (c Channel) toneCmd() byte {
	if c == Channel2 {
		return lnbproto.CmdToneSignalCh2
	}
	return lnbproto.CmdToneSignalCh1
}

// Polarity is the output voltage mode of a channel
type Polarity int

const (
	PolarityVertical   Polarity = iota // 13V, vertical / right
	PolarityHorizontal                 // 18V, horizontal / left
)

// String returns the polarity name
func (p Polarity) String() string {
	if p == PolarityHorizontal {
		return "horizontal"
	}
	return "vertical"
}

// Describe returns the long form used in state printouts
func (p Polarity) Describe() string {
	if p == PolarityHorizontal {
		return "HORIZONTAL/LEFT (18V)"
	}
	return "VERTICAL/RIGHT (13V)"
}

// MarshalText implements encoding.TextMarshaler
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *Polarity) UnmarshalText(text []byte) error {
	v, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePolarity accepts vertical, right, horizontal or left (any case)
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertical", "right", "v", "r", "13v":
		return PolarityVertical, nil
	case "horizontal", "left", "h", "l", "18v":
		return PolarityHorizontal, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolarity, s)
}

func (p Polarity) voltageMode() byte {
	if p == PolarityHorizontal {
		return lnbproto.VoltageMode18V
	}
	return lnbproto.VoltageMode13V
}

// PolarityFromMode decodes a voltage-mode read-back: vertical iff 13V
func PolarityFromMode(mode byte) Polarity {
	if mode == lnbproto.VoltageMode13V {
		return PolarityVertical
	}
	return PolarityHorizontal
}

// Band is the tone mode of a channel
type Band int

const (
	BandLow  Band = iota // no 22 kHz tone
	BandHigh             // 22 kHz tone
)

// String returns the band name
func (b Band) String() string {
	if b == BandHigh {
		return "high"
	}
	return "low"
}

// Describe returns the long form used in state printouts
func (b Band) Describe() string {
	if b == BandHigh {
		return "HIGH (22KHz tone)"
	}
	return "LOW (No 22KHz tone)"
}

// MarshalText implements encoding.TextMarshaler
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (b *Band) UnmarshalText(text []byte) error {
	v, err := ParseBand(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBand accepts low or high (any case)
func ParseBand(s string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "lo", "off":
		return BandLow, nil
	case "high", "hi", "on", "tone":
		return BandHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBand, s)
}

func (b Band) toneValue() byte {
	if b == BandHigh {
		return lnbproto.ToneEnabled
	}
	return lnbproto.ToneDisabled
}

// BandFromTone decodes a tone read-back: low iff tone disabled
func BandFromTone(tone byte) Band {
	if tone == lnbproto.ToneDisabled {
		return BandLow
	}
	return BandHigh
}

// VoltageFromRaw converts a raw ADC sample to output volts
func VoltageFromRaw(raw uint16) float64 {
	return float64(raw) / 1000 * voltageDividerCoeff
}

// ChannelState is the live state of one output
type ChannelState struct {
	Voltage  float64  `json:"voltage" cbor:"1,keyasint"`
	Polarity Polarity `json:"polarity" cbor:"2,keyasint"`
	Band     Band     `json:"band" cbor:"3,keyasint"`
}

// HardwareState is one snapshot of the controller. It is a value type and
// is never updated in place.
type HardwareState struct {
	Connected    bool            `json:"connected" cbor:"1,keyasint"`
	PowerEnabled bool            `json:"power_enabled" cbor:"2,keyasint"`
	Channels     [2]ChannelState `json:"channels" cbor:"3,keyasint"`
}

// Channel returns the state of ch. ch must be valid.
func (h HardwareState) Channel(ch Channel) ChannelState {
	return h.Channels[ch.index()]
}

// String renders the state the way the command-line tool prints it
func (h HardwareState) String() string {
	var sb strings.Builder
	power := "DISABLED"
	if h.PowerEnabled {
		power = "ENABLED"
	}
	fmt.Fprintf(&sb, "Power:  %s\n", power)
	for _, ch := range Channels {
		c := h.Channel(ch)
		fmt.Fprintf(&sb, "CH%d voltage:  %.2fV\n", ch, c.Voltage)
		fmt.Fprintf(&sb, "CH%d polarity: %s\n", ch, c.Polarity.Describe())
		fmt.Fprintf(&sb, "CH%d band:     %s\n", ch, c.Band.Describe())
	}
	return sb.String()
}
