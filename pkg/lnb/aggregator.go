// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import "github.com/Thermoquad/lnbctl/pkg/lnbproto"

// ReadFullState reads power, both channel voltages, both polarities and
// both bands, in that order. The first failed read aborts the snapshot.
func (s *Session) ReadFullState() (HardwareState, error) {
	var st HardwareState

	power, _, err := s.Read(lnbproto.CmdPowerSupply)
	if err != nil {
		return HardwareState{}, err
	}
	st.PowerEnabled = power == lnbproto.PowerSupplyEnabled

	for _, ch := range Channels {
		v, err := s.ReadChannelVoltage(ch)
		if err != nil {
			return HardwareState{}, err
		}
		st.Channels[ch.index()].Voltage = v
	}

	for _, ch := range Channels {
		mode, _, err := s.Read(ch.voltageCmd())
		if err != nil {
			return HardwareState{}, err
		}
		st.Channels[ch.index()].Polarity = PolarityFromMode(mode)
	}

	for _, ch := range Channels {
		tone, _, err := s.Read(ch.toneCmd())
		if err != nil {
			return HardwareState{}, err
		}
		st.Channels[ch.index()].Band = BandFromTone(tone)
	}

	st.Connected = true
	return st, nil
}

// ReadChannelVoltage averages VoltageSamples real-voltage reads of ch
func (s *Session) ReadChannelVoltage(ch Channel) (float64, error) {
	if !ch.Valid() {
		s.recordError(ErrInvalidChannel)
		return 0, ErrInvalidChannel
	}

	var sum float64
	for i := 0; i < s.opts.VoltageSamples; i++ {
		hi, lo, err := s.Read(ch.realVoltageCmd())
		if err != nil {
			return 0, err
		}
		sum += VoltageFromRaw(uint16(hi)<<8 | uint16(lo))
	}
	return sum / float64(s.opts.VoltageSamples), nil
}
