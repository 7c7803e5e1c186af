// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// Dispatcher interprets frames from the host. Each call to Handle is one
// atomic unit: validate, act, answer.
type Dispatcher struct {
	bank  Bank
	ind   Indicator
	stats *lnbproto.Statistics

	mu   sync.Mutex
	regs Registers
}

// NewDispatcher creates a dispatcher and drives the bank to the default
// register state
func NewDispatcher(bank Bank, ind Indicator) *Dispatcher {
	if ind == nil {
		ind = NopIndicator
	}
	d := &Dispatcher{
		bank:  bank,
		ind:   ind,
		stats: lnbproto.NewStatistics(),
	}
	d.Reset()
	return d
}

// Reset restores the power-on register state
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs = DefaultRegisters()
	d.bank.SetPower(false)
	for ch := 1; ch <= 2; ch++ {
		d.bank.SetChannelVoltage(ch, false)
		d.bank.SetChannelTone(ch, false)
	}
}

// Registers returns a copy of the register file
func (d *Dispatcher) Registers() Registers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs
}

// Statistics returns the receive counters
func (d *Dispatcher) Statistics() lnbproto.StatsSnapshot {
	return d.stats.Snapshot()
}

// Handle processes one received frame and returns the response frame, or
// nil when nothing is sent back.
func (d *Dispatcher) Handle(frame []byte) []byte {
	if ferr := lnbproto.Validate(frame); ferr != nil {
		d.stats.RecordFrame(ferr)
		switch ferr.Type {
		case lnbproto.FrameErrMagic:
			d.ind.ErrorBlink(BlinkBadMagic)
			log.Warnf("dropped frame: %v", ferr)
		case lnbproto.FrameErrCRC:
			d.ind.ErrorBlink(BlinkBadCRC)
			log.Warnf("dropped frame: %v", ferr)
		default:
			log.Debugf("ignored frame: %v", ferr)
		}
		return nil
	}
	d.stats.RecordFrame(nil)
	d.ind.Activity()

	p, _ := lnbproto.Parse(frame)
	log.Debugf("rx %s", lnbproto.FormatPacket(p))

	var resp lnbproto.Packet
	switch p.Op() {
	case lnbproto.OpWrite:
		d.write(p.Cmd(), p.Arg1())
		resp = lnbproto.Build(lnbproto.OpWrite, p.Cmd(), lnbproto.WriteAck, lnbproto.WriteAck)

	case lnbproto.OpRead:
		a1, a2, ok := d.read(p.Cmd())
		if !ok {
			log.Debugf("no answer for unknown read command 0x%02X", p.Cmd())
			return nil
		}
		resp = lnbproto.Build(lnbproto.OpResponse, p.Cmd(), a1, a2)

	default:
		return nil
	}

	d.stats.RecordResponse()
	log.Debugf("tx %s", lnbproto.FormatPacket(resp))
	return resp.Bytes()
}

func (d *Dispatcher) write(cmd, arg byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case lnbproto.CmdPowerSupply:
		on := arg == lnbproto.PowerSupplyEnabled
		d.regs.Power = on
		d.bank.SetPower(on)

	case lnbproto.CmdOutVoltageCh1:
		d.setVoltage(1, arg)
	case lnbproto.CmdOutVoltageCh2:
		d.setVoltage(2, arg)

	case lnbproto.CmdToneSignalCh1:
		d.setTone(1, arg)
	case lnbproto.CmdToneSignalCh2:
		d.setTone(2, arg)

	default:
		// Unknown writes are still acknowledged
		log.Debugf("absorbed unknown write command 0x%02X", cmd)
	}
}

// setVoltage accepts only the two mode constants
func (d *Dispatcher) setVoltage(ch int, mode byte) {
	var high bool
	switch mode {
	case lnbproto.VoltageMode13V:
		high = false
	case lnbproto.VoltageMode18V:
		high = true
	default:
		log.Debugf("ignored voltage mode 0x%02X for channel %d", mode, ch)
		return
	}
	d.regs.VoltageHigh[ch-1] = high
	d.bank.SetChannelVoltage(ch, high)
}

func (d *Dispatcher) setTone(ch int, value byte) {
	on := value == lnbproto.ToneEnabled
	d.regs.Tone[ch-1] = on
	d.bank.SetChannelTone(ch, on)
}

func (d *Dispatcher) read(cmd byte) (byte, byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case lnbproto.CmdPowerSupply:
		if d.regs.Power {
			return lnbproto.PowerSupplyEnabled, 0, true
		}
		return lnbproto.PowerSupplyDisabled, 0, true

	case lnbproto.CmdOutVoltageCh1:
		return voltageMode(d.regs.VoltageHigh[0]), 0, true
	case lnbproto.CmdOutVoltageCh2:
		return voltageMode(d.regs.VoltageHigh[1]), 0, true

	case lnbproto.CmdToneSignalCh1:
		return toneValue(d.regs.Tone[0]), 0, true
	case lnbproto.CmdToneSignalCh2:
		return toneValue(d.regs.Tone[1]), 0, true

	case lnbproto.CmdRealVoltageCh1:
		hi, lo := lnbproto.PutUint16(d.bank.ReadChannelVoltage(1))
		return hi, lo, true
	case lnbproto.CmdRealVoltageCh2:
		hi, lo := lnbproto.PutUint16(d.bank.ReadChannelVoltage(2))
		return hi, lo, true
	}
	return 0, 0, false
}

func voltageMode(high bool) byte {
	if high {
		return lnbproto.VoltageMode18V
	}
	return lnbproto.VoltageMode13V
}

func toneValue(on bool) byte {
	if on {
		return lnbproto.ToneEnabled
	}
	return lnbproto.ToneDisabled
}
