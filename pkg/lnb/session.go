// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lnb is the host side of the LNB controller link: a transaction
// engine over a Transport, the state aggregator, and a background poller,
// all owned by a Session.
package lnb

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
	"github.com/Thermoquad/lnbctl/pkg/transport"
)

// Session owns one connection to a controller. All methods are safe for
// concurrent use; transactions are serialized.
type Session struct {
	opts  Options
	stats *lnbproto.Statistics

	// mu is held for the whole write+read pair of a transaction
	mu sync.Mutex
	t  transport.Transport

	errMu   sync.Mutex
	lastErr error

	pollMu  sync.Mutex
	onData  func(HardwareState)
	onError func(error)
	poller  *Poller
}

// Connect opens the serial device at path and returns a session over it
func Connect(path string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	t, err := transport.OpenSerial(path, opts.BaudRate)
	if err != nil {
		return nil, newError(KindIO, "connect", 0, err)
	}
	log.Debugf("connected to %s @ %d baud", path, opts.BaudRate)
	return NewSession(t, opts), nil
}

// NewSession wraps an already open transport
func NewSession(t transport.Transport, opts Options) *Session {
	return &Session{
		opts:  opts.withDefaults(),
		stats: lnbproto.NewStatistics(),
		t:     t,
	}
}

// Options returns the effective session options
func (s *Session) Options() Options {
	return s.opts
}

// Connected reports whether the session still holds its transport
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t != nil
}

// Close stops the poller and releases the transport. Later operations fail
// with ErrNotConnected.
func (s *Session) Close() error {
	s.StopPoller()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t == nil {
		return nil
	}
	err := s.t.Close()
	s.t = nil
	if err != nil {
		return newError(KindIO, "close", 0, err)
	}
	return nil
}

// Statistics returns a snapshot of the link counters
func (s *Session) Statistics() lnbproto.StatsSnapshot {
	return s.stats.Snapshot()
}

// LastErrorDescription describes the most recent failed operation on this
// session. Successful operations do not clear it.
func (s *Session) LastErrorDescription() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.lastErr == nil {
		return "no error"
	}
	return s.lastErr.Error()
}

func (s *Session) recordError(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// finish records the outcome of a transaction
func (s *Session) finish(err error) error {
	if err == nil {
		s.stats.RecordTransaction(lnbproto.OutcomeOK)
		return nil
	}
	if KindOf(err) != KindNotConnected {
		s.stats.RecordTransaction(outcomeOf(err))
	}
	s.recordError(err)
	log.Debugf("transaction failed: %v", err)
	return err
}

// Write sends a WRITE for cmd and waits for the 0xFF 0xFF acknowledgement
func (s *Session) Write(cmd, arg1, arg2 byte) error {
	resp, err := s.transact("write", lnbproto.Build(lnbproto.OpWrite, cmd, arg1, arg2))
	if err != nil {
		return s.finish(err)
	}
	if !lnbproto.IsWriteAck(resp) {
		return s.finish(newError(KindProtocol, "write", cmd,
			fmt.Errorf("missing write acknowledgement (got 0x%02X 0x%02X)", resp.Arg1(), resp.Arg2())))
	}
	return s.finish(nil)
}

// Read sends a READ for cmd and returns the two payload bytes of the
// RESPONSE
func (s *Session) Read(cmd byte) (byte, byte, error) {
	resp, err := s.transact("read", lnbproto.Build(lnbproto.OpRead, cmd, 0, 0))
	if err != nil {
		return 0, 0, s.finish(err)
	}
	if ferr := lnbproto.ValidateResponse(resp); ferr != nil {
		return 0, 0, s.finish(newError(KindProtocol, "read", cmd, ferr))
	}
	a1, a2 := resp.Args()
	return a1, a2, s.finish(nil)
}

// transact performs one write-then-read cycle under the session lock
func (s *Session) transact(op string, req lnbproto.Packet) (lnbproto.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := req.Cmd()
	if s.t == nil {
		return lnbproto.Packet{}, newError(KindNotConnected, op, cmd, nil)
	}

	if r, ok := s.t.(transport.InputResetter); ok {
		if err := r.ResetInput(); err != nil {
			log.Debugf("input reset failed: %v", err)
		}
	}

	n, err := s.t.Write(req.Bytes())
	if err != nil {
		return lnbproto.Packet{}, newError(KindIO, op, cmd, err)
	}
	if n != lnbproto.PacketLen {
		return lnbproto.Packet{}, newError(KindIO, op, cmd,
			fmt.Errorf("short write: %d of %d bytes", n, lnbproto.PacketLen))
	}
	log.Debugf("tx %s", lnbproto.FormatPacket(req))

	resp, err := s.readAnswer(op, cmd)
	if err != nil {
		return lnbproto.Packet{}, err
	}
	log.Debugf("rx %s", lnbproto.FormatPacket(resp))
	return resp, nil
}

// readAnswer waits for the frame answering cmd within the bounded retry
// budget. Frames for any other command are discarded and use up an attempt.
func (s *Session) readAnswer(op string, cmd byte) (lnbproto.Packet, error) {
	buf := make([]byte, lnbproto.PacketLen)

	for attempt := 0; attempt < s.opts.RetryCount; attempt++ {
		ready, err := s.t.WaitReadable(s.opts.ReadTimeout)
		if err != nil {
			return lnbproto.Packet{}, newError(KindIO, op, cmd, err)
		}
		if !ready {
			continue
		}

		n, err := s.t.Read(buf)
		if errors.Is(err, transport.ErrWouldBlock) {
			continue
		}
		if err != nil {
			return lnbproto.Packet{}, newError(KindIO, op, cmd, err)
		}
		if n != lnbproto.PacketLen {
			return lnbproto.Packet{}, newError(KindIO, op, cmd,
				fmt.Errorf("short read: %d of %d bytes", n, lnbproto.PacketLen))
		}

		p, _ := lnbproto.Parse(buf)
		if p.Cmd() != cmd {
			// Late answer to an earlier, timed-out request
			log.Debugf("dropping stale frame %s", lnbproto.FormatPacket(p))
			continue
		}
		return p, nil
	}

	return lnbproto.Packet{}, newError(KindTimeout, op, cmd,
		fmt.Errorf("no response after %d attempts of %v", s.opts.RetryCount, s.opts.ReadTimeout))
}

// SetPower switches the LNB supply
func (s *Session) SetPower(enabled bool) error {
	value := byte(lnbproto.PowerSupplyDisabled)
	if enabled {
		value = lnbproto.PowerSupplyEnabled
	}
	return s.Write(lnbproto.CmdPowerSupply, value, 0)
}

// SetChannelPolarity selects 13V (vertical) or 18V (horizontal) on ch
func (s *Session) SetChannelPolarity(ch Channel, p Polarity) error {
	if !ch.Valid() {
		s.recordError(ErrInvalidChannel)
		return ErrInvalidChannel
	}
	return s.Write(ch.voltageCmd(), p.voltageMode(), 0)
}

// SetChannelBand switches the 22 kHz tone on ch
func (s *Session) SetChannelBand(ch Channel, b Band) error {
	if !ch.Valid() {
		s.recordError(ErrInvalidChannel)
		return ErrInvalidChannel
	}
	return s.Write(ch.toneCmd(), b.toneValue(), 0)
}
