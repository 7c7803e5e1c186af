// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// StateReader produces one hardware snapshot
type StateReader interface {
	ReadFullState() (HardwareState, error)
}

// Poller samples a StateReader at a fixed interval and hands each
// snapshot to a data callback. After more than threshold consecutive
// failures it calls the error callback once and exits.
//
// Callbacks run on the poller goroutine. A callback may call Stop; the
// loop then exits once the callback returns.
type Poller struct {
	reader    StateReader
	interval  time.Duration
	threshold int
	onData    func(HardwareState)
	onError   func(error)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	loopID   atomic.Uint64
}

// NewPoller creates a poller. onData may be nil, in which case the poller
// idles without reading.
func NewPoller(r StateReader, interval time.Duration, threshold int, onData func(HardwareState), onError func(error)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Poller{
		reader:    r,
		interval:  interval,
		threshold: threshold,
		onData:    onData,
		onError:   onError,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the polling goroutine. Cancelling ctx has the same effect
// as Stop, without the wait.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop requests the loop to exit and waits until it has. No callback runs
// after Stop returns. Called from a callback, Stop only makes the request.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	if id := p.loopID.Load(); id != 0 && id == goroutineID() {
		return
	}
	<-p.done
}

// Done is closed when the loop has exited
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Running reports whether the loop is still active
func (p *Poller) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) stopping(ctx context.Context) bool {
	select {
	case <-p.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	p.loopID.Store(goroutineID())

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if p.onData != nil {
			st, err := p.reader.ReadFullState()
			if p.stopping(ctx) {
				return
			}
			if err != nil {
				failures++
				log.Warnf("poll failed (%d/%d): %v", failures, p.threshold, err)
				if failures > p.threshold {
					log.Errorf("poller giving up after %d consecutive failures", failures)
					if p.onError != nil {
						p.onError(err)
					}
					return
				}
			} else {
				failures = 0
				p.onData(st)
			}
		}

		timer.Reset(p.interval)
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's ID from its stack header
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, goroutinePrefix)
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		buf = buf[:i]
	}
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

// RegisterDataCallback sets the snapshot consumer. It fails with
// ErrPollerRunning while the poller is active.
func (s *Session) RegisterDataCallback(fn func(HardwareState)) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.poller != nil && s.poller.Running() {
		return ErrPollerRunning
	}
	s.onData = fn
	return nil
}

// RegisterErrorCallback sets the terminal error consumer. It fails with
// ErrPollerRunning while the poller is active.
func (s *Session) RegisterErrorCallback(fn func(error)) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.poller != nil && s.poller.Running() {
		return ErrPollerRunning
	}
	s.onError = fn
	return nil
}

// StartPoller begins background sampling with the registered callbacks
func (s *Session) StartPoller(ctx context.Context) error {
	if !s.Connected() {
		err := newError(KindNotConnected, "poll", 0, nil)
		s.recordError(err)
		return err
	}

	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.poller != nil && s.poller.Running() {
		return ErrPollerRunning
	}

	onError := s.onError
	s.poller = NewPoller(s, s.opts.PollInterval, s.opts.FailureThreshold, s.onData, func(err error) {
		s.recordError(err)
		if onError != nil {
			onError(err)
		}
	})
	s.poller.Start(ctx)
	log.Debugf("poller started (interval %v)", s.opts.PollInterval)
	return nil
}

// StopPoller stops the poller and waits for it to exit. It is a no-op when
// the poller is not running. From inside a callback it returns without
// waiting.
func (s *Session) StopPoller() {
	s.pollMu.Lock()
	p := s.poller
	s.poller = nil
	s.pollMu.Unlock()

	if p != nil {
		p.Stop()
		log.Debug("poller stopped")
	}
}

// PollerRunning reports whether the background poller is active
func (s *Session) PollerRunning() bool {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.poller != nil && s.poller.Running()
}
