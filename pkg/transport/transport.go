// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte links an LNB session runs over: a
// serial port, a WebSocket bridge and an in-process loopback.
//
// All three buffer inbound bytes in the background so that callers can wait
// for a complete frame with a bounded timeout and then read it without
// blocking.
package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// Transport is a bidirectional byte link with a readiness wait
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// WaitReadable blocks up to timeout for a complete frame to be
	// buffered. It returns false with a nil error when the wait simply
	// expired.
	WaitReadable(timeout time.Duration) (bool, error)
}

// InputResetter is implemented by transports that can discard stale input
type InputResetter interface {
	ResetInput() error
}

var (
	// ErrWouldBlock is returned by Read when fewer bytes are buffered than
	// requested. Nothing is consumed.
	ErrWouldBlock = errors.New("transport: read would block")

	// ErrClosed is returned once the transport has been closed
	ErrClosed = errors.New("transport: closed")
)

// rxBuffer accumulates inbound bytes from a background reader. A single
// waiter is expected at a time.
type rxBuffer struct {
	mu        sync.Mutex
	data      []byte
	err       error // sticky; set when the source fails or closes
	threshold int
	notify    chan struct{}
}

func newRxBuffer() *rxBuffer {
	return &rxBuffer{
		threshold: lnbproto.PacketLen,
		notify:    make(chan struct{}, 1),
	}
}

func (b *rxBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *rxBuffer) feed(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	b.signal()
}

func (b *rxBuffer) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.signal()
}

func (b *rxBuffer) state() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data), b.err
}

func (b *rxBuffer) wait(timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		n, err := b.state()
		if n >= b.threshold {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		select {
		case <-b.notify:
		case <-timer.C:
			return false, nil
		}
	}
}

func (b *rxBuffer) read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) < len(p) {
		if len(b.data) == 0 && b.err != nil {
			return 0, b.err
		}
		return 0, ErrWouldBlock
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *rxBuffer) reset() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}
