// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"
	"time"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// Handler answers one inbound frame. A nil return means no response.
type Handler interface {
	Handle(frame []byte) []byte
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(frame []byte) []byte

// Handle calls f(frame)
func (f HandlerFunc) Handle(frame []byte) []byte {
	return f(frame)
}

// Loopback is an in-process Transport that feeds written frames to a
// Handler and buffers its responses. Latency delays each response.
type Loopback struct {
	handler Handler
	latency time.Duration
	rx      *rxBuffer

	mu      sync.Mutex
	decoder *lnbproto.Decoder
	closed  bool
	pending sync.WaitGroup
}

// NewLoopback creates a loopback in front of h
func NewLoopback(h Handler) *Loopback {
	return &Loopback{
		handler: h,
		rx:      newRxBuffer(),
		decoder: lnbproto.NewDecoder(),
	}
}

// SetLatency delays every subsequent response by d
func (l *Loopback) SetLatency(d time.Duration) {
	l.mu.Lock()
	l.latency = d
	l.mu.Unlock()
}

// Write decodes frames from p and dispatches each to the handler
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrClosed
	}
	frames := l.decoder.Decode(p)
	latency := l.latency
	l.mu.Unlock()

	for _, frame := range frames {
		resp := l.handler.Handle(frame)
		if resp == nil {
			continue
		}
		if latency <= 0 {
			l.rx.feed(resp)
			continue
		}
		l.pending.Add(1)
		time.AfterFunc(latency, func() {
			defer l.pending.Done()
			l.rx.feed(resp)
		})
	}
	return len(p), nil
}

// Read copies a buffered response into p without blocking
func (l *Loopback) Read(p []byte) (int, error) {
	return l.rx.read(p)
}

// WaitReadable waits for a complete response
func (l *Loopback) WaitReadable(timeout time.Duration) (bool, error) {
	return l.rx.wait(timeout)
}

// ResetInput discards buffered responses
func (l *Loopback) ResetInput() error {
	l.rx.reset()
	return nil
}

// Close marks the loopback closed and waits for delayed responses
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.pending.Wait()
	l.rx.fail(ErrClosed)
	return nil
}
