// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnb

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/lnbctl/pkg/lnbproto"
)

// Kind classifies a failed transaction
type Kind int

const (
	KindIO Kind = iota + 1
	KindTimeout
	KindProtocol
	KindNotConnected
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol error"
	case KindNotConnected:
		return "not connected"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrIO           = errors.New("lnb: I/O error")
	ErrTimeout      = errors.New("lnb: timeout")
	ErrProtocol     = errors.New("lnb: protocol error")
	ErrNotConnected = errors.New("lnb: not connected")
)

// Argument and lifecycle errors
var (
	ErrInvalidChannel  = errors.New("lnb: invalid channel (expected 1 or 2)")
	ErrPollerRunning   = errors.New("lnb: poller is running")
	ErrInvalidPolarity = errors.New("lnb: invalid polarity")
	ErrInvalidBand     = errors.New("lnb: invalid band")
)

// Error is returned by every transaction that fails
type Error struct {
	Kind Kind
	Op   string // "write" or "read"
	Cmd  byte
	Err  error // underlying cause, may be nil
}

func newError(kind Kind, op string, cmd byte, err error) *Error {
	return &Error{Kind: kind, Op: op, Cmd: cmd, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, lnbproto.FormatCommand(e.Cmd), e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindIO:
		return target == ErrIO
	case KindTimeout:
		return target == ErrTimeout
	case KindProtocol:
		return target == ErrProtocol
	case KindNotConnected:
		return target == ErrNotConnected
	}
	return false
}

// KindOf returns the Kind of err, or 0 if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func outcomeOf(err error) lnbproto.Outcome {
	switch KindOf(err) {
	case KindTimeout:
		return lnbproto.OutcomeTimeout
	case KindProtocol:
		return lnbproto.OutcomeProtocolError
	default:
		return lnbproto.OutcomeIOError
	}
}
