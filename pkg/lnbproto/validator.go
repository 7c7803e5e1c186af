// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

import "fmt"

// FrameErrorType identifies why a frame was rejected
type FrameErrorType int

const (
	FrameErrLength FrameErrorType = iota + 1
	FrameErrMagic
	FrameErrCRC
	FrameErrOp
)

// String returns a short name for the rejection reason
func (t FrameErrorType) String() string {
	switch t {
	case FrameErrLength:
		return "length"
	case FrameErrMagic:
		return "magic"
	case FrameErrCRC:
		return "crc"
	case FrameErrOp:
		return "op"
	default:
		return "unknown"
	}
}

// FrameError represents a frame that failed validation
type FrameError struct {
	Type    FrameErrorType
	Message string
}

// Error implements the error interface
func (f *FrameError) Error() string {
	return f.Message
}

func newFrameError(t FrameErrorType, format string, args ...interface{}) *FrameError {
	return &FrameError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Validate runs the checks a receiver applies before acting on a frame, in
// order: length, magic bytes, CRC. It returns nil for a valid frame.
func Validate(frame []byte) *FrameError {
	p, err := Parse(frame)
	if err != nil {
		return err.(*FrameError)
	}
	if !p.HasMagic() {
		return newFrameError(FrameErrMagic, "bad magic 0x%02X 0x%02X", p[offMagic1], p[offMagic2])
	}
	if !Verify(p) {
		return newFrameError(FrameErrCRC, "CRC mismatch: expected 0x%02X, got 0x%02X", CalculateCRC(p[:offCRC]), p.CRC())
	}
	return nil
}

// ValidateResponse checks a frame received in reply to a READ: it must carry
// the magic bytes, the RESPONSE operation and a valid CRC.
func ValidateResponse(p Packet) *FrameError {
	if !p.HasMagic() {
		return newFrameError(FrameErrMagic, "bad magic 0x%02X 0x%02X", p[offMagic1], p[offMagic2])
	}
	if p.Op() != OpResponse {
		return newFrameError(FrameErrOp, "unexpected operation 0x%02X (expected 0x%02X)", p.Op(), OpResponse)
	}
	if !Verify(p) {
		return newFrameError(FrameErrCRC, "CRC mismatch: expected 0x%02X, got 0x%02X", CalculateCRC(p[:offCRC]), p.CRC())
	}
	return nil
}

// IsWriteAck reports whether a frame acknowledges a WRITE. Only the argument
// bytes are inspected; the device's acknowledgement is minimal and its CRC
// is not re-validated.
func IsWriteAck(p Packet) bool {
	return p.Arg1() == WriteAck && p.Arg2() == WriteAck
}
