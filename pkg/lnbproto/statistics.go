// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link counters for either peer. It is safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	StartTime time.Time `json:"start_time"`

	// Host side
	Transactions   uint64 `json:"transactions"`
	Completed      uint64 `json:"completed"`
	Timeouts       uint64 `json:"timeouts"`
	IOErrors       uint64 `json:"io_errors"`
	ProtocolErrors uint64 `json:"protocol_errors"`

	// Device side
	Frames       uint64 `json:"frames"`
	LengthErrors uint64 `json:"length_errors"`
	MagicErrors  uint64 `json:"magic_errors"`
	CRCErrors    uint64 `json:"crc_errors"`
	Responses    uint64 `json:"responses"`

	// Rates (calculated)
	TransactionRate float64 `json:"transaction_rate"` // per second
	ErrorRate       float64 `json:"error_rate"`       // per second
}

// Outcome classifies a finished host transaction
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeIOError
	OutcomeProtocolError
)

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{s: StatsSnapshot{StartTime: time.Now()}}
}

// RecordTransaction counts one host transaction and its outcome
func (s *Statistics) RecordTransaction(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.Transactions++
	switch o {
	case OutcomeOK:
		s.s.Completed++
	case OutcomeTimeout:
		s.s.Timeouts++
	case OutcomeIOError:
		s.s.IOErrors++
	case OutcomeProtocolError:
		s.s.ProtocolErrors++
	}
}

// RecordFrame counts one frame seen by a receiver. rejected is nil for a
// frame that passed validation.
func (s *Statistics) RecordFrame(rejected *FrameError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.Frames++
	if rejected == nil {
		return
	}
	switch rejected.Type {
	case FrameErrLength:
		s.s.LengthErrors++
	case FrameErrMagic:
		s.s.MagicErrors++
	case FrameErrCRC:
		s.s.CRCErrors++
	}
}

// RecordResponse counts one frame sent back by the device
func (s *Statistics) RecordResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.Responses++
}

// Snapshot returns a copy of the counters with rates filled in
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	snap := s.s
	s.mu.Unlock()

	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.TransactionRate = float64(snap.Transactions) / elapsed
		snap.ErrorRate = float64(snap.Errors()) / elapsed
	}
	return snap
}

// Reset clears all counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s = StatsSnapshot{StartTime: time.Now()}
}

// Errors returns the total of all error counters
func (s StatsSnapshot) Errors() uint64 {
	return s.Timeouts + s.IOErrors + s.ProtocolErrors + s.LengthErrors + s.MagicErrors + s.CRCErrors
}

// String returns a formatted statistics summary
func (s StatsSnapshot) String() string {
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	if s.Transactions > 0 {
		okPercent := float64(s.Completed) * 100.0 / float64(s.Transactions)
		result += fmt.Sprintf("Transactions:    %8d\n", s.Transactions)
		result += fmt.Sprintf("Completed:       %8d (%.1f%%)\n", s.Completed, okPercent)
		if s.Timeouts > 0 {
			result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
		}
		if s.IOErrors > 0 {
			result += fmt.Sprintf("I/O Errors:      %8d\n", s.IOErrors)
		}
		if s.ProtocolErrors > 0 {
			result += fmt.Sprintf("Protocol Errors: %8d\n", s.ProtocolErrors)
		}
		result += fmt.Sprintf("Rate:            %8.1f trans/sec\n", s.TransactionRate)
	}
	if s.Frames > 0 {
		result += fmt.Sprintf("Frames:          %8d\n", s.Frames)
		result += fmt.Sprintf("Responses:       %8d\n", s.Responses)
		if s.LengthErrors > 0 {
			result += fmt.Sprintf("  Bad Length:       %5d\n", s.LengthErrors)
		}
		if s.MagicErrors > 0 {
			result += fmt.Sprintf("  Bad Magic:        %5d\n", s.MagicErrors)
		}
		if s.CRCErrors > 0 {
			result += fmt.Sprintf("  Bad CRC:          %5d\n", s.CRCErrors)
		}
	}
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}
