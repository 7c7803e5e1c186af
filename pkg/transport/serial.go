// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the controller's USB CDC configuration
const DefaultBaudRate = 115200

// pollTimeout bounds each background read so Close is noticed promptly
const pollTimeout = 50 * time.Millisecond

// serialPort is the subset of serial.Port used here
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Serial is a Transport over a local serial device
type Serial struct {
	port serialPort
	name string
	rx   *rxBuffer

	closeOnce sync.Once
	done      chan struct{}
	readerWG  sync.WaitGroup
}

// OpenSerial opens a serial port at 8N1 and starts buffering its input
func OpenSerial(name string, baudRate int) (*Serial, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	s, err := newSerial(port, name)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

func newSerial(port serialPort, name string) (*Serial, error) {
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	// Drop whatever the device sent before we were listening
	_ = port.ResetInputBuffer()

	s := &Serial{
		port: port,
		name: name,
		rx:   newRxBuffer(),
		done: make(chan struct{}),
	}
	s.readerWG.Add(1)
	go s.readerLoop()
	return s, nil
}

func (s *Serial) readerLoop() {
	defer s.readerWG.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-s.done:
			s.rx.fail(ErrClosed)
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil {
			select {
			case <-s.done:
				s.rx.fail(ErrClosed)
			default:
				s.rx.fail(fmt.Errorf("serial read on %s: %w", s.name, err))
			}
			return
		}
		// n == 0 is a read timeout
		s.rx.feed(buf[:n])
	}
}

// Name returns the device path
func (s *Serial) Name() string {
	return s.name
}

// Read copies a buffered frame into p without blocking
func (s *Serial) Read(p []byte) (int, error) {
	return s.rx.read(p)
}

// Write sends p to the device
func (s *Serial) Write(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, ErrClosed
	default:
	}
	return s.port.Write(p)
}

// WaitReadable waits for a complete frame to arrive
func (s *Serial) WaitReadable(timeout time.Duration) (bool, error) {
	return s.rx.wait(timeout)
}

// ResetInput discards buffered and pending input
func (s *Serial) ResetInput() error {
	s.rx.reset()
	return s.port.ResetInputBuffer()
}

// Close stops the background reader and closes the port
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.port.Close()
		s.readerWG.Wait()
	})
	return err
}

// IsDisconnect reports whether err means the device went away rather than
// a configuration problem.
func IsDisconnect(err error) bool {
	if errors.Is(err, ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		return isDisconnectCode(portErr.Code())
	}
	var portErrValue serial.PortError
	if errors.As(err, &portErrValue) {
		return isDisconnectCode(portErrValue.Code())
	}
	return false
}

func isDisconnectCode(code serial.PortErrorCode) bool {
	switch code {
	case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
		return true
	default:
		return false
	}
}
