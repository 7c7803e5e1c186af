// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

// Decoder splits a byte stream into seven-byte frames. It synchronizes on
// the two magic bytes and otherwise does no validation: frames it returns
// still have to pass Validate.
type Decoder struct {
	state   int
	buffer  [PacketLen]byte
	index   int
	skipped int // bytes dropped while hunting for magic
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle}
}

// Reset returns the decoder to the idle state
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.index = 0
}

// Skipped returns how many bytes were discarded before synchronization
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte feeds one byte into the decoder.
// Returns a complete frame, or nil if more bytes are needed.
func (d *Decoder) DecodeByte(b byte) []byte {
	switch d.state {
	case stateIdle:
		if b != Magic1 {
			d.skipped++
			return nil
		}
		d.buffer[0] = b
		d.index = 1
		d.state = stateMagic2
		return nil

	case stateMagic2:
		if b == Magic1 {
			// Repeated first magic byte: treat this one as the start
			d.skipped++
			return nil
		}
		if b != Magic2 {
			d.skipped += 2
			d.Reset()
			return nil
		}
		d.buffer[1] = b
		d.index = 2
		d.state = stateBody
		return nil

	case stateBody:
		d.buffer[d.index] = b
		d.index++
		if d.index < PacketLen {
			return nil
		}
		frame := make([]byte, PacketLen)
		copy(frame, d.buffer[:])
		d.Reset()
		return frame

	default:
		d.Reset()
		return nil
	}
}

// Decode feeds a chunk of bytes and returns every frame completed by it
func (d *Decoder) Decode(data []byte) [][]byte {
	var frames [][]byte
	for _, b := range data {
		if frame := d.DecodeByte(b); frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames
}
