// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

// Packet is a single wire frame. It is a value type and is meant to be
// built, sent and dropped within one transaction.
type Packet [PacketLen]byte

// Build fills the magic bytes, operation, command and arguments and appends
// the CRC8 of the first six bytes.
func Build(op, cmd, arg1, arg2 byte) Packet {
	var p Packet
	p[offMagic1] = Magic1
	p[offMagic2] = Magic2
	p[offOp] = op
	p[offCmd] = cmd
	p[offArg1] = arg1
	p[offArg2] = arg2
	p[offCRC] = CalculateCRC(p[:offCRC])
	return p
}

// Verify recomputes the CRC8 over bytes 0..5 and compares it to byte 6.
func Verify(p Packet) bool {
	return p[offCRC] == CalculateCRC(p[:offCRC])
}

// Parse copies a received frame into a Packet. Only the length is checked;
// callers must still Verify (or Validate) before trusting any field.
func Parse(frame []byte) (Packet, error) {
	var p Packet
	if len(frame) != PacketLen {
		return p, newFrameError(FrameErrLength, "frame length %d (expected %d)", len(frame), PacketLen)
	}
	copy(p[:], frame)
	return p, nil
}

// Bytes returns the frame as a slice ready for transmission
func (p Packet) Bytes() []byte {
	b := make([]byte, PacketLen)
	copy(b, p[:])
	return b
}

// HasMagic reports whether both magic bytes are present
func (p Packet) HasMagic() bool {
	return p[offMagic1] == Magic1 && p[offMagic2] == Magic2
}

// Op returns the operation byte
func (p Packet) Op() byte {
	return p[offOp]
}

// Cmd returns the command byte
func (p Packet) Cmd() byte {
	return p[offCmd]
}

// Arg1 returns the first argument byte
func (p Packet) Arg1() byte {
	return p[offArg1]
}

// Arg2 returns the second argument byte
func (p Packet) Arg2() byte {
	return p[offArg2]
}

// Args returns both argument bytes
func (p Packet) Args() (byte, byte) {
	return p[offArg1], p[offArg2]
}

// CRC returns the checksum byte carried by the frame
func (p Packet) CRC() byte {
	return p[offCRC]
}

// Uint16 returns the arguments as one big-endian 16-bit value. Real-voltage
// responses carry the raw ADC sample this way.
func (p Packet) Uint16() uint16 {
	return uint16(p[offArg1])<<8 | uint16(p[offArg2])
}

// PutUint16 splits v big-endian across two argument bytes
func PutUint16(v uint16) (byte, byte) {
	return byte(v >> 8), byte(v)
}
