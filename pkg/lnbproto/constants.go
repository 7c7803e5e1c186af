// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lnbproto implements the wire format shared by the LNB controller
// and its host tools.
//
// Every frame is exactly seven bytes:
//
//	[0] 0xAE  magic 1
//	[1] 0xAB  magic 2
//	[2] op    WRITE, READ or RESPONSE
//	[3] cmd   command register
//	[4] arg1
//	[5] arg2
//	[6] CRC8 of bytes 0..5
//
// The command registry below is compiled into both peers. Changing a value
// on one side without the other breaks compatibility.
package lnbproto

// Frame layout
const (
	PacketLen = 7

	Magic1 = 0xAE
	Magic2 = 0xAB
)

// Byte offsets inside a frame
const (
	offMagic1 = 0
	offMagic2 = 1
	offOp     = 2
	offCmd    = 3
	offArg1   = 4
	offArg2   = 5
	offCRC    = 6
)

// Operations
const (
	OpWrite    = 0x01
	OpRead     = 0x02
	OpResponse = 0xE1
)

// WriteAck is placed in both argument bytes of a write acknowledgement.
const WriteAck = 0xFF

// Power supply control
const (
	CmdPowerSupply      = 0xDD
	PowerSupplyDisabled = 0xD0
	PowerSupplyEnabled  = 0xD1
)

// Channel 1 registers
const (
	CmdOutVoltageCh1  = 0xB0
	CmdRealVoltageCh1 = 0xC0
	CmdToneSignalCh1  = 0x07
)

// Channel 2 registers
const (
	CmdOutVoltageCh2  = 0xB1
	CmdRealVoltageCh2 = 0xC1
	CmdToneSignalCh2  = 0x10
)

// Voltage mode and tone values
const (
	VoltageMode13V = 0x0D // vertical / right
	VoltageMode18V = 0x12 // horizontal / left
	ToneEnabled    = 0xEE
	ToneDisabled   = 0xED
)

// CRC-8 configuration (CRC-8/SMBUS: poly x^8+x^2+x+1, init 0, no reflection)
const (
	crcPolynomial = 0x07
	crcInitial    = 0x00
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateMagic2
	stateBody
)
