// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

import "fmt"

// FormatOp returns the human-readable name for an operation byte
func FormatOp(op byte) string {
	switch op {
	case OpWrite:
		return "WRITE"
	case OpRead:
		return "READ"
	case OpResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand returns the human-readable name for a command byte
func FormatCommand(cmd byte) string {
	switch cmd {
	case CmdPowerSupply:
		return "POWER_SUPPLY_CONTROL"
	case CmdOutVoltageCh1:
		return "OUT_VOLTAGE_CH1"
	case CmdOutVoltageCh2:
		return "OUT_VOLTAGE_CH2"
	case CmdToneSignalCh1:
		return "OUT_TONE_SIGNAL_CH1"
	case CmdToneSignalCh2:
		return "OUT_TONE_SIGNAL_CH2"
	case CmdRealVoltageCh1:
		return "READ_REAL_VOLTAGE_CH1"
	case CmdRealVoltageCh2:
		return "READ_REAL_VOLTAGE_CH2"
	default:
		return "UNKNOWN"
	}
}

// FormatValue describes an argument value in the context of its command
func FormatValue(cmd, value byte) string {
	switch cmd {
	case CmdPowerSupply:
		switch value {
		case PowerSupplyEnabled:
			return "ENABLED"
		case PowerSupplyDisabled:
			return "DISABLED"
		}
	case CmdOutVoltageCh1, CmdOutVoltageCh2:
		switch value {
		case VoltageMode13V:
			return "13V"
		case VoltageMode18V:
			return "18V"
		}
	case CmdToneSignalCh1, CmdToneSignalCh2:
		switch value {
		case ToneEnabled:
			return "TONE_ON"
		case ToneDisabled:
			return "TONE_OFF"
		}
	}
	if value == WriteAck {
		return "ACK"
	}
	return fmt.Sprintf("0x%02X", value)
}

// FormatPacket formats a frame into a single human-readable line
func FormatPacket(p Packet) string {
	crc := "OK"
	if !Verify(p) {
		crc = "BAD"
	}

	switch {
	case p.Op() == OpResponse && (p.Cmd() == CmdRealVoltageCh1 || p.Cmd() == CmdRealVoltageCh2):
		return fmt.Sprintf("%s %s (0x%02X) raw=%d crc=%s",
			FormatOp(p.Op()), FormatCommand(p.Cmd()), p.Cmd(), p.Uint16(), crc)
	case p.Op() == OpRead:
		return fmt.Sprintf("%s %s (0x%02X) crc=%s",
			FormatOp(p.Op()), FormatCommand(p.Cmd()), p.Cmd(), crc)
	default:
		return fmt.Sprintf("%s %s (0x%02X) args=%s,%s crc=%s",
			FormatOp(p.Op()), FormatCommand(p.Cmd()), p.Cmd(),
			FormatValue(p.Cmd(), p.Arg1()), FormatValue(p.Cmd(), p.Arg2()), crc)
	}
}

// FormatHex dumps raw frame bytes
func FormatHex(frame []byte) string {
	result := ""
	for i, b := range frame {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%02X", b)
	}
	return result
}
