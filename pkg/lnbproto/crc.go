// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lnbproto

var crcTable = makeCRCTable(crcPolynomial)

func makeCRCTable(poly byte) [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CalculateCRC computes the table-driven CRC8 checksum for the given data
func CalculateCRC(data []byte) byte {
	crc := byte(crcInitial)
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}
