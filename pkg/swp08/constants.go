// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

// Package swp08 implements the SW-P-08 (Pro-Bel) router control protocol.
//
// SW-P-08 is a byte-oriented framed protocol used by broadcast matrix
// switchers. This package provides frame encoding/decoding with DLE
// transparency, checksum validation, and builders/parsers for the
// crosspoint and group-salvo message set.
package swp08

// Protocol control bytes
const (
	DLE = 0x10
	STX = 0x02
	ETX = 0x03
	ACK = 0x06
	NAK = 0x15
)

// Frame size limits. The byte count field counts the data bytes plus
// itself plus the checksum, so data is bounded by a single byte.
const (
	MaxDataSize  = 253
	MaxFrameSize = 256 // cmd + data + bytecount + checksum, unescaped
)

// Message types - commands to the router
const (
	MsgCrosspointInterrogate = 0x01
	MsgCrosspointConnect     = 0x02
	MsgTallyDumpRequest      = 0x15
	MsgConnectOnGoGroupSalvo = 0x78
	MsgGoGroupSalvo          = 0x79
	MsgGroupSalvoInterrogate = 0x7C
)

// Message types - responses from the router
const (
	MsgCrosspointTally     = 0x03
	MsgCrosspointConnected = 0x04
	MsgTallyDumpByte       = 0x16
	MsgTallyDumpWord       = 0x17
	MsgConnectOnGoAck      = 0x7A
	MsgGoDoneAck           = 0x7B
	MsgGroupSalvoTally     = 0x7D
)

// Address field limits. Matrix and level share one wire byte as two
// nibbles; destination and source split into a 3-bit high part carried
// in the multiplier byte and a 7-bit low byte.
const (
	MaxMatrix      = 15
	MaxLevel       = 15
	MaxDestination = 1023
	MaxSource      = 1023
)

// Multiplier byte layout: bits 6-4 destination high, bit 3 source
// status, bits 2-0 source high.
const (
	multDestHighShift = 4
	multDestHighMask  = 0x70
	multSrcStatusBit  = 0x08
	multSrcHighMask   = 0x07
)

// Decoder states (internal)
const (
	stateHunt = iota // outside a frame, waiting for DLE STX
	stateHuntDLE     // outside a frame, DLE seen
	stateBody        // inside a frame, collecting body bytes
	stateBodyDLE     // inside a frame, DLE seen
)
