// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import "fmt"

// Command builder and parser functions for the crosspoint and group
// salvo message set. Builders return complete wire frames ready for
// transmission; parsers decode received frame data.

// Tally is one decoded crosspoint report: the router says that on
// (Matrix, Level) the Destination is fed by Source.
type Tally struct {
	Matrix       int
	Level        int
	Destination  int
	Source       int
	SourceStatus bool
}

// SalvoEntry is one crosspoint inside a group salvo.
type SalvoEntry struct {
	Level       int
	Destination int
	Source      int
}

func checkAddress(matrix, level, dest, src int) error {
	if matrix < 0 || matrix > MaxMatrix {
		return fmt.Errorf("matrix %d out of range 0-%d", matrix, MaxMatrix)
	}
	if level < 0 || level > MaxLevel {
		return fmt.Errorf("level %d out of range 0-%d", level, MaxLevel)
	}
	if dest < 0 || dest > MaxDestination {
		return fmt.Errorf("destination %d out of range 0-%d", dest, MaxDestination)
	}
	if src < 0 || src > MaxSource {
		return fmt.Errorf("source %d out of range 0-%d", src, MaxSource)
	}
	return nil
}

func matrixLevel(matrix, level int) byte {
	return byte(matrix&0x0F)<<4 | byte(level&0x0F)
}

// packMultiplier builds the multiplier byte: bits 6-4 destination
// high, bit 3 source status, bits 2-0 source high.
func packMultiplier(dest, src int, srcStatus bool) byte {
	b := byte(dest>>7)<<multDestHighShift | byte(src>>7)&multSrcHighMask
	if srcStatus {
		b |= multSrcStatusBit
	}
	return b
}

func unpackMultiplier(b byte) (destHigh, srcHigh int, srcStatus bool) {
	destHigh = int(b&multDestHighMask) >> multDestHighShift
	srcHigh = int(b & multSrcHighMask)
	srcStatus = b&multSrcStatusBit != 0
	return
}

// EncodeConnect builds a Crosspoint Connect frame (0x02).
// Data layout: matrixLevel | multiplier | destLow | srcLow.
func EncodeConnect(matrix, level, dest, src int) ([]byte, error) {
	if err := checkAddress(matrix, level, dest, src); err != nil {
		return nil, err
	}
	data := []byte{
		matrixLevel(matrix, level),
		packMultiplier(dest, src, false),
		byte(dest & 0x7F),
		byte(src & 0x7F),
	}
	return Encode(MsgCrosspointConnect, data)
}

// EncodeInterrogate builds a Crosspoint Interrogate frame (0x01).
// Same layout as Connect with the source low byte omitted.
func EncodeInterrogate(matrix, level, dest int) ([]byte, error) {
	if err := checkAddress(matrix, level, dest, 0); err != nil {
		return nil, err
	}
	data := []byte{
		matrixLevel(matrix, level),
		packMultiplier(dest, 0, false),
		byte(dest & 0x7F),
	}
	return Encode(MsgCrosspointInterrogate, data)
}

// EncodeTallyDumpRequest builds a Tally Dump Request frame (0x15).
// The router replies with one or more Tally Dump frames covering the
// requested matrix and level.
func EncodeTallyDumpRequest(matrix, level int) ([]byte, error) {
	if err := checkAddress(matrix, level, 0, 0); err != nil {
		return nil, err
	}
	return Encode(MsgTallyDumpRequest, []byte{matrixLevel(matrix, level)})
}

// ParseTally decodes a Crosspoint Tally (0x03) or Crosspoint Connected
// (0x04) frame.
func ParseTally(f *Frame) (Tally, error) {
	if !f.IsTally() {
		return Tally{}, fmt.Errorf("not a tally frame: %s", CommandName(f.Cmd()))
	}
	data := f.Data()
	if len(data) < 4 {
		return Tally{}, fmt.Errorf("tally data too short: %d bytes", len(data))
	}
	destHigh, srcHigh, srcStatus := unpackMultiplier(data[1])
	return Tally{
		Matrix:       int(data[0] >> 4),
		Level:        int(data[0] & 0x0F),
		Destination:  destHigh<<7 | int(data[2]&0x7F),
		Source:       srcHigh<<7 | int(data[3]&0x7F),
		SourceStatus: srcStatus,
	}, nil
}

// ParseTallyDump decodes a Tally Dump frame of either form into the
// tallies it reports. Destinations count up from zero in the order the
// payload lists them; routers may cover only a prefix of the matrix.
//
// The byte form (0x16) carries one data byte per destination holding
// the source low byte (source high is zero). The word form (0x17)
// carries a multiplier byte and a source low byte per destination,
// recovering the high bits of both addresses.
func ParseTallyDump(f *Frame) ([]Tally, error) {
	data := f.Data()
	if len(data) < 1 {
		return nil, fmt.Errorf("tally dump data too short: %d bytes", len(data))
	}
	matrix := int(data[0] >> 4)
	level := int(data[0] & 0x0F)
	entries := data[1:]

	switch f.Cmd() {
	case MsgTallyDumpByte:
		tallies := make([]Tally, 0, len(entries))
		for dest, srcLow := range entries {
			tallies = append(tallies, Tally{
				Matrix:      matrix,
				Level:       level,
				Destination: dest,
				Source:      int(srcLow & 0x7F),
			})
		}
		return tallies, nil

	case MsgTallyDumpWord:
		if len(entries)%2 != 0 {
			return nil, fmt.Errorf("word tally dump has odd entry length %d", len(entries))
		}
		tallies := make([]Tally, 0, len(entries)/2)
		for i := 0; i+1 < len(entries); i += 2 {
			destHigh, srcHigh, srcStatus := unpackMultiplier(entries[i])
			index := i / 2
			tallies = append(tallies, Tally{
				Matrix:       matrix,
				Level:        level,
				Destination:  destHigh<<7 | (index & 0x7F),
				Source:       srcHigh<<7 | int(entries[i+1]&0x7F),
				SourceStatus: srcStatus,
			})
		}
		return tallies, nil

	default:
		return nil, fmt.Errorf("not a tally dump frame: %s", CommandName(f.Cmd()))
	}
}

// EncodeConnectOnGoGroupSalvo builds a Connect on Go Group Salvo frame
// (0x78): the salvo id followed by one 4-byte crosspoint group per
// entry. The crosspoints arm on the router and fire on Go.
func EncodeConnectOnGoGroupSalvo(id int, matrix int, entries []SalvoEntry) ([]byte, error) {
	if id < 0 || id > 0xFF {
		return nil, fmt.Errorf("salvo id %d out of range 0-255", id)
	}
	data := make([]byte, 0, 1+len(entries)*4)
	data = append(data, byte(id))
	for _, e := range entries {
		if err := checkAddress(matrix, e.Level, e.Destination, e.Source); err != nil {
			return nil, err
		}
		data = append(data,
			matrixLevel(matrix, e.Level),
			packMultiplier(e.Destination, e.Source, false),
			byte(e.Destination&0x7F),
			byte(e.Source&0x7F),
		)
	}
	return Encode(MsgConnectOnGoGroupSalvo, data)
}

// EncodeGoGroupSalvo builds a Go Group Salvo frame (0x79) firing a
// previously armed salvo.
func EncodeGoGroupSalvo(id int) ([]byte, error) {
	if id < 0 || id > 0xFF {
		return nil, fmt.Errorf("salvo id %d out of range 0-255", id)
	}
	return Encode(MsgGoGroupSalvo, []byte{byte(id)})
}

// EncodeGroupSalvoInterrogate builds a Group Salvo Interrogate frame
// (0x7C). The router replies with a Group Salvo Tally.
func EncodeGroupSalvoInterrogate(id int) ([]byte, error) {
	if id < 0 || id > 0xFF {
		return nil, fmt.Errorf("salvo id %d out of range 0-255", id)
	}
	return Encode(MsgGroupSalvoInterrogate, []byte{byte(id)})
}

// ParseSalvoAck decodes a Connect-on-Go Ack (0x7A) or Go/Done Ack
// (0x7B) frame into the salvo id it reports.
func ParseSalvoAck(f *Frame) (int, error) {
	if f.Cmd() != MsgConnectOnGoAck && f.Cmd() != MsgGoDoneAck {
		return 0, fmt.Errorf("not a salvo ack frame: %s", CommandName(f.Cmd()))
	}
	if len(f.Data()) < 1 {
		return 0, fmt.Errorf("salvo ack data too short")
	}
	return int(f.Data()[0]), nil
}

// ParseGroupSalvoTally decodes a Group Salvo Tally frame (0x7D): the
// salvo id followed by the armed crosspoints in the 4-byte group
// layout.
func ParseGroupSalvoTally(f *Frame) (int, []Tally, error) {
	if f.Cmd() != MsgGroupSalvoTally {
		return 0, nil, fmt.Errorf("not a group salvo tally frame: %s", CommandName(f.Cmd()))
	}
	data := f.Data()
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("group salvo tally data too short")
	}
	if (len(data)-1)%4 != 0 {
		return 0, nil, fmt.Errorf("group salvo tally has ragged entry length %d", len(data)-1)
	}
	id := int(data[0])
	tallies := make([]Tally, 0, (len(data)-1)/4)
	for i := 1; i+3 < len(data); i += 4 {
		destHigh, srcHigh, srcStatus := unpackMultiplier(data[i+1])
		tallies = append(tallies, Tally{
			Matrix:       int(data[i] >> 4),
			Level:        int(data[i] & 0x0F),
			Destination:  destHigh<<7 | int(data[i+2]&0x7F),
			Source:       srcHigh<<7 | int(data[i+3]&0x7F),
			SourceStatus: srcStatus,
		})
	}
	return id, tallies, nil
}
