// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import "fmt"

// AckBytes and NakBytes are the short link-level handshake frames.
// They carry no STX/ETX and are written to the wire as-is.
var (
	AckBytes = []byte{DLE, ACK}
	NakBytes = []byte{DLE, NAK}
)

// Encode creates a complete wire-formatted SW-P-08 frame.
// The unescaped body is cmd | data | bytecount | checksum, where
// bytecount counts the data bytes plus itself plus the checksum.
// Every DLE in the body is doubled for transparency and the result is
// wrapped in DLE STX / DLE ETX.
func Encode(cmd byte, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("data too large: %d bytes (max %d)", len(data), MaxDataSize)
	}

	body := make([]byte, 0, len(data)+3)
	body = append(body, cmd)
	body = append(body, data...)
	body = append(body, byte(len(data)+2))
	body = append(body, Checksum(body))

	stuffed := stuffBytes(body)

	frame := make([]byte, 0, len(stuffed)+4)
	frame = append(frame, DLE, STX)
	frame = append(frame, stuffed...)
	frame = append(frame, DLE, ETX)

	return frame, nil
}

// MustEncode encodes a frame and panics on error. Intended for the
// fixed-size command builders whose data cannot exceed the limit.
func MustEncode(cmd byte, data []byte) []byte {
	frame, err := Encode(cmd, data)
	if err != nil {
		panic(fmt.Sprintf("swp08: encode error: %v", err))
	}
	return frame
}

// stuffBytes applies DLE transparency: every DLE byte is doubled.
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == DLE {
			result = append(result, DLE, DLE)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// UnstuffBytes removes DLE transparency from escaped body data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escaped := false
	for _, b := range data {
		if escaped {
			if b != DLE {
				return nil, fmt.Errorf("invalid escape sequence DLE 0x%02X", b)
			}
			result = append(result, DLE)
			escaped = false
		} else if b == DLE {
			escaped = true
		} else {
			result = append(result, b)
		}
	}
	if escaped {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return result, nil
}
