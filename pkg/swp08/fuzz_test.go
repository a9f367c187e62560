// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import (
	"bytes"
	"testing"
)

// FuzzDecoder feeds arbitrary bytes through the decoder. The decoder
// must never panic, and after arbitrary garbage it must still decode a
// clean frame appended to the input.
func FuzzDecoder(f *testing.F) {
	valid, _ := EncodeConnect(0, 0, 5, 10)
	f.Add(valid)
	f.Add([]byte{0x10, 0x06, 0x10, 0x15})
	f.Add([]byte{0x10, 0x02, 0x10, 0x10, 0x10, 0x03})
	f.Add(bytes.Repeat([]byte{0x10}, 40))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, input []byte) {
		dec := NewDecoder()
		for _, b := range input {
			dec.DecodeByte(b)
		}

		// Resynchronisation: garbage never wedges the decoder. A NAK
		// pair first, in case the input ended inside an escape.
		dec.Decode([]byte{0x10, 0x15})
		dec.Reset()
		events, errs := dec.Decode(valid)
		if len(errs) != 0 {
			t.Fatalf("clean frame after garbage: %v", errs)
		}
		if len(events) != 1 || events[0].Kind != EventFrame {
			t.Fatalf("clean frame after garbage: events=%+v", events)
		}
	})
}

// FuzzEncodeDecode checks the roundtrip property for arbitrary
// command/data pairs.
func FuzzEncodeDecode(f *testing.F) {
	f.Add(byte(0x02), []byte{0x00, 0x00, 0x05, 0x0A})
	f.Add(byte(0x10), []byte{0x10, 0x10})
	f.Add(byte(0xFF), []byte{})

	f.Fuzz(func(t *testing.T, cmd byte, data []byte) {
		if len(data) > MaxDataSize {
			data = data[:MaxDataSize]
		}
		frame, err := Encode(cmd, data)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		dec := NewDecoder()
		events, errs := dec.Decode(frame)
		if len(errs) != 0 {
			t.Fatalf("decode: %v", errs)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		got := events[0].Frame
		if got.Cmd() != cmd || !bytes.Equal(got.Data(), data) {
			t.Fatalf("roundtrip mismatch: cmd 0x%02X/0x%02X", cmd, got.Cmd())
		}
	})
}
