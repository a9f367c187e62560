// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import (
	"bytes"
	"testing"
)

func TestEncode_Framing(t *testing.T) {
	frame, err := Encode(0x01, []byte{0x20, 0x30})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if frame[0] != DLE || frame[1] != STX {
		t.Errorf("frame does not start with DLE STX: % X", frame[:2])
	}
	if frame[len(frame)-2] != DLE || frame[len(frame)-1] != ETX {
		t.Errorf("frame does not end with DLE ETX: % X", frame[len(frame)-2:])
	}
}

func TestEncode_ByteCount(t *testing.T) {
	for _, n := range []int{0, 1, 4, 120} {
		data := make([]byte, n)
		frame, err := Encode(0x03, data)
		if err != nil {
			t.Fatalf("encode error at n=%d: %v", n, err)
		}
		ev := mustDecodeOne(t, frame)
		if len(ev.Frame.Data()) != n {
			t.Errorf("n=%d: decoded %d data bytes", n, len(ev.Frame.Data()))
		}
	}
}

func TestEncode_TooLarge(t *testing.T) {
	if _, err := Encode(0x01, make([]byte, MaxDataSize+1)); err == nil {
		t.Error("expected error for oversized data")
	}
}

func TestEncode_DLETransparency(t *testing.T) {
	// Every DLE in the body appears doubled; the only unescaped DLEs
	// on the wire are in the two delimiters.
	frame, err := Encode(0x10, []byte{0x10, 0x00, 0x10})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	inner := frame[2 : len(frame)-2]
	for i := 0; i < len(inner); i++ {
		if inner[i] == DLE {
			if i+1 >= len(inner) || inner[i+1] != DLE {
				t.Fatalf("unescaped DLE at body offset %d: % X", i, inner)
			}
			i++
		}
	}
}

func TestEncode_DecodeRoundtrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x00},
		{0x10},
		{0x10, 0x10, 0x10, 0x10},
		{0x02, 0x03, 0x06, 0x15},
		bytes.Repeat([]byte{0x10, 0x7F}, 60),
	}
	cmds := []byte{0x01, 0x02, 0x03, 0x10, 0x15, 0x16, 0x17, 0x78, 0x7D, 0xFF}

	for _, cmd := range cmds {
		for _, payload := range payloads {
			frame, err := Encode(cmd, payload)
			if err != nil {
				t.Fatalf("encode(0x%02X, %d bytes): %v", cmd, len(payload), err)
			}
			ev := mustDecodeOne(t, frame)
			if ev.Frame.Cmd() != cmd {
				t.Errorf("cmd roundtrip: 0x%02X != 0x%02X", ev.Frame.Cmd(), cmd)
			}
			if !bytes.Equal(ev.Frame.Data(), payload) && len(payload) > 0 {
				t.Errorf("data roundtrip failed for cmd 0x%02X", cmd)
			}
		}
	}
}

func TestUnstuffBytes(t *testing.T) {
	stuffed := stuffBytes([]byte{0x10, 0x01, 0x10})
	if !bytes.Equal(stuffed, []byte{0x10, 0x10, 0x01, 0x10, 0x10}) {
		t.Fatalf("stuffed = % X", stuffed)
	}
	unstuffed, err := UnstuffBytes(stuffed)
	if err != nil {
		t.Fatalf("unstuff error: %v", err)
	}
	if !bytes.Equal(unstuffed, []byte{0x10, 0x01, 0x10}) {
		t.Errorf("unstuffed = % X", unstuffed)
	}

	if _, err := UnstuffBytes([]byte{0x10}); err == nil {
		t.Error("expected error for trailing escape")
	}
	if _, err := UnstuffBytes([]byte{0x10, 0x42}); err == nil {
		t.Error("expected error for invalid escape")
	}
}
