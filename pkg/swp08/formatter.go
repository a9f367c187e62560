// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import "fmt"

// FormatFrame renders a decoded frame in human-readable form, one
// header line plus indented detail lines for known commands.
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, CommandName(f.Cmd()), f.Cmd(), len(f.Data()))
	result += formatData(f)
	return result
}

func formatData(f *Frame) string {
	switch f.Cmd() {
	case MsgCrosspointTally, MsgCrosspointConnected:
		if t, err := ParseTally(f); err == nil {
			return fmt.Sprintf("  Matrix %d Level %d: dest %d <- src %d (status=%v)\n",
				t.Matrix, t.Level, t.Destination, t.Source, t.SourceStatus)
		}

	case MsgCrosspointConnect:
		if len(f.Data()) >= 4 {
			destHigh, srcHigh, _ := unpackMultiplier(f.Data()[1])
			return fmt.Sprintf("  Matrix %d Level %d: connect dest %d <- src %d\n",
				f.Data()[0]>>4, f.Data()[0]&0x0F,
				destHigh<<7|int(f.Data()[2]&0x7F),
				srcHigh<<7|int(f.Data()[3]&0x7F))
		}

	case MsgCrosspointInterrogate:
		if len(f.Data()) >= 3 {
			destHigh, _, _ := unpackMultiplier(f.Data()[1])
			return fmt.Sprintf("  Matrix %d Level %d: interrogate dest %d\n",
				f.Data()[0]>>4, f.Data()[0]&0x0F,
				destHigh<<7|int(f.Data()[2]&0x7F))
		}

	case MsgTallyDumpRequest:
		if len(f.Data()) >= 1 {
			return fmt.Sprintf("  Matrix %d Level %d: dump request\n",
				f.Data()[0]>>4, f.Data()[0]&0x0F)
		}

	case MsgTallyDumpByte, MsgTallyDumpWord:
		if tallies, err := ParseTallyDump(f); err == nil {
			result := ""
			for _, t := range tallies {
				result += fmt.Sprintf("  Matrix %d Level %d: dest %d <- src %d\n",
					t.Matrix, t.Level, t.Destination, t.Source)
			}
			return result
		}

	case MsgConnectOnGoAck, MsgGoDoneAck:
		if id, err := ParseSalvoAck(f); err == nil {
			return fmt.Sprintf("  Salvo %d\n", id)
		}

	case MsgGroupSalvoTally:
		if id, tallies, err := ParseGroupSalvoTally(f); err == nil {
			result := fmt.Sprintf("  Salvo %d (%d crosspoints)\n", id, len(tallies))
			for _, t := range tallies {
				result += fmt.Sprintf("    Matrix %d Level %d: dest %d <- src %d\n",
					t.Matrix, t.Level, t.Destination, t.Source)
			}
			return result
		}
	}

	if len(f.Data()) == 0 {
		return "  (no data)\n"
	}

	// Default: hex dump
	result := "  Data: "
	for i, b := range f.Data() {
		if i > 0 && i%16 == 0 {
			result += "\n        "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
