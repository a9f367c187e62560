// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The swp08d authors

package swp08

import (
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of the link statistics
type Counters struct {
	StartTime time.Time

	FramesDecoded   uint64
	AcksReceived    uint64
	NaksReceived    uint64
	FramingErrors   uint64
	BytesDiscarded  uint64
	CommandsSent    uint64
	Retransmissions uint64
	CommandsFailed  uint64
}

// Statistics tracks frame and link error counters. Safe for use from
// the link goroutine and concurrent status readers.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

// CountFrame records one successfully decoded data frame
func (s *Statistics) CountFrame() {
	s.mu.Lock()
	s.c.FramesDecoded++
	s.mu.Unlock()
}

// CountAck records one received link-level ACK
func (s *Statistics) CountAck() {
	s.mu.Lock()
	s.c.AcksReceived++
	s.mu.Unlock()
}

// CountNak records one received link-level NAK
func (s *Statistics) CountNak() {
	s.mu.Lock()
	s.c.NaksReceived++
	s.mu.Unlock()
}

// CountFramingError records one decoder error
func (s *Statistics) CountFramingError() {
	s.mu.Lock()
	s.c.FramingErrors++
	s.mu.Unlock()
}

// CountDiscarded records bytes dropped outside frames
func (s *Statistics) CountDiscarded(n int) {
	s.mu.Lock()
	s.c.BytesDiscarded += uint64(n)
	s.mu.Unlock()
}

// CountSend records one command transmission; retransmissions are
// counted separately from first sends.
func (s *Statistics) CountSend(retransmit bool) {
	s.mu.Lock()
	if retransmit {
		s.c.Retransmissions++
	} else {
		s.c.CommandsSent++
	}
	s.mu.Unlock()
}

// CountFailure records one command that exhausted its retries
func (s *Statistics) CountFailure() {
	s.mu.Lock()
	s.c.CommandsFailed++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters for reporting
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()
	elapsed := time.Since(snap.StartTime)

	var rate float64
	if elapsed.Seconds() > 0 {
		rate = float64(snap.FramesDecoded) / elapsed.Seconds()
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Decoded:  %8d (%.1f/sec)\n", snap.FramesDecoded, rate)
	result += fmt.Sprintf("ACKs Received:   %8d\n", snap.AcksReceived)
	if snap.NaksReceived > 0 {
		result += fmt.Sprintf("NAKs Received:   %8d\n", snap.NaksReceived)
	}
	if snap.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d\n", snap.FramingErrors)
	}
	if snap.BytesDiscarded > 0 {
		result += fmt.Sprintf("Bytes Discarded: %8d\n", snap.BytesDiscarded)
	}
	result += fmt.Sprintf("Commands Sent:   %8d\n", snap.CommandsSent)
	if snap.Retransmissions > 0 {
		result += fmt.Sprintf("Retransmissions: %8d\n", snap.Retransmissions)
	}
	if snap.CommandsFailed > 0 {
		result += fmt.Sprintf("Commands Failed: %8d\n", snap.CommandsFailed)
	}
	result += "================================\n"
	return result
}
