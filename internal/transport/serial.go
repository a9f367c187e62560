// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package transport

import (
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// Serial connects to a router over RS-232/RS-422. SW-P-08 mandates
// 8 data bits, even parity, one stop bit; only the baud rate varies.
type Serial struct {
	path string
	baud int

	mu     sync.Mutex
	port   serial.Port
	chunks chan []byte
	err    error
	closed bool
}

// NewSerial creates a serial transport for the given tty path
func NewSerial(path string, baud int) *Serial {
	return &Serial{path: path, baud: baud}
}

// Open opens the port with the SW-P-08 line discipline and starts the
// read pump
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return fmt.Errorf("transport already open")
	}

	mode := &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.path, mode)
	if err != nil {
		return &Error{Kind: classifyPortError(err), Op: "open " + s.path, Err: err}
	}

	s.port = port
	s.closed = false
	s.err = nil
	s.chunks = make(chan []byte, 32)
	go s.readLoop(port, s.chunks)
	return nil
}

func (s *Serial) readLoop(port serial.Port, chunks chan []byte) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks <- chunk
		}
		if err != nil {
			s.mu.Lock()
			if s.port == port {
				if s.closed {
					s.err = ErrClosed
				} else {
					s.err = &Error{Kind: KindIO, Op: "read", Err: err}
				}
				s.port = nil
			}
			s.mu.Unlock()
			close(chunks)
			return
		}
	}
}

// Write sends bytes to the router
func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if port == nil {
		return ErrClosed
	}
	if _, err := port.Write(p); err != nil {
		return &Error{Kind: KindIO, Op: "write", Err: err}
	}
	return nil
}

// Chunks returns the receive channel for the current connection
func (s *Serial) Chunks() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Err reports why the receive channel closed
func (s *Serial) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close shuts the port down. Idempotent.
func (s *Serial) Close() error {
	s.mu.Lock()
	port := s.port
	s.closed = true
	s.mu.Unlock()

	if port != nil {
		return port.Close()
	}
	return nil
}

// Describe returns a human-readable endpoint description
func (s *Serial) Describe() string {
	return fmt.Sprintf("serial %s @ %d baud 8E1", s.path, s.baud)
}

func classifyPortError(err error) ErrorKind {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return KindNotFound
		case serial.PermissionDenied:
			return KindPermission
		case serial.PortBusy:
			return KindUnreachable
		}
	}
	return KindUnreachable
}
