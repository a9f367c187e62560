// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package transport

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestTCP_OpenWriteRead(t *testing.T) {
	ln, port := listen(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr := NewTCP("127.0.0.1", port)
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()

	server := <-accepted
	defer server.Close()

	// Router -> us
	if _, err := server.Write([]byte{0x10, 0x06}); err != nil {
		t.Fatalf("server write: %v", err)
	}
	select {
	case chunk := <-tr.Chunks():
		if !bytes.Equal(chunk, []byte{0x10, 0x06}) {
			t.Errorf("chunk = % X", chunk)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no chunk received")
	}

	// Us -> router
	if err := tr.Write([]byte{0x10, 0x02, 0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{0x10, 0x02, 0x01}) {
		t.Errorf("server got % X", buf[:n])
	}
}

func TestTCP_RemoteCloseEndsChunks(t *testing.T) {
	ln, port := listen(t)

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	tr := NewTCP("127.0.0.1", port)
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()

	select {
	case _, ok := <-tr.Chunks():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chunks channel never closed")
	}

	var terr *Error
	if !errors.As(tr.Err(), &terr) || terr.Kind != KindIO {
		t.Errorf("err = %v, want io-kind transport error", tr.Err())
	}
}

func TestTCP_LocalCloseReportsClosed(t *testing.T) {
	ln, port := listen(t)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			defer conn.Close()
			buf := make([]byte, 1)
			conn.Read(buf)
		}
	}()

	tr := NewTCP("127.0.0.1", port)
	if err := tr.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Idempotent
	if err := tr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	select {
	case _, ok := <-tr.Chunks():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chunks channel never closed")
	}

	if !errors.Is(tr.Err(), ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", tr.Err())
	}
}

func TestTCP_OpenRefused(t *testing.T) {
	ln, port := listen(t)
	ln.Close() // free the port so the dial is refused

	tr := NewTCP("127.0.0.1", port)
	err := tr.Open()
	if err == nil {
		tr.Close()
		t.Fatal("expected open error")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindUnreachable {
		t.Errorf("err = %v, want unreachable", err)
	}
}

func TestTCP_Reopen(t *testing.T) {
	ln, port := listen(t)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	tr := NewTCP("127.0.0.1", port)
	for i := 0; i < 2; i++ {
		if err := tr.Open(); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		for range tr.Chunks() {
		}
		if err := tr.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}

func TestSerial_OpenNotFound(t *testing.T) {
	tr := NewSerial("/dev/nonexistent-swp08-port", 38400)
	err := tr.Open()
	if err == nil {
		tr.Close()
		t.Fatal("expected open error")
	}
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if terr.Kind != KindNotFound && terr.Kind != KindUnreachable {
		t.Errorf("kind = %v", terr.Kind)
	}
}

func TestErrorKindString(t *testing.T) {
	kinds := map[ErrorKind]string{
		KindUnreachable: "unreachable",
		KindPermission:  "permission",
		KindNotFound:    "not-found",
		KindIO:          "io",
	}
	for kind, want := range kinds {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
