// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

// Package link runs the SW-P-08 ARQ over a transport: link-level
// ACK/NAK handshaking, single-outstanding-command discipline with a
// FIFO queue behind it, and bounded retransmission.
package link

import (
	"errors"
	"log"
	"time"

	"github.com/broadcastkit/swp08d/internal/transport"
	"github.com/broadcastkit/swp08d/pkg/swp08"
)

var (
	// ErrTimeout means a command exhausted its retransmissions
	ErrTimeout = errors.New("link: command timed out after max retries")
	// ErrDisconnected means the transport dropped with the command pending
	ErrDisconnected = errors.New("link: transport disconnected")
)

// Retransmission budget. A command is sent at most MaxAttempts times,
// one ack timeout apart, before failing permanently.
const (
	DefaultAckTimeout = 1000 * time.Millisecond
	MaxAttempts       = 5
)

type command struct {
	frame []byte
	done  chan error
}

// Link owns one open transport connection: it decodes the incoming
// byte stream, acknowledges received frames on the wire, delivers them
// upward, and serialises outgoing commands through the one-in-flight
// ARQ. All transport writes happen on the Run goroutine.
type Link struct {
	tr         transport.Transport
	stats      *swp08.Statistics
	logger     *log.Logger
	ackTimeout time.Duration

	frames chan *swp08.Frame
	submit chan *command
	closed chan struct{}
}

// New creates a link over an opened transport. The statistics tracker
// may be shared with other subsystems; logger must not be nil.
func New(tr transport.Transport, stats *swp08.Statistics, logger *log.Logger) *Link {
	return &Link{
		tr:         tr,
		stats:      stats,
		logger:     logger,
		ackTimeout: DefaultAckTimeout,
		frames:     make(chan *swp08.Frame, 64),
		// Unbuffered: a submission is only accepted by the live run
		// loop, so nothing can be stranded in the channel at shutdown.
		submit: make(chan *command),
		closed: make(chan struct{}),
	}
}

// SetAckTimeout overrides the ack timer. Call before Run.
func (l *Link) SetAckTimeout(d time.Duration) {
	l.ackTimeout = d
}

// Frames returns the upward delivery channel. It closes when the
// transport disconnects.
func (l *Link) Frames() <-chan *swp08.Frame {
	return l.frames
}

// Send queues an encoded frame for transmission and returns a channel
// that resolves with nil once the router acknowledges it, or with
// ErrTimeout / ErrDisconnected on permanent failure.
func (l *Link) Send(frame []byte) <-chan error {
	done := make(chan error, 1)
	select {
	case l.submit <- &command{frame: frame, done: done}:
	case <-l.closed:
		done <- ErrDisconnected
	}
	return done
}

// Run drives the link until the transport receive channel closes.
// It owns the decoder, the pending-command queue and all writes.
func (l *Link) Run() {
	defer close(l.closed)
	defer close(l.frames)

	dec := swp08.NewDecoder()

	var (
		queue    []*command
		inflight *command
		attempts int
	)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	stopTimer := func() {
		if timerArmed && !timer.Stop() {
			<-timer.C
		}
		timerArmed = false
	}

	transmit := func(retransmit bool) {
		if err := l.tr.Write(inflight.frame); err != nil {
			l.logger.Printf("write failed: %v", err)
		}
		attempts++
		l.stats.CountSend(retransmit)
		stopTimer()
		timer.Reset(l.ackTimeout)
		timerArmed = true
	}

	startNext := func() {
		inflight = nil
		attempts = 0
		stopTimer()
		if len(queue) > 0 {
			inflight = queue[0]
			queue = queue[1:]
			transmit(false)
		}
	}

	failInflight := func(err error) {
		l.stats.CountFailure()
		inflight.done <- err
		startNext()
	}

	drain := func() {
		if inflight != nil {
			inflight.done <- ErrDisconnected
			inflight = nil
		}
		for _, cmd := range queue {
			cmd.done <- ErrDisconnected
		}
		queue = nil
		for {
			select {
			case cmd := <-l.submit:
				cmd.done <- ErrDisconnected
			default:
				return
			}
		}
	}

	handle := func(ev *swp08.Event) {
		switch ev.Kind {
		case swp08.EventFrame:
			// Acknowledge on the wire before any further processing.
			if err := l.tr.Write(swp08.AckBytes); err != nil {
				l.logger.Printf("ack write failed: %v", err)
			}
			l.stats.CountFrame()
			l.frames <- ev.Frame

		case swp08.EventAck:
			l.stats.CountAck()
			if inflight != nil {
				inflight.done <- nil
				startNext()
			}

		case swp08.EventNak:
			l.stats.CountNak()
			if inflight == nil {
				return
			}
			if attempts >= MaxAttempts {
				failInflight(ErrTimeout)
			} else {
				transmit(true)
			}
		}
	}

	chunks := l.tr.Chunks()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				drain()
				return
			}
			for _, b := range chunk {
				ev, err := dec.DecodeByte(b)
				if err != nil {
					l.stats.CountFramingError()
					l.logger.Printf("framing error: %v", err)
				}
				if ev != nil {
					handle(ev)
				}
			}
			if n := dec.Discarded(); n > 0 {
				l.stats.CountDiscarded(n)
				l.logger.Printf("discarded %d bytes outside frames", n)
			}

		case cmd := <-l.submit:
			queue = append(queue, cmd)
			if inflight == nil {
				startNext()
			}

		case <-timer.C:
			timerArmed = false
			if inflight == nil {
				continue
			}
			if attempts >= MaxAttempts {
				failInflight(ErrTimeout)
			} else {
				transmit(true)
			}
		}
	}
}
