// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

// Package router is the SW-P-08 session layer: it interprets frames
// delivered by the link, maintains the crosspoint cache, and exposes
// the typed command surface (take, interrogate, tally dump, group
// salvos) plus an event stream for subscribers.
package router

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/broadcastkit/swp08d/internal/link"
	"github.com/broadcastkit/swp08d/pkg/swp08"
)

// ErrInterrogateTimeout means no matching tally arrived in time
var ErrInterrogateTimeout = errors.New("router: interrogate timed out waiting for tally")

// ValidationError rejects an out-of-range address before any wire
// traffic
type ValidationError struct {
	Field string
	Value int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %d out of range 0-%d", e.Field, e.Value, e.Max)
}

// Config bounds the address space and tunes the session timers
type Config struct {
	MaxSources      int
	MaxDestinations int
	MaxLevels       int

	// InterrogateTimeout defaults to 2 × ack timeout × (MaxAttempts + 1),
	// 12 s with the link defaults
	InterrogateTimeout time.Duration
	// DumpInterval paces reconciliation dump requests so slow serial
	// links are not flooded
	DumpInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSources == 0 {
		c.MaxSources = 1024
	}
	if c.MaxDestinations == 0 {
		c.MaxDestinations = 1024
	}
	if c.MaxLevels == 0 {
		c.MaxLevels = 16
	}
	if c.InterrogateTimeout == 0 {
		c.InterrogateTimeout = 2 * link.DefaultAckTimeout * (link.MaxAttempts + 1)
	}
	if c.DumpInterval == 0 {
		c.DumpInterval = 100 * time.Millisecond
	}
	return c
}

// StatusInfo is the get-status snapshot served to clients
type StatusInfo struct {
	Connected       bool      `json:"connected"`
	ConnectionType  string    `json:"connectionType"`
	CrosspointCount int       `json:"crosspointCount"`
	LastUpdate      time.Time `json:"lastUpdate"`
}

type waiter struct {
	key Key
	ch  chan Crosspoint
}

// Router owns the crosspoint cache and the current link, if any. The
// cache lives for the process; links come and go with the transport.
type Router struct {
	cfg    Config
	cache  *Cache
	logger *log.Logger
	bc     *broadcaster

	mu       sync.Mutex
	lk       *link.Link
	connType string
	waiters  []*waiter
}

// New creates a router session with an empty cache
func New(cfg Config, logger *log.Logger) *Router {
	return &Router{
		cfg:    cfg.withDefaults(),
		cache:  NewCache(),
		logger: logger,
		bc:     newBroadcaster(logger),
	}
}

// Cache returns the crosspoint cache for direct reads
func (r *Router) Cache() *Cache {
	return r.cache
}

// Subscribe adds an event stream subscriber. Events arrive in the
// order tallies were parsed.
func (r *Router) Subscribe() chan Event {
	return r.bc.subscribe()
}

// Unsubscribe removes a subscriber and closes its channel
func (r *Router) Unsubscribe(ch chan Event) {
	r.bc.unsubscribe(ch)
}

// Attach binds an established link to the session, starts consuming
// its frames, and kicks off tally reconciliation.
func (r *Router) Attach(lk *link.Link, connType string) {
	r.mu.Lock()
	r.lk = lk
	r.connType = connType
	r.mu.Unlock()

	r.bc.publish(Connected{Transport: connType})
	go r.consume(lk)
	go r.reconcile()
}

// Detach clears the link after its Run loop has returned and fails
// any interrogates still waiting.
func (r *Router) Detach(cause error) {
	r.mu.Lock()
	if r.lk == nil {
		r.mu.Unlock()
		return
	}
	r.lk = nil
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}
	r.bc.publish(Disconnected{Err: cause})
}

func (r *Router) currentLink() *link.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lk
}

// Connected reports whether a link is attached
func (r *Router) Connected() bool {
	return r.currentLink() != nil
}

// Status returns the get-status snapshot
func (r *Router) Status() StatusInfo {
	r.mu.Lock()
	connected := r.lk != nil
	connType := r.connType
	r.mu.Unlock()

	return StatusInfo{
		Connected:       connected,
		ConnectionType:  connType,
		CrosspointCount: r.cache.Size(),
		LastUpdate:      r.cache.LastUpdate(),
	}
}

func (r *Router) validate(matrix, level, dest, src int) error {
	if matrix < 0 || matrix > swp08.MaxMatrix {
		return &ValidationError{Field: "matrix", Value: matrix, Max: swp08.MaxMatrix}
	}
	if level < 0 || level >= r.cfg.MaxLevels {
		return &ValidationError{Field: "level", Value: level, Max: r.cfg.MaxLevels - 1}
	}
	if dest < 0 || dest >= r.cfg.MaxDestinations {
		return &ValidationError{Field: "destination", Value: dest, Max: r.cfg.MaxDestinations - 1}
	}
	if src < 0 || src >= r.cfg.MaxSources {
		return &ValidationError{Field: "source", Value: src, Max: r.cfg.MaxSources - 1}
	}
	return nil
}

// send hands an encoded frame to the current link and returns a
// channel reporting permanent failure, which is also published as a
// Fault event.
func (r *Router) send(frame []byte) (<-chan error, error) {
	lk := r.currentLink()
	if lk == nil {
		return nil, link.ErrDisconnected
	}

	done := lk.Send(frame)
	out := make(chan error, 1)
	go func() {
		err := <-done
		if err != nil {
			r.logger.Printf("command failed: %v", err)
			r.bc.publish(Fault{Err: err})
		}
		out <- err
	}()
	return out, nil
}

// Take routes source to destination on one level. The cache entry goes
// pending and a change event is emitted before the Connect command is
// queued; the router's tally flips it to connected. The returned
// channel resolves when the link delivers or permanently fails the
// command.
func (r *Router) Take(matrix, level, dest, src int) (<-chan error, error) {
	if err := r.validate(matrix, level, dest, src); err != nil {
		return nil, err
	}
	frame, err := swp08.EncodeConnect(matrix, level, dest, src)
	if err != nil {
		return nil, err
	}

	cp := r.cache.Upsert(Crosspoint{
		Matrix:      matrix,
		Level:       level,
		Destination: dest,
		Source:      src,
		Status:      StatusPending.String(),
	})
	r.bc.publish(CrosspointChange{Crosspoint: cp})

	return r.send(frame)
}

// TakeMulti routes the same source to the same destination on several
// levels. One Connect per level; the wire does not make them atomic.
func (r *Router) TakeMulti(matrix int, levels []int, dest, src int) (<-chan error, error) {
	for _, level := range levels {
		if err := r.validate(matrix, level, dest, src); err != nil {
			return nil, err
		}
	}

	dones := make([]<-chan error, 0, len(levels))
	for _, level := range levels {
		done, err := r.Take(matrix, level, dest, src)
		if err != nil {
			return nil, err
		}
		dones = append(dones, done)
	}

	out := make(chan error, 1)
	go func() {
		var first error
		for _, done := range dones {
			if err := <-done; err != nil && first == nil {
				first = err
			}
		}
		out <- first
	}()
	return out, nil
}

// Interrogate asks the router which source feeds a destination and
// waits for the matching tally.
func (r *Router) Interrogate(matrix, level, dest int) (Crosspoint, error) {
	if err := r.validate(matrix, level, dest, 0); err != nil {
		return Crosspoint{}, err
	}
	frame, err := swp08.EncodeInterrogate(matrix, level, dest)
	if err != nil {
		return Crosspoint{}, err
	}

	w := &waiter{
		key: Key{Matrix: matrix, Level: level, Destination: dest},
		ch:  make(chan Crosspoint, 1),
	}
	r.mu.Lock()
	if r.lk == nil {
		r.mu.Unlock()
		return Crosspoint{}, link.ErrDisconnected
	}
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()

	done, err := r.send(frame)
	if err != nil {
		r.removeWaiter(w)
		return Crosspoint{}, err
	}

	timer := time.NewTimer(r.cfg.InterrogateTimeout)
	defer timer.Stop()

	for {
		select {
		case cp, ok := <-w.ch:
			if !ok {
				return Crosspoint{}, link.ErrDisconnected
			}
			return cp, nil
		case err := <-done:
			if err != nil {
				r.removeWaiter(w)
				return Crosspoint{}, err
			}
			done = nil // delivered; keep waiting for the tally
		case <-timer.C:
			r.removeWaiter(w)
			return Crosspoint{}, ErrInterrogateTimeout
		}
	}
}

func (r *Router) removeWaiter(w *waiter) {
	r.mu.Lock()
	for i, other := range r.waiters {
		if other == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
}

// RequestTallyDump asks the router to report every crosspoint of one
// (matrix, level); the dump arrives asynchronously as tallies.
func (r *Router) RequestTallyDump(matrix, level int) (<-chan error, error) {
	if err := r.validate(matrix, level, 0, 0); err != nil {
		return nil, err
	}
	frame, err := swp08.EncodeTallyDumpRequest(matrix, level)
	if err != nil {
		return nil, err
	}
	return r.send(frame)
}

// ArmGroupSalvo sends a Connect on Go Group Salvo; the crosspoints arm
// on the router and fire on FireGroupSalvo.
func (r *Router) ArmGroupSalvo(id, matrix int, entries []swp08.SalvoEntry) (<-chan error, error) {
	for _, e := range entries {
		if err := r.validate(matrix, e.Level, e.Destination, e.Source); err != nil {
			return nil, err
		}
	}
	frame, err := swp08.EncodeConnectOnGoGroupSalvo(id, matrix, entries)
	if err != nil {
		return nil, err
	}
	return r.send(frame)
}

// FireGroupSalvo fires a previously armed group salvo
func (r *Router) FireGroupSalvo(id int) (<-chan error, error) {
	frame, err := swp08.EncodeGoGroupSalvo(id)
	if err != nil {
		return nil, err
	}
	return r.send(frame)
}

// InterrogateGroupSalvo asks for a Group Salvo Tally
func (r *Router) InterrogateGroupSalvo(id int) (<-chan error, error) {
	frame, err := swp08.EncodeGroupSalvoInterrogate(id)
	if err != nil {
		return nil, err
	}
	return r.send(frame)
}

// reconcile rebuilds the cache after a connect: one tally dump request
// per level on matrix 0, paced so slow serial links keep up. Best
// effort; gaps are filled by later tallies or explicit interrogates.
func (r *Router) reconcile() {
	for level := 0; level < r.cfg.MaxLevels; level++ {
		if _, err := r.RequestTallyDump(0, level); err != nil {
			r.logger.Printf("reconciliation stopped at level %d: %v", level, err)
			return
		}
		time.Sleep(r.cfg.DumpInterval)
	}
}

func (r *Router) consume(lk *link.Link) {
	for f := range lk.Frames() {
		r.handleFrame(f)
	}
}

func (r *Router) handleFrame(f *swp08.Frame) {
	switch f.Cmd() {
	case swp08.MsgCrosspointTally, swp08.MsgCrosspointConnected:
		t, err := swp08.ParseTally(f)
		if err != nil {
			r.logger.Printf("bad tally frame: %v", err)
			return
		}
		r.applyTally(t)

	case swp08.MsgTallyDumpByte, swp08.MsgTallyDumpWord:
		tallies, err := swp08.ParseTallyDump(f)
		if err != nil {
			r.logger.Printf("bad tally dump frame: %v", err)
			return
		}
		for _, t := range tallies {
			r.applyTally(t)
		}

	case swp08.MsgConnectOnGoAck:
		if id, err := swp08.ParseSalvoAck(f); err == nil {
			r.bc.publish(SalvoAck{ID: id, Fired: false})
		}

	case swp08.MsgGoDoneAck:
		if id, err := swp08.ParseSalvoAck(f); err == nil {
			r.bc.publish(SalvoAck{ID: id, Fired: true})
		}

	case swp08.MsgGroupSalvoTally:
		id, tallies, err := swp08.ParseGroupSalvoTally(f)
		if err != nil {
			r.logger.Printf("bad group salvo tally: %v", err)
			return
		}
		r.logger.Printf("group salvo %d holds %d armed crosspoints", id, len(tallies))

	default:
		r.logger.Printf("unhandled frame %s (0x%02X)", swp08.CommandName(f.Cmd()), f.Cmd())
	}
}

// applyTally records an authoritative report from the router. It
// overrides any optimistic pending state for the key.
func (r *Router) applyTally(t swp08.Tally) {
	cp := r.cache.Upsert(Crosspoint{
		Matrix:       t.Matrix,
		Level:        t.Level,
		Destination:  t.Destination,
		Source:       t.Source,
		Status:       StatusConnected.String(),
		SourceStatus: t.SourceStatus,
	})
	r.bc.publish(CrosspointChange{Crosspoint: cp})
	r.resolveWaiters(cp)
}

func (r *Router) resolveWaiters(cp Crosspoint) {
	key := cp.Key()
	r.mu.Lock()
	remaining := r.waiters[:0]
	var resolved []*waiter
	for _, w := range r.waiters {
		if w.key == key {
			resolved = append(resolved, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	r.waiters = remaining
	r.mu.Unlock()

	for _, w := range resolved {
		w.ch <- cp
	}
}
