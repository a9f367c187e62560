// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

// Package server fans the router session out to many local WebSocket
// clients: commands multiplex onto the single link, tallies and state
// changes broadcast back to every subscribed client.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/broadcastkit/swp08d/internal/router"
	"github.com/broadcastkit/swp08d/internal/store"
)

// Config tunes the fan-out hub
type Config struct {
	Listen         string
	AllowedOrigin  string
	StatusInterval time.Duration
}

// Server is the client fan-out hub
type Server struct {
	cfg      Config
	router   *router.Router
	store    *store.Store
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates the hub over a router session and a label/salvo store
func New(cfg Config, r *router.Router, st *store.Store, logger *log.Logger) *Server {
	if cfg.StatusInterval == 0 {
		cfg.StatusInterval = 5 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		router:  r,
		store:   st,
		logger:  logger,
		clients: make(map[*client]struct{}),
		stop:    make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// The fan-out is trusted-LAN; the origin check only keeps random
// browser pages from driving the router.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.cfg.AllowedOrigin == "*" {
		return true
	}
	return origin == s.cfg.AllowedOrigin
}

// Handler returns the HTTP handler hosting the /ws endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	return mux
}

// Start launches the broadcast loop. Call once before serving.
func (s *Server) Start() {
	go s.eventLoop()
}

// Stop shuts the broadcast loop down and drops every client
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	dropped := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		delete(s.clients, c)
		dropped = append(dropped, c)
	}
	s.mu.Unlock()

	for _, c := range dropped {
		c.closeSend()
	}
}

// ListenAndServe runs the hub on the configured listen address
func (s *Server) ListenAndServe() error {
	s.Start()
	s.logger.Printf("client fan-out listening on %s", s.cfg.Listen)
	return http.ListenAndServe(s.cfg.Listen, s.Handler())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		return
	}

	c := &client{
		srv:  s,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Printf("client connected (%d active)", count)

	go c.writePump()
	go c.readPump()
}

func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	if present {
		delete(s.clients, c)
	}
	count := len(s.clients)
	s.mu.Unlock()

	if present {
		c.closeSend()
		s.logger.Printf("client disconnected (%d active)", count)
	}
}

// broadcast sends an event to every subscribed client. Marshalled
// once; clients that cannot keep up are dropped.
func (s *Server) broadcast(event string, payload interface{}) {
	data, err := marshalMessage("", event, payload)
	if err != nil {
		s.logger.Printf("marshal %s: %v", event, err)
		return
	}

	s.mu.Lock()
	var stalled []*client
	for c := range s.clients {
		if !c.subscribed {
			continue
		}
		if !c.enqueue(data) {
			stalled = append(stalled, c)
		}
	}
	s.mu.Unlock()

	for _, c := range stalled {
		s.logger.Printf("dropping stalled subscriber")
		s.dropClient(c)
	}
}

// eventLoop relays router events and the periodic status update to
// subscribers, preserving the order tallies were parsed in.
func (s *Server) eventLoop() {
	events := s.router.Subscribe()
	defer s.router.Unsubscribe(events)

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			s.relay(ev)

		case <-ticker.C:
			s.broadcast(evStatusUpdate, s.router.Status())
		}
	}
}

func (s *Server) relay(ev router.Event) {
	switch ev := ev.(type) {
	case router.CrosspointChange:
		s.broadcast(evCrosspointChange, ev.Crosspoint)
	case router.Connected:
		s.broadcast(evRouterConnected, transportPayload{Transport: ev.Transport})
	case router.Disconnected:
		s.broadcast(evRouterDisconnected, errorPayload{Message: errText(ev.Err)})
	case router.Fault:
		s.broadcast(evRouterError, errorPayload{Message: errText(ev.Err)})
	case router.SalvoAck:
		s.broadcast(evSalvoAck, ev)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload")
	}
	return json.Unmarshal(raw, v)
}

// handleMessage dispatches one client command. Unknown events are
// ignored without disconnecting the client.
func (s *Server) handleMessage(c *client, msg *Message) {
	switch msg.Event {
	case evTakeCrosspoint:
		var p takePayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		done, err := s.router.Take(p.Matrix, p.Level, p.Destination, p.Source)
		if err != nil {
			c.replyError(msg.ID, err)
			return
		}
		s.watchCommand(c, done)
		if msg.ID != "" {
			c.reply(msg.ID, evAccepted, nil)
		}

	case evTakeMultiLevel:
		var p takeMultiPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		done, err := s.router.TakeMulti(p.Matrix, p.Levels, p.Destination, p.Source)
		if err != nil {
			c.replyError(msg.ID, err)
			return
		}
		s.watchCommand(c, done)
		if msg.ID != "" {
			c.reply(msg.ID, evAccepted, nil)
		}

	case evQueryCrosspoint:
		var p queryPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		// Interrogate blocks until the tally arrives; keep the read
		// pump free.
		go func() {
			cp, err := s.router.Interrogate(p.Matrix, p.Level, p.Destination)
			if err != nil {
				c.replyError(msg.ID, err)
				return
			}
			c.reply(msg.ID, evCrosspoint, cp)
		}()

	case evSetLabel:
		var p labelPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		label, err := s.store.SetLabel(p.Type, p.Matrix, p.Level, p.Index, p.Text)
		if err != nil {
			c.replyError(msg.ID, err)
			return
		}
		if msg.ID != "" {
			c.reply(msg.ID, evLabel, label)
		}
		s.broadcast(evLabelChange, label)

	case evGetLabel:
		var p labelPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		text, ok := s.store.GetLabel(p.Type, p.Matrix, p.Level, p.Index)
		if !ok {
			c.replyError(msg.ID, fmt.Errorf("no label for %s %d/%d/%d", p.Type, p.Matrix, p.Level, p.Index))
			return
		}
		p.Text = text
		c.reply(msg.ID, evLabel, p)

	case evGetAllLabels:
		c.reply(msg.ID, evLabels, s.store.AllLabels())

	case evCreateSalvo:
		var p salvoPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		salvo := store.Salvo{ID: p.ID, Name: p.Name, Entries: p.Entries}
		if err := s.store.SaveSalvo(salvo); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		if msg.ID != "" {
			c.reply(msg.ID, evSalvo, salvo)
		}
		s.broadcast(evSalvoChange, salvo)

	case evExecuteSalvo:
		var p salvoRefPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		salvo, ok := s.store.GetSalvo(p.ID)
		if !ok {
			c.replyError(msg.ID, fmt.Errorf("salvo %d not found", p.ID))
			return
		}
		go s.executeSalvo(c, msg.ID, salvo)

	case evGetAllSalvos:
		c.reply(msg.ID, evSalvos, s.store.AllSalvos())

	case evGetStatus:
		c.reply(msg.ID, evStatus, s.router.Status())

	case evGetAllCrosspoints:
		c.reply(msg.ID, evCrosspointUpdate, s.router.Cache().All())

	case evGetCrosspointsByLvl:
		var p byLevelPayload
		if err := decode(msg.Payload, &p); err != nil {
			c.replyError(msg.ID, err)
			return
		}
		c.reply(msg.ID, evCrosspointUpdate, s.router.Cache().ByLevel(p.Matrix, p.Level))

	case evSubscribe:
		s.mu.Lock()
		c.subscribed = true
		s.mu.Unlock()
		c.reply(msg.ID, evSubscribed, nil)

	case evUnsubscribe:
		s.mu.Lock()
		c.subscribed = false
		s.mu.Unlock()
		c.reply(msg.ID, evUnsubscribed, nil)

	default:
		s.logger.Printf("ignoring unknown event %q", msg.Event)
	}
}

// watchCommand surfaces a take's permanent failure to the client that
// submitted it.
func (s *Server) watchCommand(c *client, done <-chan error) {
	go func() {
		if err := <-done; err != nil {
			c.reply("", evRouterError, errorPayload{Message: err.Error()})
		}
	}()
}

// executeSalvo fans the stored crosspoints out as concurrent takes and
// answers once every take has been enqueued. Tallies follow as normal
// crosspoint-change broadcasts.
func (s *Server) executeSalvo(c *client, id string, salvo store.Salvo) {
	var wg sync.WaitGroup
	for _, entry := range salvo.Entries {
		wg.Add(1)
		go func(e store.SalvoEntry) {
			defer wg.Done()
			done, err := s.router.Take(0, e.Level, e.Destination, e.Source)
			if err != nil {
				c.reply("", evRouterError, errorPayload{Message: err.Error()})
				return
			}
			s.watchCommand(c, done)
		}(entry)
	}
	wg.Wait()
	c.reply(id, evSalvoExecuted, salvoRefPayload{ID: salvo.ID})
}
