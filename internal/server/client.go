// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Outbound queue per client; a consumer further behind than this
	// is dropped rather than allowed to stall the hub.
	sendQueueSize = 64
)

// client is one WebSocket connection on the fan-out hub
type client struct {
	srv        *Server
	conn       *websocket.Conn
	subscribed bool // owned by the hub mutex

	// mu guards send against closeSend: async reply paths (interrogate
	// results, take failures, salvo completions) can outlive the
	// connection, and a send on a closed channel panics.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue hands a marshalled message to the write pump. Reports false
// when the client's queue is full; the caller drops the client.
// Enqueueing to an already-dropped client is a no-op.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the write pump down exactly once. Safe to call from
// any goroutine; later enqueues become no-ops.
func (c *client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// reply marshals and queues a response to this client, echoing the
// request's reply token.
func (c *client) reply(id, event string, payload interface{}) {
	data, err := marshalMessage(id, event, payload)
	if err != nil {
		c.srv.logger.Printf("marshal %s: %v", event, err)
		return
	}
	if !c.enqueue(data) {
		c.srv.dropClient(c)
	}
}

func (c *client) replyError(id string, err error) {
	c.reply(id, evError, errorPayload{Message: err.Error()})
}

func marshalMessage(id, event string, payload interface{}) ([]byte, error) {
	msg := struct {
		Event   string      `json:"event"`
		ID      string      `json:"id,omitempty"`
		Payload interface{} `json:"payload,omitempty"`
	}{Event: event, ID: id, Payload: payload}
	return json.Marshal(msg)
}

// readPump pulls client commands off the socket until it closes
func (c *client) readPump() {
	defer c.srv.dropClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.logger.Printf("client read: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.srv.logger.Printf("client sent bad JSON: %v", err)
			continue
		}
		c.srv.handleMessage(c, &msg)
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
