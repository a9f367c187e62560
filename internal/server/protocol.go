// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package server

import (
	"encoding/json"

	"github.com/broadcastkit/swp08d/internal/store"
)

// Message is the envelope for everything crossing the client channel.
// Queries carry a reply token in ID which the response echoes;
// broadcasts carry neither.
type Message struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client command event names
const (
	evTakeCrosspoint      = "take-crosspoint"
	evTakeMultiLevel      = "take-multi-level"
	evQueryCrosspoint     = "query-crosspoint"
	evSetLabel            = "set-label"
	evGetLabel            = "get-label"
	evGetAllLabels        = "get-all-labels"
	evCreateSalvo         = "create-salvo"
	evExecuteSalvo        = "execute-salvo"
	evGetAllSalvos        = "get-all-salvos"
	evGetStatus           = "get-status"
	evGetAllCrosspoints   = "get-all-crosspoints"
	evGetCrosspointsByLvl = "get-crosspoints-by-level"
	evSubscribe           = "subscribe"
	evUnsubscribe         = "unsubscribe"
)

// Server-to-client event names
const (
	evCrosspointChange   = "crosspoint-change"
	evCrosspointUpdate   = "crosspoint-update"
	evLabelChange        = "label-change"
	evSalvoChange        = "salvo-change"
	evRouterConnected    = "router-connected"
	evRouterDisconnected = "router-disconnected"
	evRouterError        = "router-error"
	evStatusUpdate       = "status-update"
	evSalvoAck           = "salvo-ack"
	evCrosspoint         = "crosspoint"
	evLabel              = "label"
	evLabels             = "labels"
	evSalvo              = "salvo"
	evSalvos             = "salvos"
	evSalvoExecuted      = "salvo-executed"
	evStatus             = "status"
	evSubscribed         = "subscribed"
	evUnsubscribed       = "unsubscribed"
	evAccepted           = "accepted"
	evError              = "error"
)

type takePayload struct {
	Matrix      int `json:"matrix"`
	Level       int `json:"level"`
	Destination int `json:"destination"`
	Source      int `json:"source"`
}

type takeMultiPayload struct {
	Matrix      int   `json:"matrix"`
	Levels      []int `json:"levels"`
	Destination int   `json:"destination"`
	Source      int   `json:"source"`
}

type queryPayload struct {
	Matrix      int `json:"matrix"`
	Level       int `json:"level"`
	Destination int `json:"destination"`
}

type labelPayload struct {
	Type   string `json:"type"`
	Matrix int    `json:"matrix"`
	Level  int    `json:"level"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

type salvoPayload struct {
	ID      int                `json:"id"`
	Name    string             `json:"name"`
	Entries []store.SalvoEntry `json:"entries"`
}

type salvoRefPayload struct {
	ID int `json:"id"`
}

type byLevelPayload struct {
	Matrix int `json:"matrix"`
	Level  int `json:"level"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type transportPayload struct {
	Transport string `json:"transport"`
}
