// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package progress

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/pipeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // inbound frames are ping messages only
)

// clientIDCounter hands out ids used for deterministic broadcast order,
// since map iteration order is not.
var clientIDCounter atomic.Uint64

// Client bridges one WebSocket connection and the hub.
type Client struct {
	id        uint64
	runFilter string // empty receives every run
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message
}

// NewClient wraps an upgraded connection. runFilter scopes delivery to
// one run id; empty subscribes to all runs.
func NewClient(hub *Hub, conn *websocket.Conn, runFilter string) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		runFilter: runFilter,
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, 64),
	}
}

// ID returns the client's ordering id.
func (c *Client) ID() uint64 {
	return c.id
}

// wants reports whether this client subscribed to the event's run.
func (c *Client) wants(event pipeline.ProgressEvent) bool {
	return c.runFilter == "" || c.runFilter == event.RunID
}

// Start launches the read and write pumps. The client unregisters
// itself when either pump exits.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump consumes inbound frames, answering pings and refreshing the
// read deadline on pongs, until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Err(err).Uint64("client_id", c.id).Msg("Unexpected websocket close")
			}
			return
		}

		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump writes hub messages and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Err(err).Msg("Failed to set write deadline")
				return
			}
			if !ok {
				// Hub closed this client.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				metrics.WSErrors.WithLabelValues("write_failed").Inc()
				logging.Err(err).Uint64("client_id", c.id).Msg("Failed to write progress message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
