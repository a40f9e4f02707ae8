// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/a2aproject/a2a-host/internal/msgpipe"
	"github.com/a2aproject/a2a-host/log"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// readWait is the inactivity window before the connection is considered
	// dead. Pongs and inbound frames both extend it.
	readWait = 60 * time.Second

	// pingInterval is how long the write pump idles before pinging the peer.
	// It must be shorter than readWait so the pong arrives in time.
	pingInterval = 54 * time.Second
)

// KeyFunc attributes an upgrade request to the recipient key whose frames the
// connection will receive.
type KeyFunc func(r *http.Request) (string, error)

// WSHandler upgrades HTTP requests to websocket connections registered with a
// delivery [Manager]. Each connection is greeted with a
// connection_established frame and then receives every frame sent to its
// recipient key, including any queued while the recipient was offline.
type WSHandler struct {
	// Upgrader performs the protocol upgrade. Callers may tune origin
	// checking and buffer sizes before serving.
	Upgrader websocket.Upgrader

	manager *Manager
	key     KeyFunc
}

// NewWSHandler creates the websocket push endpoint for manager. key extracts
// the recipient key from the upgrade request.
func NewWSHandler(manager *Manager, key KeyFunc) *WSHandler {
	return &WSHandler{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		manager: manager,
		key:     key,
	}
}

// ServeHTTP implements [http.Handler]. It blocks until the peer goes away.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recipientKey, err := h.key(r)
	if err != nil {
		log.Debug(ctx, "rejecting websocket upgrade", "error", err)
		http.Error(w, "missing recipient identity", http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug(ctx, "websocket upgrade failed", "error", err)
		return
	}

	ws := newWSConn(conn)
	go ws.writePump(ctx)

	if err := writeFrame(ws, NewConnectionEstablished()); err != nil {
		log.Error(ctx, "failed to greet connection", err, "recipient", recipientKey)
	}

	handle := h.manager.Connect(ctx, recipientKey, ws)
	ws.readPump(ctx)
	h.manager.Disconnect(ctx, handle)
}

// WSConn adapts a websocket connection to [Conn]. Outbound frames pass
// through a pipe drained by a single write pump, honoring the websocket
// one-writer contract.
type WSConn struct {
	conn *websocket.Conn
	out  *msgpipe.Pipe

	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*WSConn)(nil)

func newWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{
		conn: conn,
		out:  msgpipe.New(),
	}
}

// WriteMessage implements [Conn]. It never blocks: a full outbound buffer
// means the client cannot keep up, and the write is reported as failed.
func (c *WSConn) WriteMessage(data []byte) error {
	return c.out.Writer.TryWrite(data)
}

// Close implements [Conn].
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.out.Close()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// writePump is the single writer of the underlying connection. It drains the
// outbound pipe and pings the peer whenever the pipe stays idle for a while.
func (c *WSConn) writePump(ctx context.Context) {
	defer func() { _ = c.Close() }()

	for {
		readCtx, cancel := context.WithTimeout(ctx, pingInterval)
		data, err := c.out.Reader.Read(readCtx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			if err := c.writeSocket(websocket.PingMessage, nil); err != nil {
				return
			}
		case err != nil:
			_ = c.writeSocket(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		default:
			if err := c.writeSocket(websocket.TextMessage, data); err != nil {
				log.Debug(ctx, "websocket write failed", "error", err)
				return
			}
		}
	}
}

// readPump consumes inbound frames until the peer goes away, answering
// application-level pings and extending the read deadline on every frame.
func (c *WSConn) readPump(ctx context.Context) {
	defer func() { _ = c.Close() }()

	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Debug(ctx, "websocket read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		c.handleInbound(ctx, data)
	}
}

func (c *WSConn) handleInbound(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug(ctx, "ignoring malformed inbound frame", "error", err)
		return
	}
	switch msg.Type {
	case TypePing:
		if err := writeFrame(c, NewPong()); err != nil {
			log.Debug(ctx, "failed to answer ping", "error", err)
		}
	default:
		// Clients have nothing else to tell us; new messages go through the
		// HTTP API.
		log.Debug(ctx, "ignoring inbound frame", "type", string(msg.Type))
	}
}

func (c *WSConn) writeSocket(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// writeFrame encodes msg and hands it to conn.
func writeFrame(conn Conn, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push frame: %w", err)
	}
	return conn.WriteMessage(data)
}
