package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"mycm.app/server/internal/reflection"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// frame is the wire envelope in both directions: client requests, server acks
// and room broadcasts all carry an event name plus a payload.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame defers payload decoding until the event is known.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is one websocket connection plus the session identity it authenticated
// with (zero-valued for anonymous viewers).
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	sess reflection.Session
}

func newClient(hub *Hub, conn *websocket.Conn, sess reflection.Session) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		sess: sess,
	}
}

// enqueue pushes a frame onto the client's send queue, dropping it if the
// queue is full.
func (c *Client) enqueue(f frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump consumes frames until the connection drops, dispatching each one in
// order. Cleanup of room membership happens here, on the way out.
func (c *Client) readPump(dispatch func(*Client, inboundFrame)) {
	defer func() {
		c.hub.Remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f inboundFrame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			c.enqueue(frame{Event: "error", Data: map[string]any{"ok": false, "error": "Bad payload"}})
			continue
		}
		dispatch(c, f)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
