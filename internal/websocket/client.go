package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Message types pushed to the claim detail page.
const (
	TypeMessages = "messages"
	TypeReload   = "reload"
)

// Message is one push notification. HTML holds the rendered thread.
type Message struct {
	Type    string `json:"type"`
	ClaimID int64  `json:"claim_id"`
	Count   int    `json:"count"`
	HTML    string `json:"html,omitempty"`
}

func NewMessage(typ string, claimID int64, count int, html string) Message {
	return Message{Type: typ, ClaimID: claimID, Count: count, HTML: html}
}

// Client represents a single WebSocket connection.
type Client struct {
	conn *ws.Conn
	send chan []byte
}

// NewClient creates a Client for an accepted connection.
func NewClient(conn *ws.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Accept upgrades the request. Cross-origin upgrades are refused.
func Accept(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := ws.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket accept: %w", err)
	}
	return NewClient(conn), nil
}

// Send queues msg without blocking. It reports false when the message was
// dropped because the client is not keeping up.
func (c *Client) Send(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run starts the write pump and runs the read pump. It blocks until the
// connection is closed or ctx is done.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
	c.conn.Close(ws.StatusNormalClosure, "")
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
