package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 90 * time.Second
)

// Conn wraps a websocket connection and serializes writes. The countdown
// ticker and the read loop write from different goroutines, and the
// underlying connection supports only one writer at a time.
type Conn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
}

// NewConn wraps an upgraded connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteTyped sends a typed server message with a write deadline.
func (c *Conn) WriteTyped(event Event, payload interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(ServerMessage{Event: event, Payload: payload})
}

// WriteError sends an error event; the connection stays open.
func (c *Conn) WriteError(code, message string) error {
	return c.WriteTyped(EventError, ErrorPayload{Code: code, Message: message})
}

// ReadClientMessage reads the next client message with a read deadline.
// Reads are single-goroutine by contract; only writes need the mutex.
func (c *Conn) ReadClientMessage() (*ClientMessage, error) {
	c.ws.SetReadDeadline(time.Now().Add(readWait))
	msg := &ClientMessage{}
	if err := c.ws.ReadJSON(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
