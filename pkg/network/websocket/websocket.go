// Package websocket thinly wraps gorilla for the signaling endpoint:
// text messages in, JSON out, writes serialized so callbacks may push
// from any goroutine.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 10 * 1024
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

type Conn struct {
	sock *websocket.Conn
	mu   sync.Mutex
}

func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	sock.SetReadLimit(maxMessageSize)
	return &Conn{sock: sock}, nil
}

// Read blocks for the next text message. The caller is the only
// reader of the connection.
func (c *Conn) Read() ([]byte, error) {
	_, message, err := c.sock.ReadMessage()
	return message, err
}

// Write JSON-encodes v onto the wire.
func (c *Conn) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
	return c.sock.Close()
}
