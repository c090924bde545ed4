package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// defaultWriteTimeout bounds each subscriber send so a hanging peer
// surfaces as a send failure instead of a stuck broadcast.
const defaultWriteTimeout = 5 * time.Second

// wsConn adapts a gorilla websocket connection to the Conn interface.
type wsConn struct {
	id           string
	writeTimeout time.Duration

	// gorilla allows one concurrent writer; serialize sends.
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSConn wraps an upgraded websocket connection as a subscriber.
func NewWSConn(conn *websocket.Conn) Conn {
	return &wsConn{
		id:           uuid.NewString(),
		writeTimeout: defaultWriteTimeout,
		conn:         conn,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
