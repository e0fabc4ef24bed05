// README: Websocket connection with read/write pumps and a bounded send queue.
package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var timeNow = time.Now

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 16 << 10
	sendBufferSize = 64
)

// Conn wraps one websocket connection. Frames are queued on a buffered
// channel; a full queue marks the peer as too slow and the hub drops it.
type Conn struct {
	ws   *websocket.Conn
	send chan ServerFrame
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan ServerFrame, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send enqueues a frame without blocking. False means the queue is full or
// the connection is closing.
func (c *Conn) Send(f ServerFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// Close is safe to call from any goroutine; the hub uses it to drop slow
// consumers while the serve path uses it on normal shutdown.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump drains the send queue onto the socket and keeps the peer alive
// with pings. One writer goroutine per connection, as gorilla requires.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
