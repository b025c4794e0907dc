package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const pingPeriod = 30 * time.Second

// Conn wraps one websocket connection behind a buffered outbound queue. The
// write pump is the only goroutine touching the socket for writes, so frames
// reach the peer in the exact order they were enqueued.
type Conn struct {
	socket       *websocket.Conn
	frames       chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          *slog.Logger
}

func NewConn(socket *websocket.Conn, bufferSize int,
	writeTimeout time.Duration, log *slog.Logger) *Conn {
	return &Conn{
		socket:       socket,
		frames:       make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// Deliver enqueues one serialized frame without blocking. A full queue means
// the peer cannot keep up; the registry drops the subscriber on error.
func (c *Conn) Deliver(frame []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}
	select {
	case c.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbound queue full")
	}
}

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. It returns when the connection closes.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.frames:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// CloseWithPolicyViolation refuses the connection after a failed
// authentication, before any room mutation happened.
func (c *Conn) CloseWithPolicyViolation(reason string) {
	deadline := time.Now().Add(c.writeTimeout)
	c.socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	c.Close()
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}
