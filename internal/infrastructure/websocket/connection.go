package websocket

import (
	"fmt"
	"sync"
	"time"

	"arcade-system/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Conn adapts one gorilla connection. All writes go through a buffered
// channel drained by a single write pump, so Send never blocks; when the
// buffer is full the frame is dropped for this connection only.
type Conn struct {
	id     string
	userID int64
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    logger.Logger
}

func NewConn(id string, userID int64, ws *websocket.Conn, log logger.Logger) *Conn {
	c := &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
	go c.writePump()
	return c
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) UserID() int64 {
	return c.userID
}

func (c *Conn) Send(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	default:
		c.log.Warn("Dropping frame for slow consumer", "conn_id", c.id, "user_id", c.userID)
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.log.Debug("Write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
