package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/overmark/overmark/pkg/streaming"
)

const (
	sendChSize   = 256
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 5 * time.Second
	ackTimeout   = 5 * time.Second
)

// connection owns one WebSocket and its single writer goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool
	// wmu serializes writes; gorilla allows one concurrent writer.
	wmu sync.Mutex

	wsURL  string
	secret string

	// hello is replayed first after a reconnect.
	hello []byte

	// onDrop runs when a message is dropped because the queue is full.
	onDrop func()
	// onCommand receives viewer commands on the read goroutine.
	onCommand func(streaming.CommandPayload)

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, onDrop func()) *connection {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		onDrop: onDrop,
		logger: logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()
	return nil
}

// dialOnce performs a single dial, passing the secret as a query parameter
// when one is configured.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) current() *ws.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			conn := c.current()
			if conn == nil {
				continue
			}
			if err := c.write(conn, data); err != nil {
				c.logger.Warn("stream write failed", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

func (c *connection) write(conn *ws.Conn, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop routes acks to ackCh and commands to onCommand.
func (c *connection) readLoop() {
	for {
		conn := c.current()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("stream read failed", "error", err)
			go c.reconnect()
			return
		}

		c.route(message)
	}
}

func (c *connection) route(message []byte) {
	var ack streaming.AckMessage
	if err := json.Unmarshal(message, &ack); err == nil && ack.Type == "ack" {
		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("ack channel full, dropping", "for", ack.For)
		}
		return
	}

	var env streaming.Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type != streaming.TypeCommand {
		c.logger.Debug("ignoring stream message", "raw", string(message))
		return
	}
	var cmd streaming.CommandPayload
	if err := json.Unmarshal(env.Payload, &cmd); err != nil || cmd.Name == "" {
		c.logger.Warn("malformed stream command", "raw", string(message))
		return
	}
	if c.onCommand != nil {
		c.onCommand(cmd)
	}
}

// reconnect re-dials with exponential backoff, replays hello, and restarts
// the loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("stream reconnect failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		hello := c.hello
		c.mu.Unlock()

		if hello != nil {
			if err := c.write(conn, hello); err != nil {
				c.logger.Warn("failed to replay hello", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("stream reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("stream reconnect gave up", "maxAttempts", maxReconnect)
}

// send queues data for the writer. It never blocks; a full queue drops data.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.onDrop()
		return false
	}
}

// sendAndWait queues data and waits for the matching ack.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	if !c.send(data) {
		return fmt.Errorf("send queue full for %q", ackFor)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.wmu.Lock()
		_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		c.wmu.Unlock()
		return conn.Close()
	}
	return nil
}
