package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client represents one admitted (or about to be admitted) connection. Its
// fields are fixed at creation; the hub alone decides when send is closed.
type Client struct {
	id        uuid.UUID
	username  string
	addr      string
	transport Transport
	send      chan string
	hub       *Hub
	limiter   *rateLimiter
	closeOnce sync.Once
}

// ID returns the connection handle.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Username returns the name the client was admitted under.
func (c *Client) Username() string {
	return c.username
}

// closeTransport closes the underlying transport once.
func (c *Client) closeTransport() {
	c.closeOnce.Do(func() {
		if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
			c.hub.logger.Warn("error closing connection", "addr", c.addr, "user", c.username, "error", err)
		}
	})
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the frame should be processed
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		c.hub.logger.Warn("rate limit exceeded; discarding frame", "addr", c.addr, "user", c.username)
		c.hub.metrics.dropped.Inc()
		return false
	}
	return true
}

// readPump feeds inbound frames to the hub until the transport fails, then
// reports the departure. It never touches hub state directly.
func (c *Client) readPump() {
	for {
		frame, err := c.transport.ReadFrame()
		if err != nil {
			reason := classifyReadError(err)
			if reason == reasonError || reason == reasonOversize {
				c.hub.logger.Warn("read error", "addr", c.addr, "user", c.username, "error", err)
			} else {
				c.hub.logger.Debug("connection closed", "addr", c.addr, "user", c.username, "reason", reason)
			}
			c.hub.leave(c, reason)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if !c.hub.deliver(c, frame) {
			return
		}
	}
}

// writePump drains the send queue onto the transport and closes the
// transport once the hub closes the queue.
func (c *Client) writePump() {
	var tick <-chan time.Time
	p, keepalive := c.transport.(pinger)
	if keepalive {
		ticker := time.NewTicker(p.PingInterval())
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.closeTransport()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				if cw, ok := c.transport.(closeWriter); ok {
					if err := cw.WriteClose(); err != nil && !isExpectedCloseError(err) {
						c.hub.logger.Debug("close frame not sent", "addr", c.addr, "user", c.username, "error", err)
					}
				}
				return
			}
			if err := c.transport.WriteFrame(frame); err != nil {
				c.abandon(err)
				return
			}
		case <-tick:
			if err := p.Ping(); err != nil {
				c.abandon(err)
				return
			}
		}
	}
}

// abandon closes the transport after a failed write so the read pump reports
// the departure, then discards whatever is still queued.
func (c *Client) abandon(err error) {
	if !isExpectedCloseError(err) {
		c.hub.logger.Warn("write failed", "addr", c.addr, "user", c.username, "error", err)
	}
	c.closeTransport()
	for range c.send {
	}
}
