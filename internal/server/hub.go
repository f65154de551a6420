package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/chatmux/internal/protocol"
	"github.com/Tyrowin/chatmux/internal/registry"
)

type inboundFrame struct {
	client *Client
	line   string
}

type departure struct {
	client *Client
	reason string
}

// Hub is the reactor: a single goroutine started by Start owns the registry and
// the client table, and is the only place frames are queued for delivery.
// Connection pumps talk to it exclusively through its channels.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *Metrics
	registry *registry.Registry
	clients  map[uuid.UUID]*Client

	admissions chan *Client
	inbound    chan inboundFrame
	departures chan departure

	online  atomic.Int64
	started atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub creates a Hub ready to be started. A nil logger or metrics falls
// back to slog.Default and a private registry.
func NewHub(cfg Config, logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg.sanitized(),
		logger:     logger,
		metrics:    metrics,
		registry:   registry.New(),
		clients:    make(map[uuid.UUID]*Client),
		admissions: make(chan *Client),
		inbound:    make(chan inboundFrame),
		departures: make(chan departure),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine.
func (h *Hub) Start() {
	if h.started.CompareAndSwap(false, true) {
		go h.run()
		h.logger.Info("hub started")
	}
}

// Online reports how many users are currently admitted. Safe to call from
// any goroutine.
func (h *Hub) Online() int {
	return int(h.online.Load())
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.admissions:
			h.admit(c)

		case in := <-h.inbound:
			h.handleFrame(in)

		case d := <-h.departures:
			if h.isLive(d.client) {
				h.disconnect(d.client, false, d.reason)
			}
		}
	}
}

// newClient prepares a connection for admission under username.
func (h *Hub) newClient(t Transport, username string) *Client {
	return &Client{
		id:        uuid.New(),
		username:  username,
		addr:      t.RemoteAddr(),
		transport: t,
		send:      make(chan string, h.cfg.SendBufferSize+1),
		hub:       h,
		limiter:   newRateLimiter(h.cfg.RateLimit.Burst, h.cfg.RateLimit.RefillInterval),
	}
}

// submit hands a new client to the reactor. It returns false if the hub is
// shutting down, in which case the caller still owns the transport.
func (h *Hub) submit(c *Client) bool {
	select {
	case h.admissions <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// deliver passes an inbound frame to the reactor. It returns false once the
// hub has stopped.
func (h *Hub) deliver(c *Client, line string) bool {
	select {
	case h.inbound <- inboundFrame{client: c, line: line}:
		return true
	case <-h.done:
		return false
	}
}

// leave reports that a client's transport has failed or closed.
func (h *Hub) leave(c *Client, reason string) {
	select {
	case h.departures <- departure{client: c, reason: reason}:
	case <-h.done:
	}
}

func (h *Hub) isLive(c *Client) bool {
	live, ok := h.clients[c.id]
	return ok && live == c
}

// admit registers c or rejects it with name_taken.
func (h *Hub) admit(c *Client) {
	if !h.registry.Admit(c.id, c.username) {
		h.logger.Info("admission rejected", "addr", c.addr, "user", c.username, "error", ErrNameTaken)
		h.metrics.admissions.WithLabelValues("name_taken").Inc()
		c.send <- protocol.Encode(protocol.Failure{Code: protocol.CodeNameTaken, Subject: c.username})
		close(c.send)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			c.writePump()
		}()
		return
	}

	h.clients[c.id] = c
	count := h.online.Add(1)
	h.metrics.online.Set(float64(count))
	h.metrics.admissions.WithLabelValues("admitted").Inc()
	h.logger.Info("client registered", "addr", c.addr, "user", c.username, "handle", c.id, "online", count)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()

	h.broadcast(protocol.Joined{User: c.username}, c.id)
}

// disconnect removes c from the registry and stops its pumps. Unless
// suppress is set, the remaining users are told that c left. During shutdown
// the transport is closed by the write pump after the queue is flushed;
// otherwise it is closed immediately.
func (h *Hub) disconnect(c *Client, suppress bool, reason string) {
	name, ok := h.registry.Remove(c.id)
	if !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	if !suppress {
		c.closeTransport()
	}

	count := h.online.Add(-1)
	h.metrics.online.Set(float64(count))
	h.metrics.disconnects.WithLabelValues(reason).Inc()
	h.logger.Info("client unregistered", "addr", c.addr, "user", name, "reason", reason, "online", count)

	if !suppress {
		h.broadcast(protocol.Left{User: name})
	}
}

// enqueue queues a frame without blocking. It returns false once the client
// holds SendBufferSize frames. The queue has one slot beyond that, kept for
// the shutdown frame.
func (h *Hub) enqueue(c *Client, frame string) bool {
	if len(c.send) >= h.cfg.SendBufferSize {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// unicast sends ev to a single client, dropping the client if it cannot keep up.
func (h *Hub) unicast(c *Client, ev protocol.Event) {
	if !h.enqueue(c, protocol.Encode(ev)) {
		h.logger.Warn("send queue full; dropping client", "addr", c.addr, "user", c.username)
		h.disconnect(c, false, reasonOverflow)
		return
	}
	h.metrics.frames.WithLabelValues(ev.Tag()).Inc()
}

// broadcast sends ev to every registered client except the excluded handles.
// Recipients whose queue is full are dropped after the fan-out completes.
func (h *Hub) broadcast(ev protocol.Event, exclude ...uuid.UUID) {
	frame := protocol.Encode(ev)
	var overflowed []*Client

	for _, id := range h.registry.Recipients(exclude...) {
		c := h.clients[id]
		if h.enqueue(c, frame) {
			h.metrics.frames.WithLabelValues(ev.Tag()).Inc()
			continue
		}
		overflowed = append(overflowed, c)
	}

	for _, c := range overflowed {
		h.logger.Warn("send queue full; dropping client", "addr", c.addr, "user", c.username)
		h.disconnect(c, false, reasonOverflow)
	}
}

// shutdownClients sends the shutdown notice to every live client and
// disconnects it without presence chatter.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	frame := protocol.Encode(protocol.Shutdown{})
	ids := h.registry.Recipients()
	for _, id := range ids {
		c := h.clients[id]
		select {
		case c.send <- frame:
			h.metrics.frames.WithLabelValues(protocol.TagShutdown).Inc()
		default:
			h.logger.Warn("send queue full; shutdown notice not queued", "addr", c.addr, "user", c.username)
		}
		h.disconnect(c, true, reasonShutdown)
	}

	h.logger.Info("closed client connections", "count", len(ids))
}

// Shutdown stops the hub and waits for all connection goroutines to finish,
// or until the timeout is reached. Calling it again is a no-op.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	if !h.started.Load() {
		return nil
	}
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Debug("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some connections may still be draining")
		return context.DeadlineExceeded
	}
}
