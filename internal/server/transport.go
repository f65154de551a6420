package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries newline-free frames for one connection. ReadFrame is
// called from a single reader goroutine and WriteFrame from a single writer
// goroutine; Close may be called from anywhere and must not block.
type Transport interface {
	// ReadUsername waits at most window for the admission frame and
	// returns it trimmed.
	ReadUsername(window time.Duration) (string, error)
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	Close() error
	RemoteAddr() string
}

// pinger is implemented by transports that need application-level keepalives.
type pinger interface {
	Ping() error
	PingInterval() time.Duration
}

// closeWriter is implemented by transports that announce an orderly close
// in-band. Close itself never blocks on the peer.
type closeWriter interface {
	WriteClose() error
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// tailGrace is how long an unterminated tail waits for the rest of its line
// before it is taken as a complete frame.
const tailGrace = 20 * time.Millisecond

// tcpTransport frames a raw TCP stream. A frame ends at a newline, or at the
// end of a read when the peer sends frames without a terminator.
type tcpTransport struct {
	conn         net.Conn
	buf          []byte
	pending      []byte
	graceSet     bool
	maxFrame     int
	writeTimeout time.Duration
	writeRetries int
}

func newTCPTransport(conn net.Conn, cfg Config) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		buf:          make([]byte, 4096),
		maxFrame:     int(cfg.MaxMessageSize),
		writeTimeout: cfg.WriteTimeout,
		writeRetries: cfg.WriteRetries,
	}
}

// ReadUsername performs one bounded read. The username is everything up to
// the first newline, or the whole payload if there is none; bytes after the
// newline are kept as the start of the frame stream.
func (t *tcpTransport) ReadUsername(window time.Duration) (string, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		return "", err
	}
	buf := make([]byte, t.maxFrame)
	n, err := t.conn.Read(buf)
	if clearErr := t.conn.SetReadDeadline(time.Time{}); clearErr != nil && err == nil {
		err = clearErr
	}

	if n == 0 {
		if err == nil || isTimeout(err) || errors.Is(err, io.EOF) {
			return "", ErrAdmissionTimeout
		}
		return "", err
	}

	line, rest, _ := bytes.Cut(buf[:n], []byte{'\n'})
	t.pending = bytes.Clone(rest)

	username := strings.TrimSpace(string(line))
	if username == "" {
		return "", ErrEmptyUsername
	}
	return username, nil
}

// ReadFrame returns the next non-blank frame. Complete lines are returned
// first; a tail with no newline becomes a frame once the peer has been quiet
// for tailGrace or has closed its side. It returns io.EOF once the peer has
// closed and nothing is left.
func (t *tcpTransport) ReadFrame() (string, error) {
	for {
		if i := bytes.IndexByte(t.pending, '\n'); i >= 0 {
			if i > t.maxFrame {
				return "", bufio.ErrTooLong
			}
			line := string(t.pending[:i])
			t.pending = t.pending[i+1:]
			if frame, ok := cleanFrame(line); ok {
				return frame, nil
			}
			continue
		}
		if len(t.pending) > t.maxFrame {
			return "", bufio.ErrTooLong
		}

		err := t.fill(len(t.pending) > 0)
		switch {
		case err == nil:
		case len(t.pending) > 0 && (isTimeout(err) || errors.Is(err, io.EOF)):
			tail := string(t.pending)
			t.pending = nil
			if frame, ok := cleanFrame(tail); ok {
				return frame, nil
			}
		default:
			return "", err
		}
	}
}

// fill appends one read to pending. With grace set the read waits at most
// tailGrace so an unterminated tail is not held back.
func (t *tcpTransport) fill(grace bool) error {
	switch {
	case grace:
		if err := t.conn.SetReadDeadline(time.Now().Add(tailGrace)); err != nil {
			return err
		}
	case t.graceSet:
		if err := t.conn.SetReadDeadline(time.Time{}); err != nil {
			return err
		}
	}
	t.graceSet = grace

	n, err := t.conn.Read(t.buf)
	t.pending = append(t.pending, t.buf[:n]...)
	if n > 0 {
		return nil
	}
	return err
}

// cleanFrame strips a trailing carriage return and reports whether anything
// but whitespace is left.
func cleanFrame(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	return line, strings.TrimSpace(line) != ""
}

// WriteFrame writes frame plus a newline. A write that times out part way is
// resumed from where it stopped, up to writeRetries more times.
func (t *tcpTransport) WriteFrame(frame string) error {
	buf := []byte(frame + "\n")
	written := 0
	for attempt := 0; ; attempt++ {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
		n, err := t.conn.Write(buf[written:])
		written += n
		if err == nil {
			return nil
		}
		if !isTimeout(err) || attempt >= t.writeRetries {
			if written > 0 {
				return fmt.Errorf("%w: %d of %d bytes: %v", ErrPartialWrite, written, len(buf), err)
			}
			return err
		}
	}
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// wsTransport carries one frame per WebSocket text message.
type wsTransport struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration
}

func newWSTransport(conn *websocket.Conn, addr string, cfg Config) *wsTransport {
	conn.SetReadLimit(cfg.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsTransport{conn: conn, addr: addr, writeTimeout: cfg.WriteTimeout}
}

func (t *wsTransport) ReadUsername(window time.Duration) (string, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		return "", err
	}
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		if isTimeout(err) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", ErrAdmissionTimeout
		}
		return "", err
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return "", err
	}

	username := strings.TrimSpace(string(msg))
	if username == "" {
		return "", ErrEmptyUsername
	}
	return username, nil
}

func (t *wsTransport) ReadFrame() (string, error) {
	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		line := strings.TrimRight(string(msg), "\r\n")
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
	}
}

func (t *wsTransport) WriteFrame(frame string) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

func (t *wsTransport) PingInterval() time.Duration {
	return pingPeriod
}

// WriteClose sends a normal close frame. It is called by the writer once the
// send queue is drained.
func (t *wsTransport) WriteClose() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeTimeout))
}

// Close drops the connection without waiting on the peer.
func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}
