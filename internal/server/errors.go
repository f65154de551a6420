// Package server defines the admission and transport errors shared by the
// hub, the listeners and the connection pumps.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	// ErrAdmissionTimeout means the peer sent no username within the admission window.
	ErrAdmissionTimeout = errors.New("no username received within admission window")
	// ErrEmptyUsername means the admission frame was blank after trimming.
	ErrEmptyUsername = errors.New("empty username")
	// ErrInvalidUsername means the username contains whitespace.
	ErrInvalidUsername = errors.New("username contains whitespace")
	// ErrNameTaken means another live connection already holds the username.
	ErrNameTaken = errors.New("username already taken")
	// ErrPartialWrite means a frame was only partly written before the retries ran out.
	ErrPartialWrite = errors.New("partial write")
)

// Disconnect reasons, used for logging and metrics labels.
const (
	reasonClosed   = "closed"
	reasonReset    = "reset"
	reasonLocal    = "local"
	reasonOversize = "oversize"
	reasonError    = "error"
	reasonOverflow = "overflow"
	reasonShutdown = "shutdown"
)

// classifyReadError maps a read failure onto a disconnect reason. Every
// reason leads to the same disconnect path; the distinction only matters for
// logs and metrics.
func classifyReadError(err error) string {
	switch {
	case errors.Is(err, io.EOF),
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return reasonClosed
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		websocket.IsCloseError(err, websocket.CloseAbnormalClosure):
		return reasonReset
	case errors.Is(err, net.ErrClosed):
		return reasonLocal
	case errors.Is(err, bufio.ErrTooLong),
		errors.Is(err, websocket.ErrReadLimit),
		websocket.IsCloseError(err, websocket.CloseMessageTooBig):
		return reasonOversize
	default:
		return reasonError
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
