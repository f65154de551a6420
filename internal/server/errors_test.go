package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

// TestClassifyReadError verifies that each kind of read failure maps to the
// expected disconnect reason.
func TestClassifyReadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"eof", io.EOF, reasonClosed},
		{"websocket normal close", &websocket.CloseError{Code: websocket.CloseNormalClosure}, reasonClosed},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, reasonReset},
		{"websocket abnormal close", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, reasonReset},
		{"closed locally", fmt.Errorf("read: %w", net.ErrClosed), reasonLocal},
		{"oversize line", bufio.ErrTooLong, reasonOversize},
		{"oversize message", websocket.ErrReadLimit, reasonOversize},
		{"other", errors.New("boom"), reasonError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyReadError(tt.err))
		})
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	assert.True(t, isExpectedCloseError(nil))
	assert.True(t, isExpectedCloseError(net.ErrClosed))
	assert.True(t, isExpectedCloseError(websocket.ErrCloseSent))
	assert.True(t, isExpectedCloseError(errors.New("write: broken pipe")))
	assert.False(t, isExpectedCloseError(errors.New("disk on fire")))
}
