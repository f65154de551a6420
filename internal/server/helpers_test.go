package server

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer binds a server on loopback ports and serves until the test
// ends. mutate may adjust the config before the server is created.
func startTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.AdmissionWindow = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	srv := New(cfg, WithLogger(discardLogger()))
	require.NoError(t, srv.Listen())

	go func() { _ = srv.Serve() }()
	go func() { _ = srv.ServeWeb() }()
	t.Cleanup(func() { _ = srv.Shutdown(2 * time.Second) })
	return srv
}

// testClient is a raw TCP chat client.
type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server, username string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), readTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
	if username != "" {
		c.send(username)
	}
	return c
}

// join connects username and waits until every existing client has seen the
// presence notice, so later frames are ordered after the admission.
func join(t *testing.T, srv *Server, username string, existing ...*testClient) *testClient {
	t.Helper()

	c := dial(t, srv, username)
	for _, other := range existing {
		other.expect("connection " + username)
	}
	require.Eventually(t, func() bool { return srv.Online() == len(existing)+1 }, readTimeout, 5*time.Millisecond)
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return "", err
	}
	line, err := c.r.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	line, err := c.readLine()
	require.NoError(c.t, err)
	require.Equal(c.t, want, line)
}

// expectNothing asserts that no frame arrives within d.
func (c *testClient) expectNothing(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	line, err := c.r.ReadString('\n')
	require.Error(c.t, err, "unexpected frame %q", line)
	require.True(c.t, isTimeout(err), "expected timeout, got %v", err)
}

// expectClosed asserts that the server closed the connection.
func (c *testClient) expectClosed() {
	c.t.Helper()
	line, err := c.readLine()
	require.ErrorIs(c.t, err, io.EOF, "expected EOF, got frame %q", line)
}

// fakeTransport is an in-memory Transport for driving the hub directly.
type fakeTransport struct {
	addr    string
	inbound chan string
	written chan string
	block   chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{
		addr:    addr,
		inbound: make(chan string),
		written: make(chan string, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadUsername(time.Duration) (string, error) {
	return "", ErrAdmissionTimeout
}

func (f *fakeTransport) ReadFrame() (string, error) {
	select {
	case line := <-f.inbound:
		return line, nil
	case <-f.closed:
		return "", net.ErrClosed
	}
}

func (f *fakeTransport) WriteFrame(frame string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-f.closed:
			return net.ErrClosed
		}
	}
	select {
	case f.written <- frame:
		return nil
	case <-f.closed:
		return net.ErrClosed
	}
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string {
	return f.addr
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.written:
		require.Equal(t, want, got)
	case <-time.After(readTimeout):
		t.Fatalf("timed out waiting for %q on %s", want, f.addr)
	}
}

func (f *fakeTransport) expectNothing(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-f.written:
		t.Fatalf("unexpected frame %q on %s", got, f.addr)
	case <-time.After(d):
	}
}
