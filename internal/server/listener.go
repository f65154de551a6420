package server

import (
	"errors"
	"net"
	"strings"
	"time"
	"unicode"

	"github.com/Tyrowin/chatmux/internal/protocol"
)

// acceptOne accepts a single pending connection and starts its admission in
// a separate goroutine so a slow client cannot hold up the listener.
func (s *Server) acceptOne() error {
	conn, err := s.listener.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		s.logger.Warn("accept error", "error", err)
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	go s.admit(newTCPTransport(conn, s.cfg))
	return nil
}

// admit reads the username within the admission window and hands the
// connection to the hub, which makes the final uniqueness decision.
func (s *Server) admit(t Transport) {
	addr := t.RemoteAddr()

	username, err := t.ReadUsername(s.cfg.AdmissionWindow)
	if err != nil {
		s.logger.Info("attempted connection sent no username, disconnecting", "addr", addr, "error", err)
		s.metrics.admissions.WithLabelValues("timeout").Inc()
		_ = t.Close()
		return
	}

	if strings.ContainsFunc(username, unicode.IsSpace) {
		s.logger.Info("attempted connection with invalid username", "addr", addr, "user", username, "error", ErrInvalidUsername)
		s.metrics.admissions.WithLabelValues("invalid_name").Inc()
		_ = t.WriteFrame(protocol.Encode(protocol.Failure{Code: protocol.CodeInvalidName, Subject: username}))
		if cw, ok := t.(closeWriter); ok {
			_ = cw.WriteClose()
		}
		_ = t.Close()
		return
	}

	if !s.hub.submit(s.hub.newClient(t, username)) {
		s.logger.Info("server closing; refusing connection", "addr", addr, "user", username)
		_ = t.Close()
	}
}
