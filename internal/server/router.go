package server

import (
	"github.com/Tyrowin/chatmux/internal/protocol"
)

// handleFrame decodes one inbound line and routes it. Frames from clients
// that have already been disconnected are ignored; undecodable frames are
// logged and dropped without affecting the connection.
func (h *Hub) handleFrame(in inboundFrame) {
	c := in.client
	if !h.isLive(c) {
		return
	}

	instruction, err := protocol.DecodeInstruction(in.line)
	if err != nil {
		h.metrics.decodeErrors.Inc()
		h.logger.Warn("invalid frame", "addr", c.addr, "user", c.username, "error", err)
		return
	}

	h.route(c, instruction)
}

// route maps an instruction from c onto its recipients.
func (h *Hub) route(c *Client, instruction protocol.Instruction) {
	switch in := instruction.(type) {
	case protocol.Say:
		h.logger.Debug("["+c.username+"] "+in.Body, "addr", c.addr)
		h.broadcast(protocol.Relayed{Sender: c.username, Body: in.Body}, c.id)

	case protocol.ListUsers:
		names, omitted := h.registry.List(c.id)
		h.unicast(c, protocol.Directory{Omitted: omitted, Users: names})

	case protocol.Whisper:
		handle, ok := h.registry.Find(in.Target)
		if !ok {
			h.unicast(c, protocol.Failure{Code: protocol.CodeNoNameWhisper, Subject: in.Target})
			return
		}
		h.logger.Debug("["+c.username+" -> "+in.Target+"] "+in.Body, "addr", c.addr)
		h.unicast(h.clients[handle], protocol.WhisperRelayed{Sender: c.username, Body: in.Body})

	default:
		h.logger.Error("unroutable instruction", "addr", c.addr, "tag", instruction.Tag())
	}
}
