// Package server wires HTTP handlers into a ServeMux via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with the health check,
// Prometheus metrics and WebSocket endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}
