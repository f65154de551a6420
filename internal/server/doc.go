// Package server implements the chat server core: the hub that owns the set
// of connected users, the router that decides who receives each frame, and
// the lifecycle code that admits and disconnects connections.
//
// The implementation is organized into specialized files for configuration,
// the hub and router, clients, transports (raw TCP and WebSocket), listeners,
// HTTP handlers and metrics.
package server
