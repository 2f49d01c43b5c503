// Package connection implements the Connection Supervisor component.
//
// The Connection Supervisor:
//   - Owns the single WebSocket connection of a client session
//   - Tracks its lifecycle: idle, connecting, connected, disconnected, error
//   - Runs on-connected hooks in registration order after every open
//   - Drops sends issued while not connected (no queue)
//   - Never reconnects on its own; EnsureConnection must be called again
package connection
