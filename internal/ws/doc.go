// Package ws implements the WebSocket hub for the grid stream.
//
// Hub manages a set of connected clients and pushes the node's current grid
// view to all of them on a fixed interval (5s in production).
//
// New(snapshot, interval) creates a Hub around a snapshot function.
// Hub.Run(ctx) starts the push ticker — blocks until ctx is cancelled, then
// closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// grid view immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "grid",
//	  "data":  { /* same schema as GET /grid/{key} */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The hub is mounted at /ws/{key} by the server.
package ws
