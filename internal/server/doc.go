// Package server implements the HTTP surface of a gridwatch node.
//
// New(deps) returns an http.Handler that serves:
//
//	GET  /                                  — name + version banner, no key
//	GET  /poll/{key}                        — probe target; 200 means alive
//	GET  /opinion/{key}/{peer}              — this node's view of one member
//	GET  /grid/{key}                        — full grid view (GridResponse)
//	GET  /journal/{key}                     — recent transitions, newest first
//	GET  /metrics/{key}                     — Prometheus text exposition
//	GET  /silence/{key}/{until}[/{target}]  — add a silence; until is unix
//	                                          seconds or a duration like 90m
//	POST /silence-broadcast/{key}           — merge a silence pushed by a peer
//	GET  /ws/{key}                          — WebSocket grid stream
//
// All keyed endpoints:
//   - Respond with Content-Type: application/json (except /metrics)
//   - Return 401 {"error":"invalid key"} when the key segment is wrong
//
// The bare banner intentionally takes no key: peers, humans and load
// balancers can all hit it, and it leaks nothing but name and version.
// With -ui-dir set, the dashboard is served under /webui/ with an
// index.html fallback for client-side routes.
package server
