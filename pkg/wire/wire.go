package wire

// Health status values as they appear on the wire.
const (
	StatusAlive = "alive"
	StatusDying = "dying"
	StatusDead  = "dead"
)

// Announcement directions as they appear on the wire.
const (
	DirectionDown      = "down"
	DirectionRecovered = "recovered"
)

// StatusResponse is the payload for GET / and GET /poll/{key}. It doubles
// as the liveness probe target and the human-facing identity check.
type StatusResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// OpinionResponse is the payload for GET /opinion/{key}/{peer}: the
// responder's current view of one grid member. Callers must check that
// Responder matches the peer they asked.
type OpinionResponse struct {
	Responder string `json:"responder"`
	Peer      string `json:"peer"`
	Opinion   string `json:"opinion"`
}

// GridNodeResponse is one member entry in GET /grid/{key}.
type GridNodeResponse struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Since       string `json:"since,omitempty"`        // RFC3339
	LastPoll    string `json:"last_poll,omitempty"`    // RFC3339
	LastSuccess string `json:"last_success,omitempty"` // RFC3339
}

// GridResponse is the payload for GET /grid/{key}: this node's current
// view of the whole grid, itself included. Nodes are name-sorted.
type GridResponse struct {
	Nodes      []GridNodeResponse `json:"nodes"`
	AliveNodes int                `json:"alive_nodes"`
	DyingNodes int                `json:"dying_nodes"`
	DeadNodes  int                `json:"dead_nodes"`
	TotalNodes int                `json:"total_nodes"`
}

// EventResponse is one health transition in GET /journal/{key}.
type EventResponse struct {
	ID          string   `json:"id"`
	Peer        string   `json:"peer"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	At          string   `json:"at"` // RFC3339
	ConfirmedBy []string `json:"confirmed_by,omitempty"`
}

// JournalResponse is the payload for GET /journal/{key}, newest first.
type JournalResponse struct {
	Events []EventResponse `json:"events"`
}

// SilenceResponse is the payload for GET /silence/{key}/{until}[/{target}].
type SilenceResponse struct {
	Peer  string `json:"peer"`
	Until string `json:"until"` // RFC3339
}

// SilenceBroadcastRequest is the body for POST /silence-broadcast/{key}.
// Receivers deduplicate on ID, so a silence may be pushed repeatedly.
type SilenceBroadcastRequest struct {
	ID    uint64 `json:"id"`
	Peer  string `json:"peer"`
	Until string `json:"until"` // RFC3339
}

// StreamMessage is the envelope for every frame on GET /ws/{key}.
type StreamMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
