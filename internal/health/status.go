package health

import "time"

// Status is the health state of one grid member.
type Status string

// The three health states. A member enters Dead only through a quorum
// verdict and leaves Dying or Dead the moment a single probe succeeds.
const (
	StatusAlive Status = "alive"
	StatusDying Status = "dying"
	StatusDead  Status = "dead"
)

// Record is one member's health as this node currently sees it.
type Record struct {
	Name        string
	Status      Status
	Since       time.Time // start of the current dying or dead spell; zero while alive
	Failures    int       // consecutive failed probes in the current dying spell
	ConfirmedBy []string  // peers that corroborated the current dead verdict
	LastPoll    time.Time // last probe attempt, successful or not
	LastSuccess time.Time // last successful probe
}

// TransitionEvent records one status change. IDs are unique per change,
// so downstream consumers can deduplicate deliveries.
type TransitionEvent struct {
	ID          string
	Peer        string
	From        Status
	To          Status
	At          time.Time
	ConfirmedBy []string
}

// Direction returns "down" for a confirmed death, "recovered" for a
// return from the dead, and "" for transitions that are not announced.
func (e TransitionEvent) Direction() string {
	switch {
	case e.To == StatusDead:
		return "down"
	case e.From == StatusDead && e.To == StatusAlive:
		return "recovered"
	default:
		return ""
	}
}

// GridSnapshot is a point-in-time copy of the whole grid view, the local
// node included. Nodes are name-sorted.
type GridSnapshot struct {
	Nodes []Record
	Alive int
	Dying int
	Dead  int
	Total int
}
