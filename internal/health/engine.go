package health

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/internal/grid"
)

// Engine maintains one health Record per watched peer and applies the
// transition rules to probe outcomes and quorum verdicts.
//
// The record map is built once and never grows, so it is read without a
// lock; each record carries its own mutex and probes of different peers
// never contend. All exported methods are safe for concurrent use.
//
// now is passed explicitly so callers (and tests) control the clock
// without sleeping. Use time.Now() in production.
type Engine struct {
	self    string
	records map[string]*peerRecord
}

type peerRecord struct {
	mu    sync.Mutex
	rec   Record
	epoch uint64 // bumped on every status change; guards stale verdicts
}

// NewEngine returns an Engine with one Alive record per watched peer.
func NewEngine(r *grid.Roster) *Engine {
	e := &Engine{
		self:    r.Self(),
		records: make(map[string]*peerRecord, len(r.Others())),
	}
	for _, p := range r.Others() {
		e.records[p.Name] = &peerRecord{rec: Record{Name: p.Name, Status: StatusAlive}}
	}
	return e
}

// ReportSuccess folds a successful probe of peer into its record and
// returns a TransitionEvent when the probe revived a dying or dead peer,
// nil otherwise. Recovery needs no corroboration: one good probe is proof
// of life.
func (e *Engine) ReportSuccess(peer string, now time.Time) *TransitionEvent {
	pr := e.records[peer]
	if pr == nil {
		return nil
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.rec.LastPoll = now
	pr.rec.LastSuccess = now
	if pr.rec.Status == StatusAlive {
		return nil
	}
	return pr.transition(StatusAlive, now, nil)
}

// ReportFailure folds a failed probe of peer into its record. The event
// is non-nil only when the failure started a new dying spell; the bool
// reports whether the caller should seek corroboration, which is the case
// for every failure while the peer is not already dead. A dead peer stays
// dead on further failures.
func (e *Engine) ReportFailure(peer string, now time.Time) (*TransitionEvent, bool) {
	pr := e.records[peer]
	if pr == nil {
		return nil, false
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.rec.LastPoll = now
	switch pr.rec.Status {
	case StatusAlive:
		ev := pr.transition(StatusDying, now, nil)
		pr.rec.Failures = 1
		return ev, true
	case StatusDying:
		pr.rec.Failures++
		return nil, true
	default:
		return nil, false
	}
}

// Observed returns peer's current status together with its transition
// epoch. Corroboration rounds capture both before asking the grid and
// hand the epoch back to ConfirmDead, which drops the verdict if the
// record has moved on in the meantime.
func (e *Engine) Observed(peer string) (Status, uint64, bool) {
	pr := e.records[peer]
	if pr == nil {
		return "", 0, false
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.rec.Status, pr.epoch, true
}

// ConfirmDead applies a quorum death verdict for peer. The verdict only
// lands if the record is still dying at the captured epoch; anything else
// means the peer changed state while the round was in flight and the
// verdict is stale.
func (e *Engine) ConfirmDead(peer string, confirmedBy []string, epoch uint64, now time.Time) *TransitionEvent {
	pr := e.records[peer]
	if pr == nil {
		return nil
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.rec.Status != StatusDying || pr.epoch != epoch {
		slog.Debug("health: discarding stale death verdict",
			"peer", peer, "status", string(pr.rec.Status))
		return nil
	}
	return pr.transition(StatusDead, now, confirmedBy)
}

// Opinion answers a corroboration query about peer. Asking a node about
// itself always yields alive; unknown names report false.
func (e *Engine) Opinion(peer string) (Status, bool) {
	if peer == e.self {
		return StatusAlive, true
	}
	pr := e.records[peer]
	if pr == nil {
		return "", false
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.rec.Status, true
}

// AliveNames returns the name-sorted members this node currently
// considers alive, itself always included. This is the electorate for
// announcement elections.
func (e *Engine) AliveNames() []string {
	names := []string{e.self}
	for name, pr := range e.records {
		pr.mu.Lock()
		alive := pr.rec.Status == StatusAlive
		pr.mu.Unlock()
		if alive {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of every record plus status counts, the local
// node included as an always-alive entry with no poll times.
func (e *Engine) Snapshot() GridSnapshot {
	snap := GridSnapshot{Nodes: make([]Record, 0, len(e.records)+1)}
	snap.Nodes = append(snap.Nodes, Record{Name: e.self, Status: StatusAlive})
	for _, pr := range e.records {
		pr.mu.Lock()
		rec := pr.rec
		rec.ConfirmedBy = append([]string(nil), pr.rec.ConfirmedBy...)
		pr.mu.Unlock()
		snap.Nodes = append(snap.Nodes, rec)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].Name < snap.Nodes[j].Name })

	for _, n := range snap.Nodes {
		switch n.Status {
		case StatusAlive:
			snap.Alive++
		case StatusDying:
			snap.Dying++
		case StatusDead:
			snap.Dead++
		}
	}
	snap.Total = len(snap.Nodes)
	return snap
}

// transition moves the record to a new status and builds the event.
// Caller holds pr.mu.
func (pr *peerRecord) transition(to Status, now time.Time, confirmedBy []string) *TransitionEvent {
	from := pr.rec.Status
	pr.epoch++
	pr.rec.Status = to
	pr.rec.Failures = 0
	pr.rec.ConfirmedBy = confirmedBy
	if to == StatusAlive {
		pr.rec.Since = time.Time{}
	} else {
		pr.rec.Since = now
	}
	return &TransitionEvent{
		ID:          fmt.Sprintf("%s:%s>%s:%d", pr.rec.Name, from, to, pr.epoch),
		Peer:        pr.rec.Name,
		From:        from,
		To:          to,
		At:          now,
		ConfirmedBy: confirmedBy,
	}
}
