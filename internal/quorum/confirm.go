package quorum

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/probe"
	"github.com/gridwatch/gridwatch/pkg/wire"
)

// Verdict is the outcome of one corroboration round.
type Verdict struct {
	Suspect    string
	Confirmed  bool
	Confirmers []string // voters that see the suspect dying or dead, name-sorted
	Asked      int      // voters the round reached out to
	Answered   int      // voters whose answer counted
}

// Confirmer runs corroboration rounds against the rest of the grid.
type Confirmer struct {
	roster *grid.Roster
	prober *probe.Prober
}

// New returns a Confirmer for the given grid.
func New(r *grid.Roster, p *probe.Prober) *Confirmer {
	return &Confirmer{roster: r, prober: p}
}

// Confirm asks every grid member except the local node and the suspect
// whether it also sees the suspect down. Voters are queried concurrently;
// each query is bounded by the prober's timeout. The local node's own
// suspicion is what started the round and is not itself a vote.
func (c *Confirmer) Confirm(ctx context.Context, suspect string) Verdict {
	var targets []grid.Peer
	for _, p := range c.roster.Others() {
		if p.Name != suspect {
			targets = append(targets, p)
		}
	}

	type reply struct {
		voter   string
		opinion string
		err     error
	}
	replies := make([]reply, len(targets))

	var wg sync.WaitGroup
	for i, peer := range targets {
		wg.Add(1)
		go func(i int, peer grid.Peer) {
			defer wg.Done()
			op, err := c.prober.Opinion(ctx, peer, suspect)
			replies[i] = reply{voter: peer.Name, opinion: op, err: err}
		}(i, peer)
	}
	wg.Wait()

	v := Verdict{Suspect: suspect, Asked: len(targets)}
	for _, r := range replies {
		if r.err != nil {
			slog.Warn("quorum: voter unreachable, excluding from the round",
				"suspect", suspect, "voter", r.voter, "err", r.err)
			continue
		}
		v.Answered++
		if r.opinion == wire.StatusDying || r.opinion == wire.StatusDead {
			v.Confirmers = append(v.Confirmers, r.voter)
		}
	}
	sort.Strings(v.Confirmers)
	v.Confirmed = len(v.Confirmers)*2 > v.Answered
	return v
}
