package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/internal/announce"
	"github.com/gridwatch/gridwatch/internal/election"
	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/health"
	"github.com/gridwatch/gridwatch/internal/journal"
	"github.com/gridwatch/gridwatch/internal/probe"
	"github.com/gridwatch/gridwatch/internal/quorum"
	"github.com/gridwatch/gridwatch/internal/silence"
	"github.com/gridwatch/gridwatch/pkg/wire"
)

// Deps carries the components one poll cycle touches.
type Deps struct {
	Roster    *grid.Roster
	Engine    *health.Engine
	Prober    *probe.Prober
	Confirmer *quorum.Confirmer
	Announcer *announce.Announcer
	Silences  *silence.Book
	Journal   *journal.Journal // may be nil when no journal path is configured
}

// Poller drives the probe loop: every interval it probes all non-silenced
// peers concurrently, folds the results into the health engine, seeks
// corroboration for dying peers, and dispatches announcements for
// transitions this node is elected to announce.
type Poller struct {
	deps     Deps
	interval time.Duration
	checkURL string // empty disables the uplink check

	mu       sync.Mutex
	inFlight map[string]bool // suspects with a corroboration round running

	rounds sync.WaitGroup
}

// New returns a Poller. checkURL, when non-empty, is fetched before each
// cycle; a node that cannot reach it skips the cycle rather than condemn
// the whole grid over its own lost uplink.
func New(deps Deps, interval time.Duration, checkURL string) *Poller {
	return &Poller{
		deps:     deps,
		interval: interval,
		checkURL: checkURL,
		inFlight: make(map[string]bool),
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("poller: starting",
		"interval", p.interval, "peers", len(p.deps.Roster.Others()))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.rounds.Wait()
			slog.Info("poller: stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one poll pass: uplink check, silence bookkeeping, then the
// concurrent probe fan-out. It returns once every probe has been folded
// in; corroboration rounds keep running in the background.
func (p *Poller) cycle(ctx context.Context) {
	now := time.Now()

	if p.checkURL != "" && !p.deps.Prober.CheckConnectivity(ctx, p.checkURL) {
		slog.Warn("poller: uplink check failed, skipping cycle", "url", p.checkURL)
		return
	}

	p.deps.Silences.Expire(now)
	p.rebroadcast(ctx)

	var wg sync.WaitGroup
	for _, peer := range p.deps.Roster.Others() {
		if p.deps.Silences.Silenced(peer.Name, now) {
			slog.Debug("poller: peer silenced, skipping probe", "peer", peer.Name)
			continue
		}
		wg.Add(1)
		go func(peer grid.Peer) {
			defer wg.Done()
			p.probeOne(ctx, peer)
		}(peer)
	}
	wg.Wait()
}

func (p *Poller) probeOne(ctx context.Context, peer grid.Peer) {
	if err := p.deps.Prober.Probe(ctx, peer); err != nil {
		slog.Debug("poller: probe failed", "peer", peer.Name, "error", err)
		ev, corroborate := p.deps.Engine.ReportFailure(peer.Name, time.Now())
		p.emit(ev)
		if corroborate {
			p.triggerConfirm(ctx, peer.Name)
		}
		return
	}
	p.emit(p.deps.Engine.ReportSuccess(peer.Name, time.Now()))
}

// triggerConfirm starts a corroboration round for suspect unless one is
// already in flight. Rounds outlive the cycle that started them.
func (p *Poller) triggerConfirm(ctx context.Context, suspect string) {
	p.mu.Lock()
	if p.inFlight[suspect] {
		p.mu.Unlock()
		return
	}
	p.inFlight[suspect] = true
	p.mu.Unlock()

	p.rounds.Add(1)
	go func() {
		defer p.rounds.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, suspect)
			p.mu.Unlock()
		}()
		p.round(ctx, suspect)
	}()
}

// round asks the grid to corroborate a dying suspect. The status and epoch
// captured here travel with the verdict; ConfirmDead drops it if the
// record moved on while the round was in flight.
func (p *Poller) round(ctx context.Context, suspect string) {
	st, epoch, ok := p.deps.Engine.Observed(suspect)
	if !ok || st != health.StatusDying {
		return
	}

	v := p.deps.Confirmer.Confirm(ctx, suspect)
	if !v.Confirmed {
		slog.Info("poller: grid did not confirm death",
			"peer", suspect, "confirmers", len(v.Confirmers),
			"answered", v.Answered, "asked", v.Asked)
		return
	}
	p.emit(p.deps.Engine.ConfirmDead(suspect, v.Confirmers, epoch, time.Now()))
}

// rebroadcast pushes locally added silences to every peer. A silence only
// counts as broadcast once all peers have taken it; until then it is
// retried next cycle, and receivers deduplicate on ID.
func (p *Poller) rebroadcast(ctx context.Context) {
	for _, s := range p.deps.Silences.Pending() {
		req := wire.SilenceBroadcastRequest{
			ID:    s.ID,
			Peer:  s.Peer,
			Until: s.Until.UTC().Format(time.RFC3339),
		}
		delivered := true
		for _, peer := range p.deps.Roster.Others() {
			if err := p.deps.Prober.BroadcastSilence(ctx, peer, req); err != nil {
				slog.Warn("poller: silence broadcast failed",
					"peer", peer.Name, "silenced", s.Peer, "error", err)
				delivered = false
			}
		}
		if delivered {
			p.deps.Silences.MarkBroadcast(s.ID)
		}
	}
}

// emit journals a transition and, when it is announceable and this node
// wins the election among the members it currently sees alive, dispatches
// the announcement. Losing the election means standing down; the winner
// saw the same transition and announces it.
func (p *Poller) emit(ev *health.TransitionEvent) {
	if ev == nil {
		return
	}
	slog.Info("poller: status change",
		"peer", ev.Peer, "from", string(ev.From), "to", string(ev.To), "id", ev.ID)

	if p.deps.Journal != nil {
		if err := p.deps.Journal.Append(*ev); err != nil {
			slog.Warn("poller: journal append failed", "error", err)
		}
	}

	if ev.Direction() == "" {
		return
	}
	winner := election.Winner(p.deps.Engine.AliveNames())
	if winner != p.deps.Roster.Self() {
		slog.Info("poller: standing down from announcement",
			"peer", ev.Peer, "winner", winner)
		return
	}
	target, ok := p.deps.Roster.Peer(ev.Peer)
	if !ok {
		target = grid.Peer{Name: ev.Peer}
	}
	if err := p.deps.Announcer.Announce(*ev, target); err != nil {
		slog.Error("poller: announcement delivery failed",
			"peer", ev.Peer, "direction", ev.Direction(), "error", err)
	}
}
