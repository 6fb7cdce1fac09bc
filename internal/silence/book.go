package silence

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Silence mutes one peer until a deadline.
type Silence struct {
	ID        uint64
	Peer      string
	Until     time.Time
	Broadcast bool // true once every other member has acknowledged it
}

// Book is the node's set of silences. Safe for concurrent use.
type Book struct {
	mu       sync.Mutex
	silences map[uint64]*Silence
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{silences: make(map[uint64]*Silence)}
}

// Add creates a local silence for peer. It starts unacknowledged; the
// poll scheduler pushes it to the rest of the grid until every member
// has taken it.
func (b *Book) Add(peer string, until time.Time) Silence {
	b.mu.Lock()
	defer b.mu.Unlock()

	sl := &Silence{ID: rand.Uint64(), Peer: peer, Until: until}
	b.silences[sl.ID] = sl
	slog.Info("silence: created", "peer", peer, "until", until, "id", sl.ID)
	return *sl
}

// Merge stores a silence pushed by another member. Re-broadcasts of a
// known id are ignored. Merged silences are already spreading through
// the grid, so this node never re-broadcasts them.
func (b *Book) Merge(id uint64, peer string, until time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.silences[id]; ok {
		return false
	}
	b.silences[id] = &Silence{ID: id, Peer: peer, Until: until, Broadcast: true}
	slog.Info("silence: merged from grid", "peer", peer, "until", until, "id", id)
	return true
}

// Silenced reports whether peer is muted at now.
func (b *Book) Silenced(peer string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sl := range b.silences {
		if sl.Peer == peer && now.Before(sl.Until) {
			return true
		}
	}
	return false
}

// Pending returns the silences this node still needs to push to the
// grid, id-sorted.
func (b *Book) Pending() []Silence {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Silence
	for _, sl := range b.silences {
		if !sl.Broadcast {
			out = append(out, *sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkBroadcast records that every member has acknowledged the silence.
func (b *Book) MarkBroadcast(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sl, ok := b.silences[id]; ok {
		sl.Broadcast = true
	}
}

// Expire drops silences whose deadline has passed and returns how many
// were dropped.
func (b *Book) Expire(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	for id, sl := range b.silences {
		if !now.Before(sl.Until) {
			delete(b.silences, id)
			n++
		}
	}
	if n > 0 {
		slog.Info("silence: expired", "count", n)
	}
	return n
}
