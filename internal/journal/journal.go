package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/gridwatch/gridwatch/internal/health"
)

// defaultMaxEntries bounds how many transitions the journal keeps.
const defaultMaxEntries = 4096

// Entry is one persisted transition.
type Entry struct {
	ID          string    `json:"id"`
	Peer        string    `json:"peer"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	At          time.Time `json:"at"`
	ConfirmedBy []string  `json:"confirmed_by,omitempty"`
}

// Journal is an append-only, bounded transition log. Entries occupy the
// contiguous key range [first, last]; an empty journal has last < first.
// Safe for concurrent use.
type Journal struct {
	mu    sync.Mutex
	db    *leveldb.DB
	first uint64
	last  uint64
	max   int
}

// Open opens or creates a journal at path.
func Open(path string) (*Journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	j := &Journal{db: db, first: 1, max: defaultMaxEntries}
	iter := db.NewIterator(nil, nil)
	if iter.First() {
		j.first = binary.BigEndian.Uint64(iter.Key())
		iter.Last()
		j.last = binary.BigEndian.Uint64(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("journal: scan %s: %w", path, err)
	}
	return j, nil
}

// Close flushes and closes the backing store.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append persists ev. Once the journal exceeds its bound the oldest
// entries are dropped.
func (j *Journal) Append(ev health.TransitionEvent) error {
	entry := Entry{
		ID:          ev.ID,
		Peer:        ev.Peer,
		From:        string(ev.From),
		To:          string(ev.To),
		At:          ev.At,
		ConfirmedBy: ev.ConfirmedBy,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("journal: encode event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.Put(key(j.last+1), value, nil); err != nil {
		return fmt.Errorf("journal: write event: %w", err)
	}
	j.last++

	for j.last-j.first+1 > uint64(j.max) {
		if err := j.db.Delete(key(j.first), nil); err != nil {
			return fmt.Errorf("journal: prune entry: %w", err)
		}
		j.first++
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, n)
	iter := j.db.NewIterator(nil, nil)
	defer iter.Release()

	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("journal: decode entry: %w", err)
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("journal: iterate: %w", err)
	}
	return out, nil
}

// key encodes a sequence number as a big-endian LevelDB key.
func key(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}
