package silence

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestBook_SilencedUntilDeadline(t *testing.T) {
	b := NewBook()
	b.Add("beta", baseTime.Add(time.Hour))

	if !b.Silenced("beta", baseTime) {
		t.Error("Silenced() before deadline: got false, want true")
	}
	if b.Silenced("beta", baseTime.Add(time.Hour)) {
		t.Error("Silenced() at deadline: got true, want false")
	}
	if b.Silenced("gamma", baseTime) {
		t.Error("Silenced() for an unrelated peer: got true, want false")
	}
}

func TestBook_MergeDeduplicatesByID(t *testing.T) {
	b := NewBook()

	if !b.Merge(7, "beta", baseTime.Add(time.Hour)) {
		t.Error("first Merge(): got false, want true")
	}
	if b.Merge(7, "beta", baseTime.Add(2*time.Hour)) {
		t.Error("repeat Merge() of the same id: got true, want false")
	}
}

func TestBook_PendingUntilMarked(t *testing.T) {
	b := NewBook()
	sl := b.Add("beta", baseTime.Add(time.Hour))

	pending := b.Pending()
	if len(pending) != 1 || pending[0].ID != sl.ID {
		t.Fatalf("Pending() = %v, want the new silence", pending)
	}

	b.MarkBroadcast(sl.ID)
	if got := b.Pending(); len(got) != 0 {
		t.Errorf("Pending() after MarkBroadcast: got %d, want 0", len(got))
	}
}

func TestBook_MergedSilencesAreNeverPending(t *testing.T) {
	b := NewBook()
	b.Merge(9, "beta", baseTime.Add(time.Hour))

	if got := b.Pending(); len(got) != 0 {
		t.Errorf("Pending() after Merge: got %d, want 0", len(got))
	}
}

func TestBook_ExpireDropsPastDeadlines(t *testing.T) {
	b := NewBook()
	b.Add("beta", baseTime.Add(time.Minute))
	b.Add("gamma", baseTime.Add(time.Hour))

	if n := b.Expire(baseTime.Add(30 * time.Minute)); n != 1 {
		t.Errorf("Expire() dropped %d, want 1", n)
	}
	if b.Silenced("beta", baseTime.Add(30*time.Minute)) {
		t.Error("expired silence still mutes its peer")
	}
	if !b.Silenced("gamma", baseTime.Add(30*time.Minute)) {
		t.Error("live silence was dropped")
	}
}
