package journal

import (
	"fmt"
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/internal/health"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// event builds a distinct transition for the given sequence number.
func event(n int) health.TransitionEvent {
	return health.TransitionEvent{
		ID:   fmt.Sprintf("beta:alive>dying:%d", n),
		Peer: "beta",
		From: health.StatusAlive,
		To:   health.StatusDying,
		At:   baseTime.Add(time.Duration(n) * time.Second),
	}
}

// openTestJournal opens a journal in a fresh temp dir.
func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := t.TempDir() + "/journal"
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { j.Close() }) //nolint:errcheck
	return j, path
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	j, _ := openTestJournal(t)
	for i := 1; i <= 3; i++ {
		if err := j.Append(event(i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	got, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent(): unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2): got %d entries, want 2", len(got))
	}
	if got[0].ID != event(3).ID || got[1].ID != event(2).ID {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
}

func TestJournal_SurvivesReopen(t *testing.T) {
	j, path := openTestJournal(t)
	j.Append(event(1)) //nolint:errcheck
	j.Append(event(2)) //nolint:errcheck
	if err := j.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close() //nolint:errcheck

	reopened.Append(event(3)) //nolint:errcheck
	got, err := reopened.Recent(10)
	if err != nil {
		t.Fatalf("Recent(): %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries after reopen = %d, want 3", len(got))
	}
	if got[0].ID != event(3).ID {
		t.Errorf("newest = %s, want %s", got[0].ID, event(3).ID)
	}
}

func TestJournal_PrunesOldest(t *testing.T) {
	j, _ := openTestJournal(t)
	j.max = 3
	for i := 1; i <= 5; i++ {
		if err := j.Append(event(i)); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	got, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent(): %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3 after pruning", len(got))
	}
	if got[2].ID != event(3).ID {
		t.Errorf("oldest kept = %s, want %s", got[2].ID, event(3).ID)
	}
}

func TestJournal_RecentOnEmpty(t *testing.T) {
	j, _ := openTestJournal(t)
	got, err := j.Recent(5)
	if err != nil {
		t.Fatalf("Recent() on empty journal: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries = %d, want 0", len(got))
	}
}

func TestJournal_PreservesEventFields(t *testing.T) {
	j, _ := openTestJournal(t)
	ev := health.TransitionEvent{
		ID:          "beta:dying>dead:4",
		Peer:        "beta",
		From:        health.StatusDying,
		To:          health.StatusDead,
		At:          baseTime,
		ConfirmedBy: []string{"gamma", "delta"},
	}
	if err := j.Append(ev); err != nil {
		t.Fatalf("Append(): %v", err)
	}

	got, err := j.Recent(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent(): %v, %d entries", err, len(got))
	}
	e := got[0]
	if e.From != "dying" || e.To != "dead" {
		t.Errorf("transition = %s>%s, want dying>dead", e.From, e.To)
	}
	if !e.At.Equal(baseTime) {
		t.Errorf("at = %v, want %v", e.At, baseTime)
	}
	if len(e.ConfirmedBy) != 2 {
		t.Errorf("confirmed_by = %v, want 2 names", e.ConfirmedBy)
	}
}
