package election

import "testing"

func TestWinner_LexicographicFirst(t *testing.T) {
	if got := Winner([]string{"gamma", "alpha", "beta"}); got != "alpha" {
		t.Errorf("Winner() = %q, want alpha", got)
	}
}

func TestWinner_OrderIndependent(t *testing.T) {
	a := Winner([]string{"zulu", "kilo", "mike"})
	b := Winner([]string{"mike", "zulu", "kilo"})
	if a != b {
		t.Errorf("Winner() depends on input order: %q vs %q", a, b)
	}
}

func TestWinner_SingleSurvivor(t *testing.T) {
	if got := Winner([]string{"omega"}); got != "omega" {
		t.Errorf("Winner() = %q, want omega", got)
	}
}

func TestWinner_EmptySet(t *testing.T) {
	if got := Winner(nil); got != "" {
		t.Errorf("Winner(nil) = %q, want empty", got)
	}
}

func TestWinner_DoesNotMutateInput(t *testing.T) {
	in := []string{"zulu", "alpha"}
	Winner(in)
	if in[0] != "zulu" || in[1] != "alpha" {
		t.Errorf("Winner() reordered its input: %v", in)
	}
}
