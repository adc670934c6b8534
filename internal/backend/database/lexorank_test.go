package database

import (
	"sort"
	"testing"
)

func TestAfter(t *testing.T) {
	tests := []struct {
		prev, want string
	}{
		{"", "U"},
		{"U", "V"},
		{"Uy", "V"},
		{"xz", "y"},
		{"zz", "zzU"},
	}
	for _, tt := range tests {
		got := After(tt.prev)
		if got != tt.want {
			t.Errorf("After(%q) = %q, want %q", tt.prev, got, tt.want)
		}
		if tt.prev != "" && !(got > tt.prev) {
			t.Errorf("After(%q) = %q does not sort after input", tt.prev, got)
		}
	}
}

func TestBefore_RepeatedStaysOrdered(t *testing.T) {
	rank := Before("")
	for i := 0; i < 200; i++ {
		next := Before(rank)
		if !(next < rank) {
			t.Fatalf("iteration %d: Before(%q) = %q, want strictly smaller", i, rank, next)
		}
		rank = next
	}
}

func TestBetweenUnboundedUpper(t *testing.T) {
	if got := Between("U", ""); got != "V" {
		t.Fatalf("Between(\"U\", \"\") = %q, want %q", got, "V")
	}
}

func TestBetweenBoundedMidpoint(t *testing.T) {
	got := Between("A", "C")
	if !(got > "A" && got < "C") {
		t.Fatalf("Between(\"A\",\"C\") = %q, want strictly between A and C", got)
	}
	got = Between("A", "B")
	if !(got > "A" && got < "B") {
		t.Fatalf("Between(\"A\",\"B\") = %q, want strictly between A and B", got)
	}
}

func TestIsBetween(t *testing.T) {
	tests := []struct {
		prev, rank, next string
		want             bool
	}{
		{"A", "B", "C", true},
		{"A", "A", "C", false},
		{"", "A", "B", true},
		{"A", "B", "", true},
		{"", "A", "", false},
	}
	for _, tt := range tests {
		if got := IsBetween(tt.prev, tt.rank, tt.next); got != tt.want {
			t.Errorf("IsBetween(%q, %q, %q) = %v, want %v", tt.prev, tt.rank, tt.next, got, tt.want)
		}
	}
}

func TestReorder_NoChange(t *testing.T) {
	existing := map[string]string{"a": "A", "b": "B", "c": "C"}
	if upd := Reorder(existing, []string{"a", "b", "c"}); len(upd) != 0 {
		t.Fatalf("expected no updates, got: %+v", upd)
	}
}

func TestReorder_SwapAdjacent(t *testing.T) {
	existing := map[string]string{"a": "A", "b": "B", "c": "C"}
	upd := Reorder(existing, []string{"b", "a", "c"})
	if len(upd) == 0 {
		t.Fatalf("expected at least one update, got none")
	}
	assertOrder(t, existing, upd, []string{"b", "a", "c"})
}

func TestReorder_InsertAtFrontWithEmptyRank(t *testing.T) {
	existing := map[string]string{"a": "B", "b": "C", "c": "D", "d": ""}
	upd := Reorder(existing, []string{"d", "a", "b", "c"})
	if _, ok := upd["d"]; !ok {
		t.Fatalf("expected an update for 'd', got: %+v", upd)
	}
	assertOrder(t, existing, upd, []string{"d", "a", "b", "c"})
}

func TestReorder_MoveDownOne(t *testing.T) {
	existing := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	order := []string{"a", "c", "b", "d"}
	upd := Reorder(existing, order)
	if _, ok := upd["c"]; !ok {
		t.Fatalf("expected an update for 'c', got: %+v", upd)
	}
	assertOrder(t, existing, upd, order)
}

// assertOrder applies updates to existing and checks that sorting by rank
// yields want.
func assertOrder(t *testing.T, existing, updates map[string]string, want []string) {
	t.Helper()
	final := make(map[string]string, len(existing))
	for id, r := range existing {
		final[id] = r
	}
	for id, r := range updates {
		final[id] = r
	}
	ids := make([]string, 0, len(final))
	for id := range final {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return final[ids[i]] < final[ids[j]] })
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("final order %v, want %v (ranks %+v)", ids, want, final)
		}
	}
}
