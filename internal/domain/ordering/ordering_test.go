package ordering

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func mustLoad(t *testing.T, entries []Entry[string]) *Model[string] {
	t.Helper()
	m, err := Load(entries)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func assertGroup(t *testing.T, m *Model[string], g string, want ...uuid.UUID) {
	t.Helper()
	got := m.Group(g)
	if len(got) != len(want) {
		t.Fatalf("group %q: expected %d items, got %d", g, len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("group %q index %d: expected %s, got %s", g, i, want[i], got[i])
		}
		if _, idx, _ := m.Position(want[i]); idx != i {
			t.Fatalf("group %q: %s reports index %d, want %d", g, want[i], idx, i)
		}
	}
}

func assertDense(t *testing.T, m *Model[string]) {
	t.Helper()
	seen := map[string]map[int]bool{}
	for _, e := range m.Entries() {
		if seen[e.Group] == nil {
			seen[e.Group] = map[int]bool{}
		}
		if seen[e.Group][e.OrderIndex] {
			t.Fatalf("duplicate index %d in group %q", e.OrderIndex, e.Group)
		}
		seen[e.Group][e.OrderIndex] = true
	}
	for g, idx := range seen {
		for i := 0; i < len(idx); i++ {
			if !idx[i] {
				t.Fatalf("group %q has a gap at %d", g, i)
			}
		}
		if m.Len(g) != len(idx) {
			t.Fatalf("group %q length mismatch", g)
		}
	}
}

func TestMoveWithinGroupToFront(t *testing.T) {
	id := ids(3)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "todo", OrderIndex: 0},
		{ID: id[1], Group: "todo", OrderIndex: 1},
		{ID: id[2], Group: "todo", OrderIndex: 2},
	})

	moved, err := m.MoveWithinGroup(id[2], 0)
	if err != nil || !moved {
		t.Fatalf("MoveWithinGroup: moved=%v err=%v", moved, err)
	}
	assertGroup(t, m, "todo", id[2], id[0], id[1])
}

func TestMoveAcrossGroupsIntoEmpty(t *testing.T) {
	id := ids(3)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "todo", OrderIndex: 0},
		{ID: id[1], Group: "todo", OrderIndex: 1},
		{ID: id[2], Group: "todo", OrderIndex: 2},
	})

	if _, err := m.MoveAcrossGroups(id[0], "doing", 0); err != nil {
		t.Fatalf("MoveAcrossGroups: %v", err)
	}
	assertGroup(t, m, "todo", id[1], id[2])
	assertGroup(t, m, "doing", id[0])
}

func TestMoveWithinGroupCurrentIndexIsNoop(t *testing.T) {
	id := ids(3)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "a", OrderIndex: 0},
		{ID: id[1], Group: "a", OrderIndex: 1},
		{ID: id[2], Group: "a", OrderIndex: 2},
	})
	before := m.Clone()

	moved, err := m.MoveWithinGroup(id[1], 1)
	if err != nil {
		t.Fatalf("MoveWithinGroup: %v", err)
	}
	if moved {
		t.Fatal("expected no move")
	}
	if diff := Diff(before, m); len(diff) != 0 {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
}

func TestInsertDisplacesEarlierOccupant(t *testing.T) {
	m := New[string]()
	first, second := uuid.New(), uuid.New()
	if _, err := m.Insert(first, "a", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(second, "a", 0); err != nil {
		t.Fatal(err)
	}
	assertGroup(t, m, "a", second, first)
}

func TestLoadKeepsInputOrderOnTies(t *testing.T) {
	id := ids(4)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "a", OrderIndex: 5},
		{ID: id[1], Group: "a", OrderIndex: 2},
		{ID: id[2], Group: "a", OrderIndex: 2},
		{ID: id[3], Group: "a", OrderIndex: 9},
	})
	assertGroup(t, m, "a", id[1], id[2], id[0], id[3])
}

func TestLoadRejectsDuplicates(t *testing.T) {
	id := uuid.New()
	_, err := Load([]Entry[string]{{ID: id, Group: "a"}, {ID: id, Group: "b"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestTargetsAreClamped(t *testing.T) {
	id := ids(3)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "a", OrderIndex: 0},
		{ID: id[1], Group: "a", OrderIndex: 1},
		{ID: id[2], Group: "b", OrderIndex: 0},
	})
	if _, err := m.MoveWithinGroup(id[0], 99); err != nil {
		t.Fatal(err)
	}
	assertGroup(t, m, "a", id[1], id[0])

	if _, err := m.MoveAcrossGroups(id[2], "a", -4); err != nil {
		t.Fatal(err)
	}
	assertGroup(t, m, "a", id[2], id[1], id[0])
	if m.Len("b") != 0 {
		t.Fatalf("expected b to be empty")
	}
}

func TestUnknownItem(t *testing.T) {
	m := New[string]()
	if _, err := m.MoveWithinGroup(uuid.New(), 0); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if m.Remove(uuid.New()) {
		t.Fatal("Remove of unknown item reported success")
	}
}

func TestDiffReportsShiftedSiblings(t *testing.T) {
	id := ids(4)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "todo", OrderIndex: 0},
		{ID: id[1], Group: "todo", OrderIndex: 1},
		{ID: id[2], Group: "todo", OrderIndex: 2},
		{ID: id[3], Group: "doing", OrderIndex: 0},
	})
	before := m.Clone()

	if _, err := m.MoveAcrossGroups(id[1], "doing", 0); err != nil {
		t.Fatal(err)
	}
	diff := Diff(before, m)

	got := map[uuid.UUID]Placement[string]{}
	for _, p := range diff {
		got[p.ID] = p
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 placements, got %+v", diff)
	}
	if p := got[id[1]]; p.Group != "doing" || p.OrderIndex != 0 || !p.GroupChanged {
		t.Fatalf("unexpected placement for moved item: %+v", p)
	}
	if p := got[id[3]]; p.OrderIndex != 1 || p.GroupChanged {
		t.Fatalf("unexpected placement for displaced item: %+v", p)
	}
	if p := got[id[2]]; p.OrderIndex != 1 || p.Group != "todo" {
		t.Fatalf("unexpected placement for gap closer: %+v", p)
	}
	if _, ok := got[id[0]]; ok {
		t.Fatal("unchanged item reported")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	id := ids(2)
	m := mustLoad(t, []Entry[string]{
		{ID: id[0], Group: "a", OrderIndex: 0},
		{ID: id[1], Group: "a", OrderIndex: 1},
	})
	c := m.Clone()
	if _, err := c.MoveWithinGroup(id[1], 0); err != nil {
		t.Fatal(err)
	}
	assertGroup(t, m, "a", id[0], id[1])
	assertGroup(t, c, "a", id[1], id[0])
}

func TestRandomOperationsStayDense(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	groups := []string{"todo", "doing", "review", "done"}
	m := New[string]()
	var live []uuid.UUID

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(5); {
		case op == 0 || len(live) == 0:
			id := uuid.New()
			if _, err := m.Insert(id, groups[rng.Intn(len(groups))], rng.Intn(6)); err != nil {
				t.Fatal(err)
			}
			live = append(live, id)
		case op == 1:
			i := rng.Intn(len(live))
			m.Remove(live[i])
			live = append(live[:i], live[i+1:]...)
		case op == 2:
			if _, err := m.MoveWithinGroup(live[rng.Intn(len(live))], rng.Intn(8)-1); err != nil {
				t.Fatal(err)
			}
		default:
			if _, err := m.MoveAcrossGroups(live[rng.Intn(len(live))], groups[rng.Intn(len(groups))], rng.Intn(8)-1); err != nil {
				t.Fatal(err)
			}
		}
		assertDense(t, m)
		if m.Size() != len(live) {
			t.Fatalf("size %d, expected %d", m.Size(), len(live))
		}
	}
}
