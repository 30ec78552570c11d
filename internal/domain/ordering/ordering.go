// Package ordering keeps a dense total order of items inside each group.
//
// Positions are never stored separately from the order itself: an item's
// index is its offset in the group's slice, so every group always holds
// exactly the indices 0..n-1.
package ordering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrUnknownItem = errors.New("ordering: unknown item")
	ErrDuplicateID = errors.New("ordering: item already present")
)

// Entry is an item's position.
type Entry[G comparable] struct {
	ID         uuid.UUID
	Group      G
	OrderIndex int
}

// Placement is one record of a reconciliation batch.
type Placement[G comparable] struct {
	ID           uuid.UUID
	Group        G
	OrderIndex   int
	GroupChanged bool
}

// Model is an ordered collection of items partitioned by group key.
type Model[G comparable] struct {
	groups map[G][]uuid.UUID
	where  map[uuid.UUID]G
	keys   []G
}

func New[G comparable]() *Model[G] {
	return &Model[G]{
		groups: make(map[G][]uuid.UUID),
		where:  make(map[uuid.UUID]G),
	}
}

// Load builds a model from persisted positions. Entries are stable-sorted by
// their requested index so equal indices keep input order, then renumbered.
func Load[G comparable](entries []Entry[G]) (*Model[G], error) {
	sorted := make([]Entry[G], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	m := New[G]()
	for _, e := range sorted {
		if _, ok := m.where[e.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		m.touch(e.Group)
		m.groups[e.Group] = append(m.groups[e.Group], e.ID)
		m.where[e.ID] = e.Group
	}
	return m, nil
}

// DeclareGroup registers a group key so it is reported even while empty.
func (m *Model[G]) DeclareGroup(g G) {
	m.touch(g)
}

func (m *Model[G]) touch(g G) {
	if _, ok := m.groups[g]; ok {
		return
	}
	m.groups[g] = nil
	m.keys = append(m.keys, g)
}

// Keys returns the known group keys in first-seen order.
func (m *Model[G]) Keys() []G {
	return append([]G(nil), m.keys...)
}

func (m *Model[G]) Len(g G) int {
	return len(m.groups[g])
}

// Size is the number of items across all groups.
func (m *Model[G]) Size() int {
	return len(m.where)
}

func (m *Model[G]) Contains(id uuid.UUID) bool {
	_, ok := m.where[id]
	return ok
}

// Position returns the item's group and index.
func (m *Model[G]) Position(id uuid.UUID) (G, int, bool) {
	g, ok := m.where[id]
	if !ok {
		var zero G
		return zero, 0, false
	}
	return g, indexOf(m.groups[g], id), true
}

// Group returns a copy of the ids in a group, in order.
func (m *Model[G]) Group(g G) []uuid.UUID {
	return append([]uuid.UUID(nil), m.groups[g]...)
}

// Entries lists every item, grouped in key order and sorted by index.
func (m *Model[G]) Entries() []Entry[G] {
	out := make([]Entry[G], 0, len(m.where))
	for _, g := range m.keys {
		for i, id := range m.groups[g] {
			out = append(out, Entry[G]{ID: id, Group: g, OrderIndex: i})
		}
	}
	return out
}

// Clone returns an independent copy.
func (m *Model[G]) Clone() *Model[G] {
	c := &Model[G]{
		groups: make(map[G][]uuid.UUID, len(m.groups)),
		where:  make(map[uuid.UUID]G, len(m.where)),
		keys:   append([]G(nil), m.keys...),
	}
	for g, ids := range m.groups {
		c.groups[g] = append([]uuid.UUID(nil), ids...)
	}
	for id, g := range m.where {
		c.where[id] = g
	}
	return c
}

// AppendToGroup places a new item at the end of its group and returns its index.
func (m *Model[G]) AppendToGroup(id uuid.UUID, g G) (int, error) {
	if _, ok := m.where[id]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	m.touch(g)
	m.groups[g] = append(m.groups[g], id)
	m.where[id] = g
	return len(m.groups[g]) - 1, nil
}

// Insert places a new item at index, clamped into range. The current occupant
// of that slot and everything after it shift down by one.
func (m *Model[G]) Insert(id uuid.UUID, g G, index int) (int, error) {
	if _, ok := m.where[id]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	m.touch(g)
	index = clamp(index, 0, len(m.groups[g]))
	m.groups[g] = insertAt(m.groups[g], index, id)
	m.where[id] = g
	return index, nil
}

// MoveWithinGroup reinserts the item at target within its own group.
// It reports whether anything moved.
func (m *Model[G]) MoveWithinGroup(id uuid.UUID, target int) (bool, error) {
	g, ok := m.where[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	ids := m.groups[g]
	from := indexOf(ids, id)
	target = clamp(target, 0, len(ids)-1)
	if from == target {
		return false, nil
	}
	ids = removeAt(ids, from)
	m.groups[g] = insertAt(ids, target, id)
	return true, nil
}

// MoveAcrossGroups removes the item from its group, closing the gap, and
// inserts it into newGroup at target. Moving into the item's own group is a
// MoveWithinGroup.
func (m *Model[G]) MoveAcrossGroups(id uuid.UUID, newGroup G, target int) (bool, error) {
	g, ok := m.where[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if g == newGroup {
		return m.MoveWithinGroup(id, target)
	}
	m.groups[g] = removeAt(m.groups[g], indexOf(m.groups[g], id))
	m.touch(newGroup)
	target = clamp(target, 0, len(m.groups[newGroup]))
	m.groups[newGroup] = insertAt(m.groups[newGroup], target, id)
	m.where[id] = newGroup
	return true, nil
}

// Remove drops the item and closes the gap behind it.
func (m *Model[G]) Remove(id uuid.UUID) bool {
	g, ok := m.where[id]
	if !ok {
		return false
	}
	m.groups[g] = removeAt(m.groups[g], indexOf(m.groups[g], id))
	delete(m.where, id)
	return true
}

// Diff lists every item of after whose group or index differs from before.
// Items missing from before are reported as placements too.
func Diff[G comparable](before, after *Model[G]) []Placement[G] {
	var out []Placement[G]
	for _, e := range after.Entries() {
		g, idx, ok := before.Position(e.ID)
		if ok && g == e.Group && idx == e.OrderIndex {
			continue
		}
		out = append(out, Placement[G]{
			ID:           e.ID,
			Group:        e.Group,
			OrderIndex:   e.OrderIndex,
			GroupChanged: !ok || g != e.Group,
		})
	}
	return out
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func insertAt(ids []uuid.UUID, i int, id uuid.UUID) []uuid.UUID {
	ids = append(ids, uuid.Nil)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeAt(ids []uuid.UUID, i int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
