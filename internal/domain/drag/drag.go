// Package drag turns a stream of pointer hovers into ordering operations.
//
// A drag snapshots the committed model at Begin and mutates a working copy
// while hovering. Drop hands back the working copy together with the
// reconciliation batch, Cancel throws the copy away.
package drag

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/ordering"
)

var (
	ErrNotDragging     = errors.New("drag: no drag in progress")
	ErrAlreadyDragging = errors.New("drag: drag already in progress")
	ErrUnknownItem     = errors.New("drag: unknown item")
)

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetItem
	TargetGroup
	TargetTrash
)

// Target is what the pointer is currently over.
type Target[G comparable] struct {
	Kind   TargetKind
	ItemID uuid.UUID
	Group  G
}

// Result is what a drop commits.
type Result[G comparable] struct {
	ItemID  uuid.UUID
	Deleted bool
	// Model replaces the committed model.
	Model *ordering.Model[G]
	// Batch lists every item whose position differs from the drag start.
	Batch []ordering.Placement[G]
}

// Machine tracks at most one drag.
type Machine[G comparable] struct {
	state         State
	active        uuid.UUID
	anchor        *ordering.Model[G]
	working       *ordering.Model[G]
	pendingDelete bool
	last          Target[G]
	hasLast       bool
}

func NewMachine[G comparable]() *Machine[G] {
	return &Machine[G]{}
}

func (m *Machine[G]) State() State {
	return m.state
}

// Active returns the dragged item while a drag is in progress.
func (m *Machine[G]) Active() (uuid.UUID, bool) {
	return m.active, m.state == Dragging
}

// PendingDelete reports whether the drag is currently over the trash.
func (m *Machine[G]) PendingDelete() bool {
	return m.state == Dragging && m.pendingDelete
}

// View is the model renderers should show: the working copy mid-drag.
func (m *Machine[G]) View() *ordering.Model[G] {
	return m.working
}

// Begin starts dragging id. The committed model is kept as the anchor and
// must not be mutated until the drag ends.
func (m *Machine[G]) Begin(committed *ordering.Model[G], id uuid.UUID) error {
	if m.state == Dragging {
		return ErrAlreadyDragging
	}
	if !committed.Contains(id) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	m.state = Dragging
	m.active = id
	m.anchor = committed
	m.working = committed.Clone()
	m.pendingDelete = false
	m.hasLast = false
	return nil
}

// Hover classifies the target and applies a speculative move to the working
// copy. It reports whether anything observable changed.
func (m *Machine[G]) Hover(t Target[G]) (bool, error) {
	if m.state != Dragging {
		return false, ErrNotDragging
	}
	if m.hasLast && m.last == t {
		return false, nil
	}
	m.last, m.hasLast = t, true

	wasPending := m.pendingDelete
	switch t.Kind {
	case TargetTrash:
		m.pendingDelete = true
		return !wasPending, nil
	case TargetNone:
		m.pendingDelete = false
		return wasPending, nil
	}
	m.pendingDelete = false

	moved, err := m.apply(t)
	if err != nil {
		return wasPending, err
	}
	return moved || wasPending, nil
}

func (m *Machine[G]) apply(t Target[G]) (bool, error) {
	current, _, _ := m.working.Position(m.active)

	switch t.Kind {
	case TargetItem:
		if t.ItemID == m.active {
			return false, nil
		}
		group, index, ok := m.working.Position(t.ItemID)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownItem, t.ItemID)
		}
		if group == current {
			return m.working.MoveWithinGroup(m.active, index)
		}
		return m.working.MoveAcrossGroups(m.active, group, index)
	case TargetGroup:
		if t.Group == current {
			return false, nil
		}
		return m.working.MoveAcrossGroups(m.active, t.Group, m.working.Len(t.Group))
	}
	return false, nil
}

// Drop ends the drag and commits either the speculative order or, over the
// trash, the removal of the dragged item.
func (m *Machine[G]) Drop() (Result[G], error) {
	if m.state != Dragging {
		return Result[G]{}, ErrNotDragging
	}
	res := Result[G]{ItemID: m.active}

	if m.pendingDelete {
		committed := m.anchor.Clone()
		committed.Remove(m.active)
		res.Deleted = true
		res.Model = committed
		res.Batch = ordering.Diff(m.anchor, committed)
	} else {
		res.Model = m.working
		res.Batch = ordering.Diff(m.anchor, m.working)
	}

	m.reset()
	return res, nil
}

// Cancel ends the drag and discards every speculative move.
func (m *Machine[G]) Cancel() error {
	if m.state != Dragging {
		return ErrNotDragging
	}
	m.reset()
	return nil
}

func (m *Machine[G]) reset() {
	m.state = Idle
	m.active = uuid.Nil
	m.anchor = nil
	m.working = nil
	m.pendingDelete = false
	m.hasLast = false
}
