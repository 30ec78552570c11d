package gantt

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/ports"
)

// NewRow is the input for AddRow
type NewRow struct {
	Name  string         `json:"name" validate:"required,max=255"`
	Color entities.Color `json:"color,omitempty"`
}

// Rows returns the lanes in display order
func (s *Store) Rows() []entities.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsLocked(s.lanes)
}

// AddRow appends a lane below the existing ones
func (s *Store) AddRow(ctx context.Context, in NewRow) (*entities.Row, error) {
	s.mu.Lock()
	if s.rowDragging() {
		s.mu.Unlock()
		return nil, ErrRowDragInProgress
	}
	row := &entities.Row{
		ID:        s.newID(),
		ProjectID: s.projectID,
		Name:      in.Name,
		Color:     in.Color,
		CreatedAt: s.now(),
	}
	row.ApplyDefaults()
	if err := row.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	idx, err := s.lanes.AppendToGroup(row.ID, s.projectID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if _, err := s.saved.AppendToGroup(row.ID, s.projectID); err != nil {
		s.lanes.Remove(row.ID)
		s.mu.Unlock()
		return nil, err
	}
	row.OrderIndex = idx
	s.rows[row.ID] = row
	out, persisted := *row, *row
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionCreate, Entity: entityRow, EntityID: row.ID},
		func(ctx context.Context) error {
			_, err := s.deps.Rows.Create(ctx, &persisted)
			return err
		})
	s.publish(snap)
	return &out, nil
}

// UpdateRow renames or recolors a lane. Order changes go through ReorderRows.
func (s *Store) UpdateRow(ctx context.Context, id uuid.UUID, name *string, color *entities.Color) (*entities.Row, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, entities.ErrRowNotFound
	}
	patch := ports.RowPatch{Name: name, Color: color}
	candidate := *row
	patch.Apply(&candidate)
	if err := candidate.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	*row = candidate
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionUpdate, Entity: entityRow, EntityID: id},
		func(ctx context.Context) error {
			_, err := s.deps.Rows.Update(ctx, id, s.projectID, patch)
			return err
		})
	s.publish(snap)
	return &candidate, nil
}

// RemoveRow deletes a lane. Its tasks stay on the timeline without a row and
// the lanes below it in the persisted order are renumbered.
func (s *Store) RemoveRow(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if s.rowDragging() {
		s.mu.Unlock()
		return ErrRowDragInProgress
	}
	if _, ok := s.rows[id]; !ok {
		s.mu.Unlock()
		return entities.ErrRowNotFound
	}

	// lanes below it in the saved order move up; the local order may differ
	before := s.saved.Clone()
	s.saved.Remove(id)
	shifted := ordering.Diff(before, s.saved)
	s.lanes.Remove(id)
	delete(s.rows, id)
	for _, t := range s.tasks {
		if t.RowID != nil && *t.RowID == id {
			t.RowID = nil
		}
	}
	s.syncRowPositions()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionDelete, Entity: entityRow, EntityID: id},
		func(ctx context.Context) error {
			if err := s.deps.Rows.Delete(ctx, id, s.projectID); err != nil {
				return err
			}
			for _, p := range shifted {
				idx := p.OrderIndex
				if _, err := s.deps.Rows.Update(ctx, p.ID, s.projectID, ports.RowPatch{OrderIndex: &idx}); err != nil {
					return err
				}
			}
			return nil
		})
	s.publish(snap)
	return nil
}

// ReorderRows moves the lane at position from to position to. Lane order is
// kept in memory only and is not written back.
func (s *Store) ReorderRows(from, to int) error {
	s.mu.Lock()
	lanes := s.lanes.Group(s.projectID)
	if from < 0 || from >= len(lanes) {
		s.mu.Unlock()
		return entities.ErrRowNotFound
	}
	if to < 0 {
		to = 0
	}
	if to >= len(lanes) {
		to = len(lanes) - 1
	}
	s.mu.Unlock()

	if err := s.BeginRowDrag(lanes[from]); err != nil {
		return err
	}
	if _, err := s.HoverRow(lanes[to]); err != nil {
		_ = s.CancelRowDrag()
		return err
	}
	_, err := s.DropRow()
	return err
}

// BeginRowDrag starts dragging a lane by its handle
func (s *Store) BeginRowDrag(id uuid.UUID) error {
	s.mu.Lock()
	if err := s.rowDrag.Begin(s.lanes, id); err != nil {
		s.mu.Unlock()
		if errors.Is(err, drag.ErrAlreadyDragging) {
			return ErrRowDragInProgress
		}
		return entities.ErrRowNotFound
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// HoverRow moves the dragged lane into the slot of another lane
func (s *Store) HoverRow(over uuid.UUID) (bool, error) {
	s.mu.Lock()
	changed, err := s.rowDrag.Hover(drag.Target[uuid.UUID]{Kind: drag.TargetItem, ItemID: over})
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, drag.ErrNotDragging) {
			return false, err
		}
		return false, entities.ErrRowNotFound
	}
	if !changed {
		s.mu.Unlock()
		return false, nil
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return true, nil
}

// DropRow commits the lane order and returns the lanes whose index changed
func (s *Store) DropRow() ([]ordering.Placement[uuid.UUID], error) {
	s.mu.Lock()
	res, err := s.rowDrag.Drop()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.lanes = res.Model
	s.syncRowPositions()
	snap := s.commit(len(res.Batch) > 0)
	s.mu.Unlock()

	s.publish(snap)
	if len(res.Batch) > 0 {
		s.logger.Debugw("Row order changed locally", "row_id", res.ItemID, "moved", len(res.Batch))
	}
	return res.Batch, nil
}

func (s *Store) CancelRowDrag() error {
	s.mu.Lock()
	if err := s.rowDrag.Cancel(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) rowsLocked(lanes *ordering.Model[uuid.UUID]) []entities.Row {
	ids := lanes.Group(s.projectID)
	out := make([]entities.Row, 0, len(ids))
	for i, id := range ids {
		r := *s.rows[id]
		r.OrderIndex = i
		out = append(out, r)
	}
	return out
}
