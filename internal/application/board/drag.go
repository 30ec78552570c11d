package board

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/ports"
)

// DropResult reports what a drop committed
type DropResult struct {
	TaskID  uuid.UUID              `json:"task_id"`
	Deleted bool                   `json:"deleted"`
	Batch   []ports.BoardTaskOrder `json:"batch"`
}

// BeginDrag starts dragging a card
func (s *Store) BeginDrag(id uuid.UUID) error {
	s.mu.Lock()
	if err := s.drag.Begin(s.order, id); err != nil {
		s.mu.Unlock()
		if errors.Is(err, drag.ErrAlreadyDragging) {
			return ErrDragInProgress
		}
		return entities.ErrTaskNotFound
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// HoverTask moves the dragged card into the slot of another card
func (s *Store) HoverTask(over uuid.UUID) (bool, error) {
	return s.hover(drag.Target[entities.TaskStatus]{Kind: drag.TargetItem, ItemID: over})
}

// HoverColumn moves the dragged card to the end of a column
func (s *Store) HoverColumn(status entities.TaskStatus) (bool, error) {
	if !status.IsValid() {
		return false, entities.ErrValidation
	}
	return s.hover(drag.Target[entities.TaskStatus]{Kind: drag.TargetGroup, Group: status})
}

// HoverTrash marks the dragged card for deletion on drop
func (s *Store) HoverTrash() (bool, error) {
	return s.hover(drag.Target[entities.TaskStatus]{Kind: drag.TargetTrash})
}

// HoverNothing is the pointer leaving every target
func (s *Store) HoverNothing() (bool, error) {
	return s.hover(drag.Target[entities.TaskStatus]{Kind: drag.TargetNone})
}

func (s *Store) hover(t drag.Target[entities.TaskStatus]) (bool, error) {
	s.mu.Lock()
	changed, err := s.drag.Hover(t)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, drag.ErrNotDragging) {
			return false, err
		}
		return false, entities.ErrTaskNotFound
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

// Drop commits the drag. Over the trash the card is deleted; otherwise the
// speculative order becomes the committed one and every moved card is sent as
// a single reorder batch.
func (s *Store) Drop(ctx context.Context) (DropResult, error) {
	s.mu.Lock()
	res, err := s.drag.Drop()
	if err != nil {
		s.mu.Unlock()
		return DropResult{}, err
	}

	out := DropResult{TaskID: res.ItemID, Deleted: res.Deleted, Batch: toOrders(res.Batch)}
	s.order = res.Model
	if res.Deleted {
		s.dropTaskLocked(res.ItemID)
	}
	s.syncPositions()
	changed := res.Deleted || len(out.Batch) > 0
	snap := s.commit(changed)
	s.mu.Unlock()

	switch {
	case res.Deleted:
		s.dispatchDelete(ctx, res.ItemID, out.Batch)
	case len(out.Batch) > 0:
		s.dispatchReorder(ctx, res.ItemID, out.Batch)
	}
	s.publish(snap)

	s.logger.LogDrag(res.ItemID.String(), res.Deleted, len(out.Batch))
	return out, nil
}

// CancelDrag abandons the drag and restores the order it started from
func (s *Store) CancelDrag() error {
	s.mu.Lock()
	if err := s.drag.Cancel(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}
