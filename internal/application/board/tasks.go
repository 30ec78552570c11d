package board

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/ports"
)

// NewTask is the input for AddTask. Zero-valued enums take their defaults.
type NewTask struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description *string             `json:"description,omitempty"`
	Status      entities.TaskStatus `json:"status,omitempty"`
	Priority    entities.Priority   `json:"priority,omitempty"`
	Color       entities.Color      `json:"color,omitempty"`
	Labels      []uuid.UUID         `json:"labels,omitempty"`
	StartDate   *time.Time          `json:"start_date,omitempty"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
}

// TaskChanges is a partial edit of a card. A new status moves the card to the
// end of that column; exact positions go through MoveTask or a drag.
type TaskChanges struct {
	Name        *string              `json:"name,omitempty"`
	Status      *entities.TaskStatus `json:"status,omitempty"`
	Description *string              `json:"description,omitempty"`
	Priority    *entities.Priority   `json:"priority,omitempty"`
	Color       *entities.Color      `json:"color,omitempty"`
	StartDate   *time.Time           `json:"start_date,omitempty"`
	EndDate     *time.Time           `json:"end_date,omitempty"`
}

func (c TaskChanges) fieldsChanged() bool {
	return c.Name != nil || c.Description != nil || c.Priority != nil || c.Color != nil || c.StartDate != nil || c.EndDate != nil
}

func (c TaskChanges) patch() ports.BoardTaskPatch {
	return ports.BoardTaskPatch{
		Name:        c.Name,
		Description: c.Description,
		Priority:    c.Priority,
		Color:       c.Color,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
	}
}

// AddTask validates and appends a card to the end of its column
func (s *Store) AddTask(ctx context.Context, in NewTask) (*entities.BoardTask, error) {
	s.mu.Lock()
	if s.dragging() {
		s.mu.Unlock()
		return nil, ErrDragInProgress
	}

	now := s.now()
	task := &entities.BoardTask{
		ID:          s.newID(),
		ProjectID:   s.projectID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Color:       in.Color,
		Labels:      append([]uuid.UUID(nil), in.Labels...),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	task.ApplyDefaults()
	if err := task.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for _, l := range task.Labels {
		if !s.hasLabel(l) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", entities.ErrLabelNotFound, l)
		}
	}

	idx, err := s.order.AppendToGroup(task.ID, task.Status)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	task = task.Clone()
	task.OrderIndex = idx
	s.tasks[task.ID] = task
	out := task.Clone()
	persisted := task.Clone()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionCreate, Entity: entityTask, EntityID: out.ID},
		func(ctx context.Context) error {
			_, err := s.deps.Tasks.Create(ctx, persisted)
			return err
		})
	s.publish(snap)

	s.logger.Infow("Board task created", "task_id", out.ID, "status", out.Status, "order_index", out.OrderIndex)
	return out, nil
}

// UpdateTask applies a partial edit. Field edits and a column change made
// together are persisted by a single job.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, changes TaskChanges) (*entities.BoardTask, error) {
	if changes.Status != nil && !changes.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", entities.ErrValidation, *changes.Status)
	}

	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, entities.ErrTaskNotFound
	}
	moving := changes.Status != nil && *changes.Status != task.Status
	if moving && s.dragging() {
		s.mu.Unlock()
		return nil, ErrDragInProgress
	}

	patch := changes.patch()
	candidate := task.Clone()
	patch.Apply(candidate)
	if err := candidate.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	candidate.UpdatedAt = s.now()
	s.tasks[id] = candidate

	var batch []ports.BoardTaskOrder
	if moving {
		before := s.order.Clone()
		if _, err := s.order.MoveAcrossGroups(id, *changes.Status, s.order.Len(*changes.Status)); err != nil {
			s.tasks[id] = task
			s.mu.Unlock()
			return nil, err
		}
		batch = toOrders(ordering.Diff(before, s.order))
		s.syncPositions()
	}
	out := candidate.Clone()
	snap := s.commit(true)
	s.mu.Unlock()

	updateFields := changes.fieldsChanged()
	if !updateFields && len(batch) == 0 {
		s.publish(snap)
		return out, nil
	}
	action := coordinator.ActionUpdate
	if !updateFields {
		action = coordinator.ActionReorder
	}
	s.dispatch(ctx, coordinator.Operation{Action: action, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			if updateFields {
				if _, err := s.deps.Tasks.Update(ctx, id, s.projectID, patch); err != nil {
					return err
				}
			}
			if len(batch) > 0 {
				return s.deps.Tasks.Reorder(ctx, s.projectID, batch)
			}
			return nil
		})
	s.publish(snap)
	return out, nil
}

// MoveTask moves a card to index in status outside of a pointer drag and
// returns the reconciliation batch that was sent.
func (s *Store) MoveTask(ctx context.Context, id uuid.UUID, status entities.TaskStatus, index int) ([]ports.BoardTaskOrder, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", entities.ErrValidation, status)
	}

	s.mu.Lock()
	if s.dragging() {
		s.mu.Unlock()
		return nil, ErrDragInProgress
	}
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return nil, entities.ErrTaskNotFound
	}

	before := s.order.Clone()
	if _, err := s.order.MoveAcrossGroups(id, status, index); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	batch := toOrders(ordering.Diff(before, s.order))
	if len(batch) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.syncPositions()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatchReorder(ctx, id, batch)
	s.publish(snap)
	return batch, nil
}

// RemoveTask deletes a card, its checklist and its label links. Siblings below it close the gap.
func (s *Store) RemoveTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if s.dragging() {
		s.mu.Unlock()
		return ErrDragInProgress
	}
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}

	before := s.order.Clone()
	s.order.Remove(id)
	batch := toOrders(ordering.Diff(before, s.order))
	s.dropTaskLocked(id)
	s.syncPositions()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatchDelete(ctx, id, batch)
	s.publish(snap)
	return nil
}

// ConvertToTimeline gives the card a date range and flags it as shown on the timeline
func (s *Store) ConvertToTimeline(ctx context.Context, id uuid.UUID, start, end time.Time) (*entities.BoardTask, error) {
	if err := entities.ValidateRange(start, end); err != nil {
		return nil, err
	}

	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, entities.ErrTaskNotFound
	}
	onTimeline := true
	patch := ports.BoardTaskPatch{StartDate: &start, EndDate: &end, OnTimeline: &onTimeline}
	patch.Apply(task)
	task.UpdatedAt = s.now()
	out := task.Clone()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionUpdate, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			_, err := s.deps.Tasks.Update(ctx, id, s.projectID, patch)
			return err
		})
	s.publish(snap)
	return out, nil
}

// AttachLabel links an existing label to a card
func (s *Store) AttachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	if !s.hasLabel(labelID) {
		s.mu.Unlock()
		return entities.ErrLabelNotFound
	}
	if task.HasLabel(labelID) {
		s.mu.Unlock()
		return nil
	}
	task.Labels = append(task.Labels, labelID)
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionCreate, Entity: entityLabel, EntityID: taskID},
		func(ctx context.Context) error {
			return s.deps.Labels.AttachToTask(ctx, s.projectID, taskID, labelID)
		})
	s.publish(snap)
	return nil
}

// DetachLabel removes the link between a label and a card
func (s *Store) DetachLabel(ctx context.Context, taskID, labelID uuid.UUID) error {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	if !task.HasLabel(labelID) {
		s.mu.Unlock()
		return nil
	}
	kept := task.Labels[:0:0]
	for _, l := range task.Labels {
		if l != labelID {
			kept = append(kept, l)
		}
	}
	task.Labels = kept
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionDelete, Entity: entityLabel, EntityID: taskID},
		func(ctx context.Context) error {
			return s.deps.Labels.DetachFromTask(ctx, s.projectID, taskID, labelID)
		})
	s.publish(snap)
	return nil
}

func (s *Store) hasLabel(id uuid.UUID) bool {
	for _, l := range s.labels {
		if l.ID == id {
			return true
		}
	}
	return false
}

// dropTaskLocked forgets a task and everything it owns. The caller has already
// removed it from the ordering.
func (s *Store) dropTaskLocked(id uuid.UUID) {
	delete(s.tasks, id)
	for _, itemID := range s.checklist.Group(id) {
		s.checklist.Remove(itemID)
		delete(s.items, itemID)
	}
	if s.selected != nil && *s.selected == id {
		s.selected = nil
	}
}

func (s *Store) dispatchReorder(ctx context.Context, id uuid.UUID, batch []ports.BoardTaskOrder) {
	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionReorder, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			return s.deps.Tasks.Reorder(ctx, s.projectID, batch)
		})
}

// dispatchDelete deletes the card and then renumbers the siblings that moved up, in one job.
func (s *Store) dispatchDelete(ctx context.Context, id uuid.UUID, batch []ports.BoardTaskOrder) {
	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionDelete, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			if err := s.deps.Tasks.Delete(ctx, id, s.projectID); err != nil {
				return err
			}
			if len(batch) == 0 {
				return nil
			}
			if err := s.deps.Tasks.Reorder(ctx, s.projectID, batch); err != nil {
				return fmt.Errorf("renumber after delete: %w", err)
			}
			return nil
		})
}
