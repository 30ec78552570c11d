package board

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/ports"
)

// NewChecklistItem is the input for AddChecklistItem
type NewChecklistItem struct {
	Title     string     `json:"title" validate:"required,max=255"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// ChecklistChanges is a partial edit of a checklist item
type ChecklistChanges struct {
	Title     *string    `json:"title,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// LoadChecklist replaces the checklist of one card with persisted items
func (s *Store) LoadChecklist(taskID uuid.UUID, items []*entities.ChecklistItem) error {
	s.mu.Lock()
	if _, ok := s.tasks[taskID]; !ok {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}

	entries := make([]ordering.Entry[uuid.UUID], 0, len(items))
	loaded := make(map[uuid.UUID]*entities.ChecklistItem, len(items))
	for _, it := range items {
		entries = append(entries, ordering.Entry[uuid.UUID]{ID: it.ID, Group: taskID, OrderIndex: it.OrderIndex})
		loaded[it.ID] = it.Clone()
	}
	sorted, err := ordering.Load(entries)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	for _, id := range s.checklist.Group(taskID) {
		s.checklist.Remove(id)
		delete(s.items, id)
	}
	for i, id := range sorted.Group(taskID) {
		if _, err := s.checklist.AppendToGroup(id, taskID); err != nil {
			s.mu.Unlock()
			return err
		}
		item := loaded[id]
		item.TaskID = taskID
		item.OrderIndex = i
		s.items[id] = item
	}
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Checklist returns the items of a card in order
func (s *Store) Checklist(taskID uuid.UUID) ([]*entities.ChecklistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, entities.ErrTaskNotFound
	}
	ids := s.checklist.Group(taskID)
	out := make([]*entities.ChecklistItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id].Clone())
	}
	return out, nil
}

// AddChecklistItem appends an item to a card's checklist
func (s *Store) AddChecklistItem(ctx context.Context, taskID uuid.UUID, in NewChecklistItem) (*entities.ChecklistItem, error) {
	s.mu.Lock()
	if _, ok := s.tasks[taskID]; !ok {
		s.mu.Unlock()
		return nil, entities.ErrTaskNotFound
	}
	item := &entities.ChecklistItem{
		ID:        s.newID(),
		TaskID:    taskID,
		Title:     in.Title,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: s.now(),
	}
	item = item.Clone()
	if err := item.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	idx, err := s.checklist.AppendToGroup(item.ID, taskID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	item.OrderIndex = idx
	s.items[item.ID] = item
	out := item.Clone()
	persisted := item.Clone()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionCreate, Entity: entityChecklist, EntityID: out.ID},
		func(ctx context.Context) error {
			_, err := s.deps.Checklists.Create(ctx, persisted)
			return err
		})
	s.publish(snap)
	return out, nil
}

// UpdateChecklistItem applies a partial edit to an item
func (s *Store) UpdateChecklistItem(ctx context.Context, id uuid.UUID, changes ChecklistChanges) (*entities.ChecklistItem, error) {
	patch := ports.ChecklistPatch{
		Title:     changes.Title,
		Completed: changes.Completed,
		StartDate: changes.StartDate,
		EndDate:   changes.EndDate,
	}
	return s.patchChecklistItem(ctx, id, func(*entities.ChecklistItem) ports.ChecklistPatch { return patch })
}

// ToggleChecklistItem flips the completed flag
func (s *Store) ToggleChecklistItem(ctx context.Context, id uuid.UUID) (*entities.ChecklistItem, error) {
	return s.patchChecklistItem(ctx, id, func(item *entities.ChecklistItem) ports.ChecklistPatch {
		completed := !item.Completed
		return ports.ChecklistPatch{Completed: &completed}
	})
}

func (s *Store) patchChecklistItem(ctx context.Context, id uuid.UUID, build func(*entities.ChecklistItem) ports.ChecklistPatch) (*entities.ChecklistItem, error) {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, entities.ErrChecklistNotFound
	}
	patch := build(item)
	candidate := item.Clone()
	patch.Apply(candidate)
	if err := candidate.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.items[id] = candidate
	taskID := candidate.TaskID
	out := candidate.Clone()
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionUpdate, Entity: entityChecklist, EntityID: id},
		func(ctx context.Context) error {
			_, err := s.deps.Checklists.Update(ctx, id, taskID, patch)
			return err
		})
	s.publish(snap)
	return out, nil
}

// RemoveChecklistItem deletes an item and renumbers the items after it
func (s *Store) RemoveChecklistItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return entities.ErrChecklistNotFound
	}
	taskID := item.TaskID
	before := s.checklist.Clone()
	s.checklist.Remove(id)
	delete(s.items, id)
	shifted := ordering.Diff(before, s.checklist)
	for _, p := range shifted {
		s.items[p.ID].OrderIndex = p.OrderIndex
	}
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionDelete, Entity: entityChecklist, EntityID: id},
		func(ctx context.Context) error {
			if err := s.deps.Checklists.Delete(ctx, id, taskID); err != nil {
				return err
			}
			for _, p := range shifted {
				idx := p.OrderIndex
				if _, err := s.deps.Checklists.Update(ctx, p.ID, taskID, ports.ChecklistPatch{OrderIndex: &idx}); err != nil {
					return err
				}
			}
			return nil
		})
	s.publish(snap)
	return nil
}

func (s *Store) checklistProgress(taskID uuid.UUID) (done, total int) {
	for _, id := range s.checklist.Group(taskID) {
		total++
		if s.items[id].Completed {
			done++
		}
	}
	return done, total
}
