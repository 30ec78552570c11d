package gantt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/ports"
)

// NewTask is the input for AddTask
type NewTask struct {
	Name         string         `json:"name" validate:"required,max=255"`
	Description  *string        `json:"description,omitempty"`
	RowID        *uuid.UUID     `json:"row_id,omitempty"`
	StartDate    time.Time      `json:"start_date" validate:"required"`
	EndDate      time.Time      `json:"end_date" validate:"required"`
	Color        entities.Color `json:"color,omitempty"`
	Progress     int            `json:"progress"`
	Dependencies []uuid.UUID    `json:"dependencies,omitempty"`
}

// TaskChanges is a partial edit of a bar. ClearRow moves it to the unassigned lane.
type TaskChanges = ports.TimelineTaskPatch

// MoveResult reports what a bar drag changed
type MoveResult struct {
	Task     *entities.TimelineTask `json:"task"`
	DayDelta int                    `json:"day_delta"`
	Moved    bool                   `json:"moved"`
}

func (s *Store) AddTask(ctx context.Context, in NewTask) (*entities.TimelineTask, error) {
	s.mu.Lock()
	if in.RowID != nil {
		if _, ok := s.rows[*in.RowID]; !ok {
			s.mu.Unlock()
			return nil, entities.ErrRowNotFound
		}
	}
	now := s.now()
	task := (&entities.TimelineTask{
		ID:           s.newID(),
		ProjectID:    s.projectID,
		RowID:        in.RowID,
		Name:         in.Name,
		Description:  in.Description,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Color:        in.Color,
		Progress:     in.Progress,
		Dependencies: in.Dependencies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}).Clone()
	task.ApplyDefaults()
	if err := task.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.tasks[task.ID] = task
	s.sequence = append(s.sequence, task.ID)
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

	s.logger.Infow("Timeline task created", "task_id", out.ID, "start", out.StartDate, "end", out.EndDate)
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, changes TaskChanges) (*entities.TimelineTask, error) {
	s.mu.Lock()
	out, snap, err := s.patchLocked(id, changes)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.sendPatch(ctx, id, changes, snap)
	return out, nil
}

// patchLocked validates and commits a patch in memory.
func (s *Store) patchLocked(id uuid.UUID, patch ports.TimelineTaskPatch) (*entities.TimelineTask, *Snapshot, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil, entities.ErrTaskNotFound
	}
	if !patch.ClearRow && patch.RowID != nil {
		if _, ok := s.rows[*patch.RowID]; !ok {
			return nil, nil, entities.ErrRowNotFound
		}
	}
	candidate := task.Clone()
	patch.Apply(candidate)
	if err := candidate.Validate(); err != nil {
		return nil, nil, err
	}
	candidate.UpdatedAt = s.now()
	s.tasks[id] = candidate
	return candidate.Clone(), s.commit(true), nil
}

func (s *Store) sendPatch(ctx context.Context, id uuid.UUID, patch ports.TimelineTaskPatch, snap *Snapshot) {
	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionUpdate, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			_, err := s.deps.Tasks.Update(ctx, id, s.projectID, patch)
			return err
		})
	s.publish(snap)
}

func (s *Store) RemoveTask(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	delete(s.tasks, id)
	for i, v := range s.sequence {
		if v == id {
			s.sequence = append(s.sequence[:i:i], s.sequence[i+1:]...)
			break
		}
	}
	if s.selected != nil && *s.selected == id {
		s.selected = nil
	}
	snap := s.commit(true)
	s.mu.Unlock()

	s.dispatch(ctx, coordinator.Operation{Action: coordinator.ActionDelete, Entity: entityTask, EntityID: id},
		func(ctx context.Context) error {
			return s.deps.Tasks.Delete(ctx, id, s.projectID)
		})
	s.publish(snap)
	return nil
}

// MoveBar applies a finished bar drag. dx is the horizontal pixel distance;
// overRow, when set, is the row the pointer was released over. Deltas that
// round to zero days leave the dates alone, and a drop that changes neither
// dates nor row is not persisted.
func (s *Store) MoveBar(ctx context.Context, id uuid.UUID, dx float64, overRow *uuid.UUID) (MoveResult, error) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return MoveResult{}, entities.ErrTaskNotFound
	}

	days := s.projection.DayDelta(dx, s.scale)
	var patch ports.TimelineTaskPatch
	if days != 0 {
		start, end := timeline.Shift(task.StartDate, task.EndDate, days)
		patch.StartDate, patch.EndDate = &start, &end
	}
	if overRow != nil && (task.RowID == nil || *task.RowID != *overRow) {
		row := *overRow
		patch.RowID = &row
	}
	if patch.StartDate == nil && patch.RowID == nil {
		out := task.Clone()
		s.mu.Unlock()
		return MoveResult{Task: out}, nil
	}

	out, snap, err := s.patchLocked(id, patch)
	s.mu.Unlock()
	if err != nil {
		return MoveResult{}, err
	}

	s.sendPatch(ctx, id, patch, snap)
	s.logger.Debugw("Bar moved", "task_id", id, "day_delta", days, "row_changed", patch.RowID != nil)
	return MoveResult{Task: out, DayDelta: days, Moved: true}, nil
}

// RowAt resolves a vertical pixel position to the row drawn there, if any.
func (s *Store) RowAt(y float64) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lanes := s.lanes.Group(s.projectID)
	i := s.projection.RowAt(y)
	if i < 0 || i >= len(lanes) {
		return nil, fmt.Errorf("%w: no row at y=%v", entities.ErrRowNotFound, y)
	}
	id := lanes[i]
	return &id, nil
}
