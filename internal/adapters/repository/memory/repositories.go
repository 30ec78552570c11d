package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/ports"
)

type projectRepo struct{ s *Store }

func (r projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Project, error) {
	if err := r.s.begin(ctx, "projects.get", id); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	p := *r.s.projects[id]
	return &p, nil
}

type boardTaskRepo struct{ s *Store }

func (r boardTaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.BoardTask, error) {
	if err := r.s.begin(ctx, "board_tasks.list", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.s.listBoardTasks(projectID), nil
}

func (r boardTaskRepo) Create(ctx context.Context, task *entities.BoardTask) (*entities.BoardTask, error) {
	if err := r.s.begin(ctx, "board_tasks.create", task.ProjectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.boardTasks[task.ID]; ok {
		return nil, fmt.Errorf("%w: task %s already exists", entities.ErrValidation, task.ID)
	}
	for _, l := range task.Labels {
		if lb, ok := r.s.labels[l]; !ok || lb.ProjectID != task.ProjectID {
			return nil, entities.ErrLabelNotFound
		}
	}
	stored := task.Clone()
	r.s.boardTasks[task.ID] = stored
	return stored.Clone(), nil
}

func (r boardTaskRepo) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.BoardTaskPatch) (*entities.BoardTask, error) {
	if err := r.s.begin(ctx, "board_tasks.update", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.boardTasks[id]
	if !ok || t.ProjectID != projectID {
		return nil, entities.ErrTaskNotFound
	}
	patch.Apply(t)
	t.UpdatedAt = r.s.now()
	return t.Clone(), nil
}

func (r boardTaskRepo) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := r.s.begin(ctx, "board_tasks.delete", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.boardTasks[id]
	if !ok || t.ProjectID != projectID {
		return entities.ErrTaskNotFound
	}
	delete(r.s.boardTasks, id)
	for cid, c := range r.s.checklist {
		if c.TaskID == id {
			delete(r.s.checklist, cid)
		}
	}
	return nil
}

// Reorder applies the batch all-or-nothing
func (r boardTaskRepo) Reorder(ctx context.Context, projectID uuid.UUID, orders []ports.BoardTaskOrder) error {
	if err := r.s.begin(ctx, "board_tasks.reorder", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	for _, o := range orders {
		t, ok := r.s.boardTasks[o.ID]
		if !ok || t.ProjectID != projectID {
			return entities.ErrTaskNotFound
		}
		if o.OrderIndex < 0 {
			return fmt.Errorf("%w: negative order index", entities.ErrValidation)
		}
	}
	now := r.s.now()
	for _, o := range orders {
		t := r.s.boardTasks[o.ID]
		t.OrderIndex = o.OrderIndex
		if o.Status != nil {
			t.Status = *o.Status
		}
		t.UpdatedAt = now
	}
	return nil
}

type labelRepo struct{ s *Store }

func (r labelRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Label, error) {
	if err := r.s.begin(ctx, "labels.list", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*entities.Label
	for _, l := range r.s.labels {
		if l.ProjectID == projectID {
			label := *l
			out = append(out, &label)
		}
	}
	return out, nil
}

func (r labelRepo) AttachToTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error {
	if err := r.s.begin(ctx, "labels.attach", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.boardTasks[taskID]
	if !ok || t.ProjectID != projectID {
		return entities.ErrTaskNotFound
	}
	if l, ok := r.s.labels[labelID]; !ok || l.ProjectID != projectID {
		return entities.ErrLabelNotFound
	}
	if !t.HasLabel(labelID) {
		t.Labels = append(t.Labels, labelID)
	}
	return nil
}

func (r labelRepo) DetachFromTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error {
	if err := r.s.begin(ctx, "labels.detach", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.boardTasks[taskID]
	if !ok || t.ProjectID != projectID {
		return entities.ErrTaskNotFound
	}
	kept := t.Labels[:0]
	for _, l := range t.Labels {
		if l != labelID {
			kept = append(kept, l)
		}
	}
	t.Labels = kept
	return nil
}

type timelineTaskRepo struct{ s *Store }

func (r timelineTaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.TimelineTask, error) {
	if err := r.s.begin(ctx, "timeline_tasks.list", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.s.listTimelineTasks(projectID), nil
}

func (r timelineTaskRepo) Create(ctx context.Context, task *entities.TimelineTask) (*entities.TimelineTask, error) {
	if err := r.s.begin(ctx, "timeline_tasks.create", task.ProjectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	if task.EndDate.Before(task.StartDate) {
		return nil, entities.ErrInvalidDateRange
	}
	if task.RowID != nil {
		if row, ok := r.s.rows[*task.RowID]; !ok || row.ProjectID != task.ProjectID {
			return nil, entities.ErrRowNotFound
		}
	}
	stored := task.Clone()
	r.s.timelineTasks[task.ID] = stored
	return stored.Clone(), nil
}

func (r timelineTaskRepo) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.TimelineTaskPatch) (*entities.TimelineTask, error) {
	if err := r.s.begin(ctx, "timeline_tasks.update", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.timelineTasks[id]
	if !ok || t.ProjectID != projectID {
		return nil, entities.ErrTaskNotFound
	}
	candidate := t.Clone()
	patch.Apply(candidate)
	if candidate.EndDate.Before(candidate.StartDate) {
		return nil, entities.ErrInvalidDateRange
	}
	candidate.UpdatedAt = r.s.now()
	r.s.timelineTasks[id] = candidate
	return candidate.Clone(), nil
}

func (r timelineTaskRepo) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := r.s.begin(ctx, "timeline_tasks.delete", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	t, ok := r.s.timelineTasks[id]
	if !ok || t.ProjectID != projectID {
		return entities.ErrTaskNotFound
	}
	delete(r.s.timelineTasks, id)
	return nil
}

type rowRepo struct{ s *Store }

func (r rowRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Row, error) {
	if err := r.s.begin(ctx, "rows.list", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.s.listRows(projectID), nil
}

func (r rowRepo) Create(ctx context.Context, row *entities.Row) (*entities.Row, error) {
	if err := r.s.begin(ctx, "rows.create", row.ProjectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	stored := *row
	r.s.rows[row.ID] = &stored
	out := stored
	return &out, nil
}

func (r rowRepo) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.RowPatch) (*entities.Row, error) {
	if err := r.s.begin(ctx, "rows.update", projectID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	row, ok := r.s.rows[id]
	if !ok || row.ProjectID != projectID {
		return nil, entities.ErrRowNotFound
	}
	patch.Apply(row)
	out := *row
	return &out, nil
}

// Delete removes the lane and unassigns its tasks
func (r rowRepo) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := r.s.begin(ctx, "rows.delete", projectID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	row, ok := r.s.rows[id]
	if !ok || row.ProjectID != projectID {
		return entities.ErrRowNotFound
	}
	delete(r.s.rows, id)
	for _, t := range r.s.timelineTasks {
		if t.RowID != nil && *t.RowID == id {
			t.RowID = nil
		}
	}
	return nil
}

type checklistRepo struct{ s *Store }

// begin resolves the owning card so the project check can run
func (r checklistRepo) begin(ctx context.Context, op string, taskID uuid.UUID) error {
	r.s.mu.Lock()
	t, ok := r.s.boardTasks[taskID]
	r.s.mu.Unlock()
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.s.mu.Lock()
		r.s.calls[op]++
		err := r.s.failures[op]
		r.s.mu.Unlock()
		if err != nil {
			return err
		}
		return entities.ErrTaskNotFound
	}
	return r.s.begin(ctx, op, t.ProjectID)
}

func (r checklistRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*entities.ChecklistItem, error) {
	if err := r.begin(ctx, "checklist.list", taskID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.s.listChecklist(taskID), nil
}

func (r checklistRepo) Create(ctx context.Context, item *entities.ChecklistItem) (*entities.ChecklistItem, error) {
	if err := r.begin(ctx, "checklist.create", item.TaskID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	stored := item.Clone()
	r.s.checklist[item.ID] = stored
	return stored.Clone(), nil
}

func (r checklistRepo) Update(ctx context.Context, id, taskID uuid.UUID, patch ports.ChecklistPatch) (*entities.ChecklistItem, error) {
	if err := r.begin(ctx, "checklist.update", taskID); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	item, ok := r.s.checklist[id]
	if !ok || item.TaskID != taskID {
		return nil, entities.ErrChecklistNotFound
	}
	patch.Apply(item)
	return item.Clone(), nil
}

func (r checklistRepo) Delete(ctx context.Context, id, taskID uuid.UUID) error {
	if err := r.begin(ctx, "checklist.delete", taskID); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	item, ok := r.s.checklist[id]
	if !ok || item.TaskID != taskID {
		return entities.ErrChecklistNotFound
	}
	delete(r.s.checklist, id)
	return nil
}
