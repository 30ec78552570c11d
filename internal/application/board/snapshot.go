package board

import (
	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
)

// TaskView is a card as rendered, with its checklist progress
type TaskView struct {
	entities.BoardTask
	ChecklistDone  int `json:"checklist_done"`
	ChecklistTotal int `json:"checklist_total"`
}

type Column struct {
	Status entities.TaskStatus `json:"status"`
	Tasks  []TaskView          `json:"tasks"`
}

// DragView describes an in-progress drag
type DragView struct {
	TaskID        uuid.UUID `json:"task_id"`
	PendingDelete bool      `json:"pending_delete"`
}

// Snapshot is an immutable copy of the board
type Snapshot struct {
	ProjectID      uuid.UUID        `json:"project_id"`
	Version        uint64           `json:"version"`
	Columns        []Column         `json:"columns"`
	Labels         []entities.Label `json:"labels"`
	SelectedTaskID *uuid.UUID       `json:"selected_task_id,omitempty"`
	Dirty          bool             `json:"dirty"`
	Drag           *DragView        `json:"drag,omitempty"`
}

// Column returns the column for status
func (s Snapshot) Column(status entities.TaskStatus) Column {
	for _, c := range s.Columns {
		if c.Status == status {
			return c
		}
	}
	return Column{Status: status}
}

// TaskIDs lists the ids of a column in order
func (c Column) TaskIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(c.Tasks))
	for i, t := range c.Tasks {
		out[i] = t.ID
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	view := s.order
	snap := Snapshot{
		ProjectID: s.projectID,
		Version:   s.version,
		Dirty:     s.dirty,
	}
	if id, ok := s.drag.Active(); ok {
		view = s.drag.View()
		snap.Drag = &DragView{TaskID: id, PendingDelete: s.drag.PendingDelete()}
	}

	for _, status := range entities.TaskStatuses {
		ids := view.Group(status)
		col := Column{Status: status, Tasks: make([]TaskView, 0, len(ids))}
		for i, id := range ids {
			t := s.tasks[id].Clone()
			t.Status = status
			t.OrderIndex = i
			done, total := s.checklistProgress(id)
			col.Tasks = append(col.Tasks, TaskView{BoardTask: *t, ChecklistDone: done, ChecklistTotal: total})
		}
		snap.Columns = append(snap.Columns, col)
	}

	snap.Labels = make([]entities.Label, 0, len(s.labels))
	for _, l := range s.labels {
		snap.Labels = append(snap.Labels, *l)
	}
	if s.selected != nil {
		id := *s.selected
		snap.SelectedTaskID = &id
	}
	return snap
}
