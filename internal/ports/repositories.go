package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
)

// ProjectRepository reads the project a workspace is opened on
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Project, error)
}

// BoardTaskRepository defines the persistence contract for kanban cards
type BoardTaskRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.BoardTask, error)
	Create(ctx context.Context, task *entities.BoardTask) (*entities.BoardTask, error)
	Update(ctx context.Context, id, projectID uuid.UUID, patch BoardTaskPatch) (*entities.BoardTask, error)
	Delete(ctx context.Context, id, projectID uuid.UUID) error
	Reorder(ctx context.Context, projectID uuid.UUID, orders []BoardTaskOrder) error
}

// LabelRepository only manages the task association; labels themselves are read-only here
type LabelRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Label, error)
	AttachToTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error
	DetachFromTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error
}

// TimelineTaskRepository defines the persistence contract for timeline bars
type TimelineTaskRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.TimelineTask, error)
	Create(ctx context.Context, task *entities.TimelineTask) (*entities.TimelineTask, error)
	Update(ctx context.Context, id, projectID uuid.UUID, patch TimelineTaskPatch) (*entities.TimelineTask, error)
	Delete(ctx context.Context, id, projectID uuid.UUID) error
}

// RowRepository defines the persistence contract for timeline lanes
type RowRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Row, error)
	Create(ctx context.Context, row *entities.Row) (*entities.Row, error)
	Update(ctx context.Context, id, projectID uuid.UUID, patch RowPatch) (*entities.Row, error)
	Delete(ctx context.Context, id, projectID uuid.UUID) error
}

// ChecklistRepository is scoped by the owning board task
type ChecklistRepository interface {
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*entities.ChecklistItem, error)
	Create(ctx context.Context, item *entities.ChecklistItem) (*entities.ChecklistItem, error)
	Update(ctx context.Context, id, taskID uuid.UUID, patch ChecklistPatch) (*entities.ChecklistItem, error)
	Delete(ctx context.Context, id, taskID uuid.UUID) error
}

// Repositories bundles every collaborator a workspace talks to
type Repositories struct {
	Projects      ProjectRepository
	BoardTasks    BoardTaskRepository
	Labels        LabelRepository
	TimelineTasks TimelineTaskRepository
	Rows          RowRepository
	Checklists    ChecklistRepository
}

// BoardTaskOrder is one record of a reorder batch. Status is only set when the card changed column.
type BoardTaskOrder struct {
	ID         uuid.UUID            `json:"id"`
	OrderIndex int                  `json:"order_index"`
	Status     *entities.TaskStatus `json:"status,omitempty"`
}

// BoardTaskPatch carries the fields of a partial update; nil means unchanged
type BoardTaskPatch struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Status      *entities.TaskStatus `json:"status,omitempty"`
	Priority    *entities.Priority   `json:"priority,omitempty"`
	Color       *entities.Color      `json:"color,omitempty"`
	StartDate   *time.Time           `json:"start_date,omitempty"`
	EndDate     *time.Time           `json:"end_date,omitempty"`
	OnTimeline  *bool                `json:"on_timeline,omitempty"`
	OrderIndex  *int                 `json:"order_index,omitempty"`
}

// Apply copies the set fields onto task
func (p BoardTaskPatch) Apply(task *entities.BoardTask) {
	if p.Name != nil {
		task.Name = *p.Name
	}
	if p.Description != nil {
		d := *p.Description
		task.Description = &d
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Color != nil {
		task.Color = *p.Color
	}
	if p.StartDate != nil {
		s := *p.StartDate
		task.StartDate = &s
	}
	if p.EndDate != nil {
		e := *p.EndDate
		task.EndDate = &e
	}
	if p.OnTimeline != nil {
		task.OnTimeline = *p.OnTimeline
	}
	if p.OrderIndex != nil {
		task.OrderIndex = *p.OrderIndex
	}
}

// TimelineTaskPatch carries the fields of a partial update. ClearRow unassigns the row.
type TimelineTaskPatch struct {
	Name         *string         `json:"name,omitempty"`
	Description  *string         `json:"description,omitempty"`
	RowID        *uuid.UUID      `json:"row_id,omitempty"`
	ClearRow     bool            `json:"clear_row,omitempty"`
	StartDate    *time.Time      `json:"start_date,omitempty"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	Color        *entities.Color `json:"color,omitempty"`
	Progress     *int            `json:"progress,omitempty"`
	Dependencies *[]uuid.UUID    `json:"dependencies,omitempty"`
}

func (p TimelineTaskPatch) Apply(task *entities.TimelineTask) {
	if p.Name != nil {
		task.Name = *p.Name
	}
	if p.Description != nil {
		d := *p.Description
		task.Description = &d
	}
	if p.ClearRow {
		task.RowID = nil
	} else if p.RowID != nil {
		r := *p.RowID
		task.RowID = &r
	}
	if p.StartDate != nil {
		task.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		task.EndDate = *p.EndDate
	}
	if p.Color != nil {
		task.Color = *p.Color
	}
	if p.Progress != nil {
		task.Progress = *p.Progress
	}
	if p.Dependencies != nil {
		task.Dependencies = append([]uuid.UUID(nil), (*p.Dependencies)...)
	}
}

type RowPatch struct {
	Name       *string         `json:"name,omitempty"`
	Color      *entities.Color `json:"color,omitempty"`
	OrderIndex *int            `json:"order_index,omitempty"`
}

func (p RowPatch) Apply(row *entities.Row) {
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.Color != nil {
		row.Color = *p.Color
	}
	if p.OrderIndex != nil {
		row.OrderIndex = *p.OrderIndex
	}
}

type ChecklistPatch struct {
	Title      *string    `json:"title,omitempty"`
	Completed  *bool      `json:"completed,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	OrderIndex *int       `json:"order_index,omitempty"`
}

func (p ChecklistPatch) Apply(item *entities.ChecklistItem) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Completed != nil {
		item.Completed = *p.Completed
	}
	if p.StartDate != nil {
		s := *p.StartDate
		item.StartDate = &s
	}
	if p.EndDate != nil {
		e := *p.EndDate
		item.EndDate = &e
	}
	if p.OrderIndex != nil {
		item.OrderIndex = *p.OrderIndex
	}
}
