package entities

import (
	"time"

	"github.com/google/uuid"
)

// Enums and types
type TaskStatus string

const (
	TaskStatusTodo   TaskStatus = "todo"
	TaskStatusDoing  TaskStatus = "doing"
	TaskStatusReview TaskStatus = "review"
	TaskStatusDone   TaskStatus = "done"
)

// TaskStatuses lists board columns in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusDoing, TaskStatusReview, TaskStatusDone}

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusReview, TaskStatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Color string

const (
	ColorPurple Color = "purple"
	ColorBlue   Color = "blue"
	ColorCyan   Color = "cyan"
	ColorGreen  Color = "green"
	ColorPink   Color = "pink"
	ColorOrange Color = "orange"
	ColorNone   Color = "none"
)

type TimeScale string

const (
	TimeScaleDay   TimeScale = "day"
	TimeScaleWeek  TimeScale = "week"
	TimeScaleMonth TimeScale = "month"
)

func (s TimeScale) IsValid() bool {
	switch s {
	case TimeScaleDay, TimeScaleWeek, TimeScaleMonth:
		return true
	}
	return false
}

// Project is the tenant boundary every other entity hangs off.
type Project struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	TimeScale   TimeScale `json:"time_scale" db:"time_scale"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BoardTask is a kanban card. OrderIndex is its position inside (project, status).
type BoardTask struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	ProjectID   uuid.UUID   `json:"project_id" db:"project_id" validate:"required"`
	Name        string      `json:"name" db:"name" validate:"required,max=255"`
	Description *string     `json:"description,omitempty" db:"description"`
	Status      TaskStatus  `json:"status" db:"status" validate:"oneof=todo doing review done"`
	Priority    Priority    `json:"priority" db:"priority" validate:"oneof=low medium high urgent"`
	Color       Color       `json:"color" db:"color" validate:"oneof=purple blue cyan green pink orange none"`
	Labels      []uuid.UUID `json:"labels" db:"-"`
	StartDate   *time.Time  `json:"start_date,omitempty" db:"start_date"`
	EndDate     *time.Time  `json:"end_date,omitempty" db:"end_date"`
	OnTimeline  bool        `json:"on_timeline" db:"on_timeline"`
	OrderIndex  int         `json:"order_index" db:"order_index" validate:"min=0"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy safe to hand out of a store.
func (t *BoardTask) Clone() *BoardTask {
	c := *t
	c.Labels = append([]uuid.UUID(nil), t.Labels...)
	c.Description = cloneString(t.Description)
	c.StartDate = cloneTime(t.StartDate)
	c.EndDate = cloneTime(t.EndDate)
	return &c
}

// HasLabel reports whether the label is attached.
func (t *BoardTask) HasLabel(id uuid.UUID) bool {
	for _, l := range t.Labels {
		if l == id {
			return true
		}
	}
	return false
}

// TimelineTask is a Gantt bar. Dependencies are stored but never enforced.
type TimelineTask struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	ProjectID    uuid.UUID   `json:"project_id" db:"project_id" validate:"required"`
	RowID        *uuid.UUID  `json:"row_id,omitempty" db:"row_id"`
	Name         string      `json:"name" db:"name" validate:"required,max=255"`
	Description  *string     `json:"description,omitempty" db:"description"`
	StartDate    time.Time   `json:"start_date" db:"start_date"`
	EndDate      time.Time   `json:"end_date" db:"end_date"`
	Color        Color       `json:"color" db:"color" validate:"oneof=purple blue cyan green pink orange none"`
	Progress     int         `json:"progress" db:"progress" validate:"min=0,max=100"`
	Dependencies []uuid.UUID `json:"dependencies" db:"-"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

func (t *TimelineTask) Clone() *TimelineTask {
	c := *t
	c.Dependencies = append([]uuid.UUID(nil), t.Dependencies...)
	c.Description = cloneString(t.Description)
	if t.RowID != nil {
		id := *t.RowID
		c.RowID = &id
	}
	return &c
}

// Duration is the exact span between start and end.
func (t *TimelineTask) Duration() time.Duration {
	return t.EndDate.Sub(t.StartDate)
}

// Row is a horizontal lane of the timeline.
type Row struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProjectID  uuid.UUID `json:"project_id" db:"project_id" validate:"required"`
	Name       string    `json:"name" db:"name" validate:"required,max=255"`
	Color      Color     `json:"color" db:"color" validate:"oneof=purple blue cyan green pink orange none"`
	OrderIndex int       `json:"order_index" db:"order_index" validate:"min=0"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Label struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	Name      string    `json:"name" db:"name"`
	Color     Color     `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChecklistItem belongs to a board task; OrderIndex is its position within that task.
type ChecklistItem struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TaskID     uuid.UUID  `json:"task_id" db:"task_id" validate:"required"`
	Title      string     `json:"title" db:"title" validate:"required,max=255"`
	Completed  bool       `json:"completed" db:"completed"`
	StartDate  *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty" db:"end_date"`
	OrderIndex int        `json:"order_index" db:"order_index" validate:"min=0"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

func (c *ChecklistItem) Clone() *ChecklistItem {
	cp := *c
	cp.StartDate = cloneTime(c.StartDate)
	cp.EndDate = cloneTime(c.EndDate)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
