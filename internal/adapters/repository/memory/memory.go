// Package memory is an in-process implementation of the persistence ports.
// It enforces the same ownership rules as the PostgreSQL repositories and is
// used by the replay command and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/ports"
)

// Store holds every entity of every project
type Store struct {
	mu            sync.Mutex
	projects      map[uuid.UUID]*entities.Project
	boardTasks    map[uuid.UUID]*entities.BoardTask
	labels        map[uuid.UUID]*entities.Label
	timelineTasks map[uuid.UUID]*entities.TimelineTask
	rows          map[uuid.UUID]*entities.Row
	checklist     map[uuid.UUID]*entities.ChecklistItem
	failures      map[string]error
	calls         map[string]int
	now           func() time.Time
}

func New() *Store {
	return &Store{
		projects:      make(map[uuid.UUID]*entities.Project),
		boardTasks:    make(map[uuid.UUID]*entities.BoardTask),
		labels:        make(map[uuid.UUID]*entities.Label),
		timelineTasks: make(map[uuid.UUID]*entities.TimelineTask),
		rows:          make(map[uuid.UUID]*entities.Row),
		checklist:     make(map[uuid.UUID]*entities.ChecklistItem),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
		now:           time.Now,
	}
}

// Repositories returns the port bundle backed by s
func (s *Store) Repositories() ports.Repositories {
	return ports.Repositories{
		Projects:      projectRepo{s},
		BoardTasks:    boardTaskRepo{s},
		Labels:        labelRepo{s},
		TimelineTasks: timelineTaskRepo{s},
		Rows:          rowRepo{s},
		Checklists:    checklistRepo{s},
	}
}

// Fail makes every call of op return err until Fail(op, nil).
// Ops are named "<repo>.<method>", e.g. "rows.list" or "board_tasks.reorder".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls reports how many times op was invoked, failed calls included
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// AddProject seeds a project. Zero dates default to a three month window from today.
func (s *Store) AddProject(p entities.Project) *entities.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TimeScale == "" {
		p.TimeScale = entities.TimeScaleWeek
	}
	if p.StartDate.IsZero() {
		p.StartDate = s.now().UTC().Truncate(24 * time.Hour)
	}
	if p.EndDate.IsZero() {
		p.EndDate = p.StartDate.AddDate(0, 3, 0)
	}
	p.CreatedAt, p.UpdatedAt = s.now(), s.now()
	s.projects[p.ID] = &p
	out := p
	return &out
}

// AddLabel seeds a label; labels are read-only through the ports
func (s *Store) AddLabel(l entities.Label) *entities.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = s.now()
	s.labels[l.ID] = &l
	out := l
	return &out
}

// BoardTasks returns the persisted cards of projectID sorted by column and index
func (s *Store) BoardTasks(projectID uuid.UUID) []*entities.BoardTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBoardTasks(projectID)
}

// TimelineTasks returns the persisted bars of projectID
func (s *Store) TimelineTasks(projectID uuid.UUID) []*entities.TimelineTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTimelineTasks(projectID)
}

// Rows returns the persisted lanes of projectID sorted by index
func (s *Store) Rows(projectID uuid.UUID) []*entities.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listRows(projectID)
}

// ChecklistItems returns the persisted checklist of taskID sorted by index
func (s *Store) ChecklistItems(taskID uuid.UUID) []*entities.ChecklistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listChecklist(taskID)
}

// begin locks the store, counts the call and checks injected failures and
// ownership of projectID. The caller must unlock on success.
func (s *Store) begin(ctx context.Context, op string, projectID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.calls[op]++
	if err := s.failures[op]; err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.owns(ctx, projectID); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) owns(ctx context.Context, projectID uuid.UUID) error {
	userID, ok := ports.ActorFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no actor in context", entities.ErrUnauthorized)
	}
	p, ok := s.projects[projectID]
	if !ok {
		return entities.ErrProjectNotFound
	}
	if p.UserID != userID {
		return fmt.Errorf("%w: project %s", entities.ErrUnauthorized, projectID)
	}
	return nil
}

func (s *Store) listBoardTasks(projectID uuid.UUID) []*entities.BoardTask {
	var out []*entities.BoardTask
	for _, t := range s.boardTasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) listTimelineTasks(projectID uuid.UUID) []*entities.TimelineTask {
	var out []*entities.TimelineTask
	for _, t := range s.timelineTasks {
		if t.ProjectID == projectID {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *Store) listRows(projectID uuid.UUID) []*entities.Row {
	var out []*entities.Row
	for _, r := range s.rows {
		if r.ProjectID == projectID {
			row := *r
			out = append(out, &row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) listChecklist(taskID uuid.UUID) []*entities.ChecklistItem {
	var out []*entities.ChecklistItem
	for _, c := range s.checklist {
		if c.TaskID == taskID {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
