// Package gantt holds the client-side state of one project's timeline: bars,
// lanes, the visible window and the scale they are drawn at.
package gantt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/observer"
	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

var ErrRowDragInProgress = errors.New("gantt: a row drag is in progress")

const (
	entityTask = "timeline_task"
	entityRow  = "row"
)

type Deps struct {
	Tasks ports.TimelineTaskRepository
	Rows  ports.RowRepository
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) { s.newID = gen }
}

// WithScale sets the initial time scale
func WithScale(scale entities.TimeScale) Option {
	return func(s *Store) { s.scale = scale }
}

// WithWindow sets the initial visible range
func WithWindow(w timeline.Window) Option {
	return func(s *Store) { s.window = w }
}

// Store is the timeline state of a single project
type Store struct {
	projectID  uuid.UUID
	deps       Deps
	projection *timeline.Projection
	coord      *coordinator.Coordinator
	logger     *logger.Logger
	hub        *observer.Hub[Snapshot]
	now        func() time.Time
	newID      func() uuid.UUID

	mu       sync.Mutex
	tasks    map[uuid.UUID]*entities.TimelineTask
	sequence []uuid.UUID
	rows     map[uuid.UUID]*entities.Row
	lanes    *ordering.Model[uuid.UUID]
	// saved is the lane order as last written; local reorders do not touch it
	saved    *ordering.Model[uuid.UUID]
	rowDrag  *drag.Machine[uuid.UUID]
	scale    entities.TimeScale
	window   timeline.Window
	selected *uuid.UUID
	dirty    bool
	version  uint64
}

func NewStore(projectID uuid.UUID, deps Deps, projection *timeline.Projection, coord *coordinator.Coordinator, log *logger.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		projectID:  projectID,
		deps:       deps,
		projection: projection,
		coord:      coord,
		logger:     log.WithComponent("gantt").WithProject(projectID.String()),
		hub:        observer.NewHub[Snapshot](),
		now:        time.Now,
		newID:      uuid.New,
		scale:      entities.TimeScaleWeek,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.scale.IsValid() {
		return nil, fmt.Errorf("%w: %q", timeline.ErrInvalidScale, s.scale)
	}
	if s.window.Start.IsZero() && s.window.End.IsZero() {
		s.window = DefaultWindow(s.now())
	}
	if _, err := projection.Columns(s.scale, s.window); err != nil {
		return nil, err
	}
	s.reset()
	return s, nil
}

// DefaultWindow starts at the first of the month containing now and spans three months.
func DefaultWindow(now time.Time) timeline.Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return timeline.Window{Start: start, End: start.AddDate(0, 3, -1)}
}

func (s *Store) reset() {
	s.tasks = make(map[uuid.UUID]*entities.TimelineTask)
	s.sequence = nil
	s.rows = make(map[uuid.UUID]*entities.Row)
	s.lanes = ordering.New[uuid.UUID]()
	s.lanes.DeclareGroup(s.projectID)
	s.saved = s.lanes.Clone()
	s.rowDrag = drag.NewMachine[uuid.UUID]()
	s.selected = nil
	s.dirty = false
}

func (s *Store) ProjectID() uuid.UUID {
	return s.projectID
}

// Load replaces the timeline with persisted state. Row order is renumbered
// densely; tasks pointing at a missing row are shown unassigned.
func (s *Store) Load(tasks []*entities.TimelineTask, rows []*entities.Row) error {
	s.mu.Lock()

	entries := make([]ordering.Entry[uuid.UUID], 0, len(rows))
	byRow := make(map[uuid.UUID]*entities.Row, len(rows))
	for _, r := range rows {
		c := *r
		byRow[c.ID] = &c
		entries = append(entries, ordering.Entry[uuid.UUID]{ID: c.ID, Group: s.projectID, OrderIndex: c.OrderIndex})
	}
	lanes, err := ordering.Load(entries)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	lanes.DeclareGroup(s.projectID)

	byTask := make(map[uuid.UUID]*entities.TimelineTask, len(tasks))
	sequence := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := byTask[t.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ordering.ErrDuplicateID, t.ID)
		}
		task := t.Clone()
		if task.RowID != nil {
			if _, ok := byRow[*task.RowID]; !ok {
				s.logger.Warnw("Timeline task references unknown row", "task_id", task.ID, "row_id", *task.RowID)
				task.RowID = nil
			}
		}
		byTask[task.ID] = task
		sequence = append(sequence, task.ID)
	}

	s.reset()
	s.tasks = byTask
	s.sequence = sequence
	s.rows = byRow
	s.lanes = lanes
	s.saved = lanes.Clone()
	s.syncRowPositions()
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.hub.Subscribe(fn)
}

// Task returns a copy of one timeline task
func (s *Store) Task(id uuid.UUID) (*entities.TimelineTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (s *Store) SelectTask(id *uuid.UUID) error {
	s.mu.Lock()
	if id != nil {
		if _, ok := s.tasks[*id]; !ok {
			s.mu.Unlock()
			return entities.ErrTaskNotFound
		}
		v := *id
		id = &v
	}
	s.selected = id
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Store) MarkClean() {
	s.mu.Lock()
	s.dirty = false
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
}

// SetTimeScale switches between day, week and month buckets
func (s *Store) SetTimeScale(scale entities.TimeScale) error {
	if !scale.IsValid() {
		return fmt.Errorf("%w: %q", timeline.ErrInvalidScale, scale)
	}
	s.mu.Lock()
	if _, err := s.projection.Columns(scale, s.window); err != nil {
		s.mu.Unlock()
		return err
	}
	s.scale = scale
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// SetWindow changes the visible calendar range
func (s *Store) SetWindow(w timeline.Window) error {
	s.mu.Lock()
	if _, err := s.projection.Columns(s.scale, w); err != nil {
		s.mu.Unlock()
		return err
	}
	s.window = w
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) commit(dirty bool) *Snapshot {
	s.version++
	if dirty {
		s.dirty = true
	}
	if !s.hub.Active() {
		return nil
	}
	snap := s.snapshotLocked()
	return &snap
}

func (s *Store) publish(snap *Snapshot) {
	if snap != nil {
		s.hub.Notify(snap.Version, *snap)
	}
}

func (s *Store) syncRowPositions() {
	for i, id := range s.lanes.Group(s.projectID) {
		if r, ok := s.rows[id]; ok {
			r.OrderIndex = i
		}
	}
}

func (s *Store) dispatch(ctx context.Context, op coordinator.Operation, fn func(context.Context) error) {
	op.ProjectID = s.projectID
	s.coord.Dispatch(ctx, op, fn)
}

func (s *Store) rowDragging() bool {
	return s.rowDrag.State() == drag.Dragging
}
