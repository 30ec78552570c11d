// Package board holds the client-side state of one project's kanban board.
//
// All mutations are synchronous and serialized by the store's lock. Each
// committed mutation dispatches exactly one persistence job through the
// coordinator after the lock is released; drag hovers only touch the drag
// machine's working copy and never reach persistence.
package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/observer"
	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

var ErrDragInProgress = errors.New("board: a drag is in progress")

const (
	entityTask      = "board_task"
	entityLabel     = "task_label"
	entityChecklist = "checklist_item"
)

// Deps are the persistence collaborators of the board
type Deps struct {
	Tasks      ports.BoardTaskRepository
	Labels     ports.LabelRepository
	Checklists ports.ChecklistRepository
}

// Option customizes a Store
type Option func(*Store)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides uuid.New
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) { s.newID = gen }
}

// Store is the board state of a single project
type Store struct {
	projectID uuid.UUID
	deps      Deps
	coord     *coordinator.Coordinator
	logger    *logger.Logger
	hub       *observer.Hub[Snapshot]
	now       func() time.Time
	newID     func() uuid.UUID

	mu        sync.Mutex
	tasks     map[uuid.UUID]*entities.BoardTask
	labels    []*entities.Label
	order     *ordering.Model[entities.TaskStatus]
	drag      *drag.Machine[entities.TaskStatus]
	checklist *ordering.Model[uuid.UUID]
	items     map[uuid.UUID]*entities.ChecklistItem
	selected  *uuid.UUID
	dirty     bool
	version   uint64
}

// NewStore creates an empty board for projectID
func NewStore(projectID uuid.UUID, deps Deps, coord *coordinator.Coordinator, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		projectID: projectID,
		deps:      deps,
		coord:     coord,
		logger:    log.WithComponent("board").WithProject(projectID.String()),
		hub:       observer.NewHub[Snapshot](),
		now:       time.Now,
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.tasks = make(map[uuid.UUID]*entities.BoardTask)
	s.labels = nil
	s.order = newOrder()
	s.drag = drag.NewMachine[entities.TaskStatus]()
	s.checklist = ordering.New[uuid.UUID]()
	s.items = make(map[uuid.UUID]*entities.ChecklistItem)
	s.selected = nil
	s.dirty = false
}

func newOrder() *ordering.Model[entities.TaskStatus] {
	m := ordering.New[entities.TaskStatus]()
	for _, st := range entities.TaskStatuses {
		m.DeclareGroup(st)
	}
	return m
}

func (s *Store) ProjectID() uuid.UUID {
	return s.projectID
}

// Load replaces the whole board with persisted state. Persisted indices are
// renumbered densely; equal indices keep the order they were loaded in.
func (s *Store) Load(tasks []*entities.BoardTask, labels []*entities.Label) error {
	s.mu.Lock()

	order := newOrder()
	byID := make(map[uuid.UUID]*entities.BoardTask, len(tasks))
	entries := make([]ordering.Entry[entities.TaskStatus], 0, len(tasks))
	for _, t := range tasks {
		task := t.Clone()
		if !task.Status.IsValid() {
			s.logger.Warnw("Unknown task status, moving to todo", "task_id", task.ID, "status", task.Status)
			task.Status = entities.TaskStatusTodo
		}
		byID[task.ID] = task
		entries = append(entries, ordering.Entry[entities.TaskStatus]{ID: task.ID, Group: task.Status, OrderIndex: task.OrderIndex})
	}
	loaded, err := ordering.Load(entries)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for _, e := range loaded.Entries() {
		if _, err := order.AppendToGroup(e.ID, e.Group); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	s.reset()
	s.tasks = byID
	s.order = order
	for _, l := range labels {
		c := *l
		s.labels = append(s.labels, &c)
	}
	s.syncPositions()
	snap := s.commit(false)
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Snapshot returns a read-only copy of the board. Mid-drag it shows the speculative order.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every subsequent snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.hub.Subscribe(fn)
}

// Task returns a copy of one task
func (s *Store) Task(id uuid.UUID) (*entities.BoardTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// SelectTask sets the selected task; nil clears it
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

// Dirty reports whether local changes happened since the last MarkClean or Load
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

// commit bumps the version and builds the snapshot to publish, if anyone listens.
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

// syncPositions copies the committed order back onto the task records.
func (s *Store) syncPositions() {
	for _, e := range s.order.Entries() {
		if t, ok := s.tasks[e.ID]; ok {
			t.Status = e.Group
			t.OrderIndex = e.OrderIndex
		}
	}
}

func (s *Store) dispatch(ctx context.Context, op coordinator.Operation, fn func(context.Context) error) {
	op.ProjectID = s.projectID
	s.coord.Dispatch(ctx, op, fn)
}

func (s *Store) dragging() bool {
	return s.drag.State() == drag.Dragging
}

func toOrders(placements []ordering.Placement[entities.TaskStatus]) []ports.BoardTaskOrder {
	out := make([]ports.BoardTaskOrder, 0, len(placements))
	for _, p := range placements {
		o := ports.BoardTaskOrder{ID: p.ID, OrderIndex: p.OrderIndex}
		if p.GroupChanged {
			st := p.Group
			o.Status = &st
		}
		out = append(out, o)
	}
	return out
}
