// Package workspace binds one user's view of one project: the board and
// timeline stores, the coordinator they persist through, and the bulk load
// that fills them.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

type Config struct {
	LoadTimeout  time.Duration
	DefaultScale entities.TimeScale
}

// Workspace is the loaded state of a project for one user
type Workspace struct {
	userID    uuid.UUID
	projectID uuid.UUID
	repos     ports.Repositories
	cfg       Config
	logger    *logger.Logger

	Board    *board.Store
	Timeline *gantt.Store

	mu          sync.Mutex
	status      Status
	lastErr     error
	project     *entities.Project
	unsubscribe []func()

	// live is set once a load has been fetched under the caller's identity.
	// Snapshots are only fanned out while it holds.
	live atomic.Bool
}

// New builds the stores without loading them. publisher may be nil.
func New(userID, projectID uuid.UUID, repos ports.Repositories, projection *timeline.Projection, coord *coordinator.Coordinator, log *logger.Logger, cfg Config, publisher ports.SnapshotPublisher) (*Workspace, error) {
	if cfg.DefaultScale == "" {
		cfg.DefaultScale = entities.TimeScaleWeek
	}
	log = log.WithUserID(userID.String()).WithProject(projectID.String())

	tl, err := gantt.NewStore(projectID, gantt.Deps{Tasks: repos.TimelineTasks, Rows: repos.Rows}, projection, coord, log, gantt.WithScale(cfg.DefaultScale))
	if err != nil {
		return nil, fmt.Errorf("create timeline store: %w", err)
	}
	w := &Workspace{
		userID:    userID,
		projectID: projectID,
		repos:     repos,
		cfg:       cfg,
		logger:    log.WithComponent("workspace"),
		Board:     board.NewStore(projectID, board.Deps{Tasks: repos.BoardTasks, Labels: repos.Labels, Checklists: repos.Checklists}, coord, log),
		Timeline:  tl,
		status:    StatusIdle,
	}
	if publisher != nil {
		w.unsubscribe = append(w.unsubscribe,
			w.Board.Subscribe(func(s board.Snapshot) {
				if w.live.Load() {
					publisher.Publish(projectID, ports.SnapshotBoard, s.Version, s)
				}
			}),
			w.Timeline.Subscribe(func(s gantt.Snapshot) {
				if w.live.Load() {
					publisher.Publish(projectID, ports.SnapshotTimeline, s.Version, s)
				}
			}),
		)
	}
	return w, nil
}

func (w *Workspace) UserID() uuid.UUID    { return w.userID }
func (w *Workspace) ProjectID() uuid.UUID { return w.projectID }

// Context attaches the workspace's user to ctx for persistence calls
func (w *Workspace) Context(ctx context.Context) context.Context {
	return ports.WithActor(ctx, w.userID)
}

// Status reports the state of the last load and its error, if it failed
func (w *Workspace) Status() (Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.lastErr
}

// Project returns the project loaded by the last successful Open
func (w *Workspace) Project() (*entities.Project, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.project == nil {
		return nil, false
	}
	p := *w.project
	return &p, true
}

type loaded struct {
	project    *entities.Project
	boardTasks []*entities.BoardTask
	labels     []*entities.Label
	rows       []*entities.Row
	tlTasks    []*entities.TimelineTask
}

// Open loads the project, board tasks, labels, rows and timeline tasks
// concurrently. On failure both stores are left empty and the error is
// returned; Retry runs the whole load again.
func (w *Workspace) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.status == StatusLoading {
		w.mu.Unlock()
		return fmt.Errorf("open workspace: load already running")
	}
	w.status = StatusLoading
	w.lastErr = nil
	w.mu.Unlock()

	start := time.Now()
	data, err := w.fetch(ctx)
	if err == nil {
		w.live.Store(true)
		err = w.apply(data)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		// the last good snapshot stays the published one
		w.live.Store(false)
		_ = w.Board.Load(nil, nil)
		_ = w.Timeline.Load(nil, nil)
		w.status = StatusFailed
		w.lastErr = err
		w.logger.WithError(err).Errorw("Workspace load failed", "kind", entities.Classify(err), "duration", time.Since(start))
		return fmt.Errorf("open workspace: %w", err)
	}
	w.status = StatusReady
	w.project = data.project
	w.logger.Infow("Workspace loaded",
		"board_tasks", len(data.boardTasks),
		"labels", len(data.labels),
		"rows", len(data.rows),
		"timeline_tasks", len(data.tlTasks),
		"duration", time.Since(start),
	)
	return nil
}

// Retry re-runs the full load after a failure
func (w *Workspace) Retry(ctx context.Context) error {
	return w.Open(ctx)
}

func (w *Workspace) fetch(ctx context.Context) (*loaded, error) {
	ctx = w.Context(ctx)
	if w.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.LoadTimeout)
		defer cancel()
	}

	var data loaded
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := w.repos.Projects.GetByID(gctx, w.projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		data.project = p
		return nil
	})
	g.Go(func() error {
		tasks, err := w.repos.BoardTasks.ListByProject(gctx, w.projectID)
		if err != nil {
			return fmt.Errorf("load board tasks: %w", err)
		}
		data.boardTasks = tasks
		return nil
	})
	g.Go(func() error {
		labels, err := w.repos.Labels.ListByProject(gctx, w.projectID)
		if err != nil {
			return fmt.Errorf("load labels: %w", err)
		}
		data.labels = labels
		return nil
	})
	g.Go(func() error {
		rows, err := w.repos.Rows.ListByProject(gctx, w.projectID)
		if err != nil {
			return fmt.Errorf("load rows: %w", err)
		}
		data.rows = rows
		return nil
	})
	g.Go(func() error {
		tasks, err := w.repos.TimelineTasks.ListByProject(gctx, w.projectID)
		if err != nil {
			return fmt.Errorf("load timeline tasks: %w", err)
		}
		data.tlTasks = tasks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (w *Workspace) apply(data *loaded) error {
	if err := w.Board.Load(data.boardTasks, data.labels); err != nil {
		return fmt.Errorf("apply board: %w", err)
	}
	if err := w.Timeline.Load(data.tlTasks, data.rows); err != nil {
		return fmt.Errorf("apply timeline: %w", err)
	}

	p := data.project
	if p.TimeScale.IsValid() {
		if err := w.Timeline.SetTimeScale(p.TimeScale); err != nil {
			w.logger.Warnw("Ignoring project time scale", "scale", p.TimeScale, "error", err)
		}
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() {
		if err := w.Timeline.SetWindow(timeline.Window{Start: p.StartDate, End: p.EndDate}); err != nil {
			w.logger.Warnw("Ignoring project window", "start", p.StartDate, "end", p.EndDate, "error", err)
		}
	}
	return nil
}

// LoadChecklist fetches one card's checklist into the board
func (w *Workspace) LoadChecklist(ctx context.Context, taskID uuid.UUID) ([]*entities.ChecklistItem, error) {
	if _, ok := w.Board.Task(taskID); !ok {
		return nil, entities.ErrTaskNotFound
	}
	items, err := w.repos.Checklists.ListByTask(w.Context(ctx), taskID)
	if err != nil {
		return nil, fmt.Errorf("load checklist: %w", err)
	}
	if err := w.Board.LoadChecklist(taskID, items); err != nil {
		return nil, err
	}
	return w.Board.Checklist(taskID)
}

// ConvertToTimeline flags a card as scheduled and creates the matching bar
func (w *Workspace) ConvertToTimeline(ctx context.Context, taskID uuid.UUID, start, end time.Time, rowID *uuid.UUID) (*entities.TimelineTask, error) {
	ctx = w.Context(ctx)
	if rowID != nil && !w.hasRow(*rowID) {
		return nil, entities.ErrRowNotFound
	}
	card, err := w.Board.ConvertToTimeline(ctx, taskID, start, end)
	if err != nil {
		return nil, err
	}
	color := card.Color
	if color == entities.ColorNone {
		color = ""
	}
	return w.Timeline.AddTask(ctx, gantt.NewTask{
		Name:        card.Name,
		Description: card.Description,
		RowID:       rowID,
		StartDate:   start,
		EndDate:     end,
		Color:       color,
	})
}

func (w *Workspace) hasRow(id uuid.UUID) bool {
	for _, r := range w.Timeline.Rows() {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Close stops publishing snapshots. In-flight persistence calls are owned by the coordinator.
func (w *Workspace) Close() {
	w.mu.Lock()
	subs := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}
