package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aeonplan/core/internal/adapters/repository/memory"
	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

type published struct {
	project  uuid.UUID
	kind     ports.SnapshotKind
	version  uint64
	snapshot any
}

type capturePublisher struct {
	mu    sync.Mutex
	items []published
}

func (p *capturePublisher) Publish(projectID uuid.UUID, kind ports.SnapshotKind, version uint64, snapshot any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, published{project: projectID, kind: kind, version: version, snapshot: snapshot})
}

// lastBoard returns the most recent board snapshot published for projectID
func (p *capturePublisher) lastBoard(projectID uuid.UUID) (board.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.items) - 1; i >= 0; i-- {
		it := p.items[i]
		if it.project == projectID && it.kind == ports.SnapshotBoard {
			return it.snapshot.(board.Snapshot), true
		}
	}
	return board.Snapshot{}, false
}

func (p *capturePublisher) count(kind ports.SnapshotKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, it := range p.items {
		if it.kind == kind {
			n++
		}
	}
	return n
}

type env struct {
	mem       *memory.Store
	coord     *coordinator.Coordinator
	proj      *timeline.Projection
	owner     uuid.UUID
	project   *entities.Project
	publisher *capturePublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	proj, err := timeline.New(timeline.DefaultConfig())
	if err != nil {
		t.Fatalf("timeline.New: %v", err)
	}
	mem := memory.New()
	owner := uuid.New()
	p := mem.AddProject(entities.Project{
		UserID:    owner,
		Name:      "Website",
		TimeScale: entities.TimeScaleMonth,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC),
	})
	coord := coordinator.New(coordinator.Config{CallTimeout: time.Second}, logger.Nop(), coordinator.NewMetrics(prometheus.NewRegistry()))
	return &env{mem: mem, coord: coord, proj: proj, owner: owner, project: p, publisher: &capturePublisher{}}
}

func (e *env) open(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(e.owner, e.project.ID, e.mem.Repositories(), e.proj, e.coord, logger.Nop(), Config{LoadTimeout: time.Second}, e.publisher)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func (e *env) seed(t *testing.T) (rowID uuid.UUID) {
	t.Helper()
	ctx := ports.WithActor(context.Background(), e.owner)
	repos := e.mem.Repositories()
	row := &entities.Row{ID: uuid.New(), ProjectID: e.project.ID, Name: "Design", Color: entities.ColorBlue}
	if _, err := repos.Rows.Create(ctx, row); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	for i, name := range []string{"Wireframes", "Copy"} {
		card := &entities.BoardTask{ID: uuid.New(), ProjectID: e.project.ID, Name: name, Status: entities.TaskStatusTodo, Priority: entities.PriorityMedium, Color: entities.ColorPurple, OrderIndex: i}
		if _, err := repos.BoardTasks.Create(ctx, card); err != nil {
			t.Fatalf("seed card: %v", err)
		}
	}
	start := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)
	bar := &entities.TimelineTask{ID: uuid.New(), ProjectID: e.project.ID, RowID: &row.ID, Name: "Research", StartDate: start, EndDate: start.AddDate(0, 0, 10), Color: entities.ColorGreen}
	if _, err := repos.TimelineTasks.Create(ctx, bar); err != nil {
		t.Fatalf("seed bar: %v", err)
	}
	return row.ID
}

func TestOpenLoadsBothStores(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	w := e.open(t)

	if status, _ := w.Status(); status != StatusIdle {
		t.Fatalf("expected idle before open, got %s", status)
	}
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if status, err := w.Status(); status != StatusReady || err != nil {
		t.Fatalf("expected ready, got %s (%v)", status, err)
	}

	board := w.Board.Snapshot()
	if got := len(board.Column(entities.TaskStatusTodo).Tasks); got != 2 {
		t.Fatalf("expected 2 todo cards, got %d", got)
	}
	tl := w.Timeline.Snapshot()
	if len(tl.Rows) != 1 || len(tl.Tasks) != 1 {
		t.Fatalf("expected 1 row and 1 bar, got %d and %d", len(tl.Rows), len(tl.Tasks))
	}
	if tl.Layout.Scale != entities.TimeScaleMonth {
		t.Fatalf("project scale not applied: %s", tl.Layout.Scale)
	}
	if len(tl.Layout.Columns) != 6 {
		t.Fatalf("expected 6 month columns for Jan-Jun, got %d", len(tl.Layout.Columns))
	}
	if p, ok := w.Project(); !ok || p.Name != "Website" {
		t.Fatalf("project not kept: %+v", p)
	}
	if e.publisher.count(ports.SnapshotBoard) == 0 || e.publisher.count(ports.SnapshotTimeline) == 0 {
		t.Fatal("expected snapshots for both views")
	}
}

func TestFailedLoadLeavesStoresEmptyAndRetryRecovers(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	w := e.open(t)

	boom := errors.New("connection refused")
	e.mem.Fail("rows.list", boom)
	err := w.Open(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected rows failure, got %v", err)
	}
	status, lastErr := w.Status()
	if status != StatusFailed || !errors.Is(lastErr, boom) {
		t.Fatalf("expected failed status, got %s (%v)", status, lastErr)
	}
	if entities.Classify(lastErr) != entities.KindTransport {
		t.Fatalf("expected transport kind, got %q", entities.Classify(lastErr))
	}
	if n := len(w.Board.Snapshot().Column(entities.TaskStatusTodo).Tasks); n != 0 {
		t.Fatalf("board should be empty after failed load, has %d cards", n)
	}
	if n := len(w.Timeline.Snapshot().Tasks); n != 0 {
		t.Fatalf("timeline should be empty after failed load, has %d bars", n)
	}

	e.mem.Fail("rows.list", nil)
	if err := w.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if status, _ := w.Status(); status != StatusReady {
		t.Fatalf("expected ready after retry, got %s", status)
	}
	if n := len(w.Timeline.Snapshot().Tasks); n != 1 {
		t.Fatalf("expected bar after retry, got %d", n)
	}
}

func TestOpenRejectsStranger(t *testing.T) {
	e := newEnv(t)
	w, err := New(uuid.New(), e.project.ID, e.mem.Repositories(), e.proj, e.coord, logger.Nop(), Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = w.Open(context.Background())
	if entities.Classify(err) != entities.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestConvertToTimelineCreatesBar(t *testing.T) {
	e := newEnv(t)
	rowID := e.seed(t)
	w := e.open(t)
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	card := w.Board.Snapshot().Column(entities.TaskStatusTodo).Tasks[0]
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	missing := uuid.New()
	if _, err := w.ConvertToTimeline(context.Background(), card.ID, start, end, &missing); !errors.Is(err, entities.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}

	bar, err := w.ConvertToTimeline(context.Background(), card.ID, start, end, &rowID)
	if err != nil {
		t.Fatalf("ConvertToTimeline: %v", err)
	}
	e.coord.Wait()

	if bar.Name != card.Name || !bar.StartDate.Equal(start) || bar.RowID == nil || *bar.RowID != rowID {
		t.Fatalf("unexpected bar %+v", bar)
	}
	got, _ := w.Board.Task(card.ID)
	if !got.OnTimeline {
		t.Fatal("card not flagged as on timeline")
	}
	if n := len(e.mem.TimelineTasks(e.project.ID)); n != 2 {
		t.Fatalf("expected 2 persisted bars, got %d", n)
	}
	for _, persisted := range e.mem.BoardTasks(e.project.ID) {
		if persisted.ID == card.ID && !persisted.OnTimeline {
			t.Fatal("conversion flag not persisted")
		}
	}
}

func TestMutationsPersistThroughActor(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	w := e.open(t)
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := w.Context(context.Background())
	card := w.Board.Snapshot().Column(entities.TaskStatusTodo).Tasks[1]
	if _, err := w.Board.MoveTask(ctx, card.ID, entities.TaskStatusDone, 0); err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	row, err := w.Timeline.AddRow(ctx, gantt.NewRow{Name: "Build"})
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	e.coord.Wait()

	for _, persisted := range e.mem.BoardTasks(e.project.ID) {
		if persisted.ID == card.ID && persisted.Status != entities.TaskStatusDone {
			t.Fatalf("move not persisted: %+v", persisted)
		}
	}
	rows := e.mem.Rows(e.project.ID)
	if len(rows) != 2 || rows[1].ID != row.ID || rows[1].OrderIndex != 1 {
		t.Fatalf("row not persisted at the end: %+v", rows)
	}
}

func TestRegistry(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	reg := NewRegistry(e.mem.Repositories(), e.proj, e.coord, logger.Nop(), Config{}, nil)

	w, err := reg.Get(context.Background(), e.owner, e.project.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	again, err := reg.Get(context.Background(), e.owner, e.project.ID)
	if err != nil || again != w {
		t.Fatalf("expected the same workspace, got %p vs %p (%v)", again, w, err)
	}
	if calls := e.mem.Calls("projects.get"); calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}

	stranger := uuid.New()
	denied, err := reg.Get(context.Background(), stranger, e.project.ID)
	if denied != nil || entities.Classify(err) != entities.KindUnauthorized {
		t.Fatalf("expected unauthorized without a workspace, got %v %v", denied, err)
	}
	missing, err := reg.Get(context.Background(), e.owner, uuid.New())
	if missing != nil || entities.Classify(err) != entities.KindNotFound {
		t.Fatalf("expected not found without a workspace, got %v %v", missing, err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected only the owner's workspace, got %d", reg.Len())
	}

	reg.Evict(e.owner, e.project.ID)
	if _, ok := reg.Lookup(e.owner, e.project.ID); ok {
		t.Fatal("evicted workspace still registered")
	}

	// transport failures stay registered so the caller can retry
	e.mem.Fail("labels.list", errors.New("connection reset"))
	failed, err := reg.Get(context.Background(), e.owner, e.project.ID)
	if err == nil || failed == nil {
		t.Fatalf("expected failed workspace with error, got %v %v", failed, err)
	}
	if _, ok := reg.Lookup(e.owner, e.project.ID); !ok {
		t.Fatal("failed workspace not registered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestStrangerCannotOverwriteOwnerSnapshots(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	reg := NewRegistry(e.mem.Repositories(), e.proj, e.coord, logger.Nop(), Config{}, e.publisher)

	if _, err := reg.Get(context.Background(), e.owner, e.project.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap, ok := e.publisher.lastBoard(e.project.ID)
	if !ok || len(snap.Column(entities.TaskStatusTodo).Tasks) != 2 {
		t.Fatalf("expected the owner's board with 2 cards, got %+v", snap)
	}
	before := e.publisher.count(ports.SnapshotBoard) + e.publisher.count(ports.SnapshotTimeline)

	if _, err := reg.Get(context.Background(), uuid.New(), e.project.ID); entities.Classify(err) != entities.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	after := e.publisher.count(ports.SnapshotBoard) + e.publisher.count(ports.SnapshotTimeline)
	if after != before {
		t.Fatalf("denied load published %d snapshots", after-before)
	}
	snap, _ = e.publisher.lastBoard(e.project.ID)
	if n := len(snap.Column(entities.TaskStatusTodo).Tasks); n != 2 {
		t.Fatalf("owner's board replaced, now has %d cards", n)
	}
}

func TestFailedReloadKeepsLastPublishedSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	core, logs := observer.New(zapcore.ErrorLevel)
	w, err := New(e.owner, e.project.ID, e.mem.Repositories(), e.proj, e.coord, logger.FromZap(zap.New(core)), Config{}, e.publisher)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	e.mem.Fail("board_tasks.list", errors.New("connection reset"))
	if err := w.Retry(context.Background()); err == nil {
		t.Fatal("expected reload to fail")
	}
	snap, _ := e.publisher.lastBoard(e.project.ID)
	if n := len(snap.Column(entities.TaskStatusTodo).Tasks); n != 2 {
		t.Fatalf("failed reload published an empty board (%d cards)", n)
	}

	entries := logs.FilterMessage("Workspace load failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one load failure log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "load board tasks: connection reset" {
		t.Fatalf("error field = %v", got)
	}
	if got := fmt.Sprint(entries[0].ContextMap()["kind"]); got != string(entities.KindTransport) {
		t.Fatalf("kind field = %v", got)
	}

	e.mem.Fail("board_tasks.list", nil)
	if err := w.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
}
