package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/ports"
)

func TestOwnershipIsEnforced(t *testing.T) {
	s := New()
	owner, stranger := uuid.New(), uuid.New()
	p := s.AddProject(entities.Project{UserID: owner, Name: "Launch"})
	repos := s.Repositories()

	if _, err := repos.Projects.GetByID(context.Background(), p.ID); !errors.Is(err, entities.ErrUnauthorized) {
		t.Fatalf("no actor: expected ErrUnauthorized, got %v", err)
	}
	if _, err := repos.Rows.ListByProject(ports.WithActor(context.Background(), stranger), p.ID); !errors.Is(err, entities.ErrUnauthorized) {
		t.Fatalf("stranger: expected ErrUnauthorized, got %v", err)
	}
	if _, err := repos.Rows.ListByProject(ports.WithActor(context.Background(), owner), uuid.New()); !errors.Is(err, entities.ErrNotFound) {
		t.Fatalf("unknown project: expected not found, got %v", err)
	}
	got, err := repos.Projects.GetByID(ports.WithActor(context.Background(), owner), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Launch" || got.TimeScale != entities.TimeScaleWeek {
		t.Fatalf("unexpected project %+v", got)
	}
}

func TestReorderIsAllOrNothing(t *testing.T) {
	s := New()
	owner := uuid.New()
	p := s.AddProject(entities.Project{UserID: owner})
	ctx := ports.WithActor(context.Background(), owner)
	repos := s.Repositories()

	a := &entities.BoardTask{ID: uuid.New(), ProjectID: p.ID, Name: "a", Status: entities.TaskStatusTodo}
	if _, err := repos.BoardTasks.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	doing := entities.TaskStatusDoing
	err := repos.BoardTasks.Reorder(ctx, p.ID, []ports.BoardTaskOrder{
		{ID: a.ID, OrderIndex: 3, Status: &doing},
		{ID: uuid.New(), OrderIndex: 0},
	})
	if !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if got := s.BoardTasks(p.ID)[0]; got.OrderIndex != 0 || got.Status != entities.TaskStatusTodo {
		t.Fatalf("partial batch applied: %+v", got)
	}

	if err := repos.BoardTasks.Reorder(ctx, p.ID, []ports.BoardTaskOrder{{ID: a.ID, OrderIndex: 2, Status: &doing}}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got := s.BoardTasks(p.ID)[0]; got.OrderIndex != 2 || got.Status != entities.TaskStatusDoing {
		t.Fatalf("batch not applied: %+v", got)
	}
}

func TestRowDeleteUnassignsTasks(t *testing.T) {
	s := New()
	owner := uuid.New()
	p := s.AddProject(entities.Project{UserID: owner})
	ctx := ports.WithActor(context.Background(), owner)
	repos := s.Repositories()

	row := &entities.Row{ID: uuid.New(), ProjectID: p.ID, Name: "Design"}
	if _, err := repos.Rows.Create(ctx, row); err != nil {
		t.Fatalf("create row: %v", err)
	}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	task := &entities.TimelineTask{ID: uuid.New(), ProjectID: p.ID, RowID: &row.ID, Name: "Mockups", StartDate: start, EndDate: start.AddDate(0, 0, 3)}
	if _, err := repos.TimelineTasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := repos.Rows.Delete(ctx, row.ID, p.ID); err != nil {
		t.Fatalf("delete row: %v", err)
	}
	if got := s.TimelineTasks(p.ID)[0]; got.RowID != nil {
		t.Fatalf("task still assigned to %v", *got.RowID)
	}
	if err := repos.Rows.Delete(ctx, row.ID, p.ID); !errors.Is(err, entities.ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestInjectedFailures(t *testing.T) {
	s := New()
	owner := uuid.New()
	p := s.AddProject(entities.Project{UserID: owner})
	ctx := ports.WithActor(context.Background(), owner)
	repos := s.Repositories()

	boom := errors.New("connection reset")
	s.Fail("labels.list", boom)
	if _, err := repos.Labels.ListByProject(ctx, p.ID); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	s.Fail("labels.list", nil)
	if _, err := repos.Labels.ListByProject(ctx, p.ID); err != nil {
		t.Fatalf("failure not cleared: %v", err)
	}
	if n := s.Calls("labels.list"); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestChecklistScopedByTask(t *testing.T) {
	s := New()
	owner, stranger := uuid.New(), uuid.New()
	p := s.AddProject(entities.Project{UserID: owner})
	ctx := ports.WithActor(context.Background(), owner)
	repos := s.Repositories()

	card := &entities.BoardTask{ID: uuid.New(), ProjectID: p.ID, Name: "card", Status: entities.TaskStatusTodo}
	if _, err := repos.BoardTasks.Create(ctx, card); err != nil {
		t.Fatalf("create card: %v", err)
	}
	item := &entities.ChecklistItem{ID: uuid.New(), TaskID: card.ID, Title: "step"}
	if _, err := repos.Checklists.Create(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := repos.Checklists.ListByTask(ports.WithActor(context.Background(), stranger), card.ID); !errors.Is(err, entities.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := repos.Checklists.ListByTask(ctx, uuid.New()); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	if err := repos.BoardTasks.Delete(ctx, card.ID, p.ID); err != nil {
		t.Fatalf("delete card: %v", err)
	}
	if items := s.ChecklistItems(card.ID); len(items) != 0 {
		t.Fatalf("checklist survived its card: %d items", len(items))
	}
}
