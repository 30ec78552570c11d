package entities

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimelineTaskRejectsEndBeforeStart(t *testing.T) {
	task := &TimelineTask{
		ProjectID: uuid.New(),
		Name:      "Ship",
		StartDate: date(2024, time.January, 10),
		EndDate:   date(2024, time.January, 5),
	}
	task.ApplyDefaults()

	err := task.Validate()
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if Classify(err) != KindValidation {
		t.Fatalf("expected validation kind, got %q", Classify(err))
	}
}

func TestTimelineTaskValidation(t *testing.T) {
	base := func() *TimelineTask {
		task := &TimelineTask{
			ProjectID: uuid.New(),
			Name:      "Design",
			StartDate: date(2024, time.January, 1),
			EndDate:   date(2024, time.January, 1),
		}
		task.ApplyDefaults()
		return task
	}

	tests := []struct {
		name    string
		mutate  func(*TimelineTask)
		wantErr bool
	}{
		{name: "same day", mutate: func(*TimelineTask) {}},
		{name: "progress over 100", mutate: func(t *TimelineTask) { t.Progress = 101 }, wantErr: true},
		{name: "negative progress", mutate: func(t *TimelineTask) { t.Progress = -1 }, wantErr: true},
		{name: "missing name", mutate: func(t *TimelineTask) { t.Name = "" }, wantErr: true},
		{name: "unknown color", mutate: func(t *TimelineTask) { t.Color = "teal" }, wantErr: true},
		{name: "missing start", mutate: func(t *TimelineTask) { t.StartDate = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(task)
			err := task.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBoardTaskDefaultsAndOptionalRange(t *testing.T) {
	task := &BoardTask{ProjectID: uuid.New(), Name: "Write docs"}
	task.ApplyDefaults()
	if task.Status != TaskStatusTodo || task.Priority != PriorityMedium || task.Color != ColorPurple {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	start, end := date(2024, time.March, 3), date(2024, time.March, 1)
	task.StartDate, task.EndDate = &start, &end
	if err := task.Validate(); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}

	task.EndDate = nil
	if err := task.Validate(); err != nil {
		t.Fatalf("open-ended range should pass: %v", err)
	}

	task.Status = "backlog"
	if err := task.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for status, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("update: %w", ErrUnauthorized), KindUnauthorized},
		{ErrTaskNotFound, KindNotFound},
		{ErrRowNotFound, KindNotFound},
		{ErrInvalidDateRange, KindValidation},
		{errors.New("connection refused"), KindTransport},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	row := uuid.New()
	task := &TimelineTask{RowID: &row, Dependencies: []uuid.UUID{uuid.New()}}
	c := task.Clone()
	*c.RowID = uuid.New()
	c.Dependencies[0] = uuid.New()
	if *task.RowID != row {
		t.Fatal("clone shares row pointer")
	}
	if task.Dependencies[0] == c.Dependencies[0] {
		t.Fatal("clone shares dependency slice")
	}
}
