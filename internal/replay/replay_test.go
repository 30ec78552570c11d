package replay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

const session = `
project:
  name: Launch
  scale: week
  start: 2024-01-01
  end: 2024-03-31
labels:
  - {ref: bug, name: Bug, color: pink}
steps:
  - {op: add_task, name: Spec, ref: spec}
  - {op: add_task, name: Build, ref: build}
  - {op: attach_label, task: spec, label: bug}
  - {op: add_item, task: spec, name: Draft, ref: draft}
  - {op: toggle_item, item: draft}
  - {op: begin_drag, task: spec}
  - {op: begin_drag, task: build, expect: conflict}
  - {op: hover_column, status: done}
  - {op: drop}
  - {op: drop, expect: conflict}
  - {op: add_row, name: Design, ref: design}
  - {op: add_bar, name: Mockups, row: design, start: 2024-01-08, end: 2024-01-12, ref: mockups}
  - {op: move_bar, task: mockups, dx: 100}
  - {op: add_bar, name: Backwards, start: 2024-01-12, end: 2024-01-08, expect: validation}
  - {op: set_scale, scale: quarter, expect: validation}
  - {op: set_scale, scale: month}
  - {op: fail, target: board_tasks.update, error: connection reset}
  - {op: rename_task, task: build, name: Ship}
  - {op: recover, target: board_tasks.update}
`

func projection(t *testing.T) *timeline.Projection {
	t.Helper()
	p, err := timeline.New(timeline.DefaultConfig())
	if err != nil {
		t.Fatalf("timeline.New: %v", err)
	}
	return p
}

func TestRunSession(t *testing.T) {
	script, err := Parse(strings.NewReader(session))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	report, err := Run(context.Background(), script, projection(t), logger.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Steps) != len(script.Steps) {
		t.Fatalf("expected %d step results, got %d", len(script.Steps), len(report.Steps))
	}
	if got := report.Steps[6].Outcome; got != "conflict" {
		t.Errorf("second begin_drag outcome = %s", got)
	}

	done := report.Board.Column(entities.TaskStatusDone)
	if len(done.Tasks) != 1 || done.Tasks[0].Name != "Spec" {
		t.Fatalf("expected Spec in done, got %+v", done.Tasks)
	}

	if report.Timeline.Layout.Scale != entities.TimeScaleMonth {
		t.Errorf("scale = %s", report.Timeline.Layout.Scale)
	}
	if len(report.Timeline.Tasks) != 1 {
		t.Fatalf("expected one bar, got %d", len(report.Timeline.Tasks))
	}
	if want := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC); !report.Timeline.Tasks[0].StartDate.Equal(want) {
		t.Errorf("bar start = %v, want %v", report.Timeline.Tasks[0].StartDate, want)
	}

	// the rename failed in the background, so local and persisted state differ
	var local, persisted string
	for _, tv := range report.Board.Column(entities.TaskStatusTodo).Tasks {
		local = tv.Name
	}
	for _, task := range report.Persisted.BoardTasks {
		if task.Status == entities.TaskStatusTodo {
			persisted = task.Name
		}
	}
	if local != "Ship" || persisted != "Build" {
		t.Fatalf("local %q persisted %q", local, persisted)
	}
	if len(report.Persisted.Rows) != 1 || len(report.Persisted.TimelineTasks) != 1 {
		t.Fatalf("unexpected persisted timeline: %d rows, %d tasks", len(report.Persisted.Rows), len(report.Persisted.TimelineTasks))
	}
}

func TestRunStopsOnUnexpectedOutcome(t *testing.T) {
	script, err := Parse(strings.NewReader(`
project: {name: Launch}
steps:
  - {op: add_task, name: Spec, ref: spec}
  - {op: drop}
  - {op: add_task, name: Never}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	report, err := Run(context.Background(), script, projection(t), logger.Nop())
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
	if len(report.Steps) != 2 || report.Steps[1].Outcome != "conflict" {
		t.Fatalf("unexpected steps %+v", report.Steps)
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"unknown op", "project: {name: X}\nsteps:\n  - {op: juggle}\n", ErrUnknownOp},
		{"unknown ref", "project: {name: X}\nsteps:\n  - {op: begin_drag, task: ghost}\n", ErrUnknownRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse(strings.NewReader(tt.script))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := Run(context.Background(), script, projection(t), logger.Nop()); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseRejectsBadScripts(t *testing.T) {
	for name, src := range map[string]string{
		"no steps":      "project: {name: X}\n",
		"unknown field": "project: {name: X}\nsteps:\n  - {op: drop, colour: red}\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(src)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
