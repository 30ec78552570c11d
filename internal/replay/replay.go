// Package replay drives a workspace from a YAML script against in-memory
// repositories. It is used to reproduce board and timeline sessions offline.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/aeonplan/core/internal/adapters/repository/memory"
	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/application/coordinator"
	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/application/workspace"
	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

var (
	ErrUnknownOp  = errors.New("unknown op")
	ErrUnknownRef = errors.New("unknown ref")
	ErrUnexpected = errors.New("unexpected outcome")
)

// Script is a seeded project and the steps to run against it
type Script struct {
	Project ProjectSeed `yaml:"project"`
	Labels  []LabelSeed `yaml:"labels"`
	Steps   []Step      `yaml:"steps"`
}

type ProjectSeed struct {
	Name  string             `yaml:"name"`
	Scale entities.TimeScale `yaml:"scale"`
	Start time.Time          `yaml:"start"`
	End   time.Time          `yaml:"end"`
}

type LabelSeed struct {
	Ref   string         `yaml:"ref"`
	Name  string         `yaml:"name"`
	Color entities.Color `yaml:"color"`
}

// Step is one operation. Only the fields the op reads need to be set; task,
// row, label, item and over name refs bound by earlier steps or seeds.
type Step struct {
	Op     string              `yaml:"op"`
	Ref    string              `yaml:"ref,omitempty"`
	Name   string              `yaml:"name,omitempty"`
	Task   string              `yaml:"task,omitempty"`
	Row    string              `yaml:"row,omitempty"`
	Label  string              `yaml:"label,omitempty"`
	Item   string              `yaml:"item,omitempty"`
	Over   string              `yaml:"over,omitempty"`
	Status entities.TaskStatus `yaml:"status,omitempty"`
	Index  int                 `yaml:"index,omitempty"`
	Start  time.Time           `yaml:"start,omitempty"`
	End    time.Time           `yaml:"end,omitempty"`
	DX     float64             `yaml:"dx,omitempty"`
	Scale  entities.TimeScale  `yaml:"scale,omitempty"`
	From   int                 `yaml:"from,omitempty"`
	To     int                 `yaml:"to,omitempty"`
	Target string              `yaml:"target,omitempty"`
	Error  string              `yaml:"error,omitempty"`
	// Expect is the error kind the step must fail with, or "conflict" for
	// drag protocol errors. Empty means the step must succeed.
	Expect string `yaml:"expect,omitempty"`
}

// Parse decodes a script, rejecting unknown fields
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	return &s, nil
}

type StepResult struct {
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Persisted is what reached the repositories once every background call finished
type Persisted struct {
	BoardTasks    []*entities.BoardTask    `json:"board_tasks"`
	TimelineTasks []*entities.TimelineTask `json:"timeline_tasks"`
	Rows          []*entities.Row          `json:"rows"`
}

type Report struct {
	Steps     []StepResult   `json:"steps"`
	Board     board.Snapshot `json:"board"`
	Timeline  gantt.Snapshot `json:"timeline"`
	Persisted Persisted      `json:"persisted"`
}

// Runner holds one replay session
type Runner struct {
	mem       *memory.Store
	coord     *coordinator.Coordinator
	ws        *workspace.Workspace
	projectID uuid.UUID
	refs      map[string]uuid.UUID
	logger    *logger.Logger
}

// New seeds the in-memory repositories from s and opens a workspace over them
func New(ctx context.Context, s *Script, projection *timeline.Projection, log *logger.Logger) (*Runner, error) {
	mem := memory.New()
	owner := uuid.New()
	p := mem.AddProject(entities.Project{
		UserID:    owner,
		Name:      s.Project.Name,
		TimeScale: s.Project.Scale,
		StartDate: s.Project.Start,
		EndDate:   s.Project.End,
	})

	r := &Runner{
		mem:       mem,
		projectID: p.ID,
		refs:      make(map[string]uuid.UUID),
		logger:    log.WithComponent("replay"),
	}
	for _, l := range s.Labels {
		label := mem.AddLabel(entities.Label{ProjectID: p.ID, Name: l.Name, Color: l.Color})
		r.bind(l.Ref, label.ID)
	}

	r.coord = coordinator.New(coordinator.Config{CallTimeout: 5 * time.Second}, log, coordinator.NewMetrics(prometheus.NewRegistry()))
	ws, err := workspace.New(owner, p.ID, mem.Repositories(), projection, r.coord, log, workspace.Config{}, nil)
	if err != nil {
		return nil, err
	}
	r.ws = ws
	if err := ws.Open(ctx); err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	return r, nil
}

// Run executes a script and reports the final state. It stops at the first
// step whose outcome differs from its expectation.
func Run(ctx context.Context, s *Script, projection *timeline.Projection, log *logger.Logger) (*Report, error) {
	r, err := New(ctx, s, projection, log)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	report := &Report{}
	for i, step := range s.Steps {
		res, err := r.Step(ctx, i, step)
		report.Steps = append(report.Steps, res)
		if err != nil {
			return report, err
		}
	}
	r.coord.Wait()

	report.Board = r.ws.Board.Snapshot()
	report.Timeline = r.ws.Timeline.Snapshot()
	report.Persisted = Persisted{
		BoardTasks:    r.mem.BoardTasks(r.projectID),
		TimelineTasks: r.mem.TimelineTasks(r.projectID),
		Rows:          r.mem.Rows(r.projectID),
	}
	return report, nil
}

// Close drops store subscriptions and waits for background calls
func (r *Runner) Close() {
	r.ws.Close()
	r.coord.Wait()
}

// Step runs a single step and checks it against Expect
func (r *Runner) Step(ctx context.Context, index int, step Step) (StepResult, error) {
	res := StepResult{Index: index, Op: step.Op, Outcome: "ok"}
	opErr := r.apply(r.ws.Context(ctx), step)
	if opErr != nil {
		res.Outcome = outcome(opErr)
		res.Error = opErr.Error()
	}

	if errors.Is(opErr, ErrUnknownOp) || errors.Is(opErr, ErrUnknownRef) {
		return res, fmt.Errorf("step %d (%s): %w", index, step.Op, opErr)
	}
	want := step.Expect
	if want == "" {
		want = "ok"
	}
	if res.Outcome != want {
		return res, fmt.Errorf("step %d (%s): %w: want %s, got %s (%v)", index, step.Op, ErrUnexpected, want, res.Outcome, opErr)
	}
	r.logger.Debugw("Step replayed", "index", index, "op", step.Op, "outcome", res.Outcome)
	return res, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, board.ErrDragInProgress),
		errors.Is(err, gantt.ErrRowDragInProgress),
		errors.Is(err, drag.ErrNotDragging):
		return "conflict"
	case errors.Is(err, timeline.ErrInvalidScale),
		errors.Is(err, timeline.ErrInvalidWindow),
		errors.Is(err, timeline.ErrWindowTooLarge):
		return string(entities.KindValidation)
	}
	return string(entities.Classify(err))
}

func (r *Runner) bind(ref string, id uuid.UUID) {
	if ref != "" {
		r.refs[ref] = id
	}
}

func (r *Runner) ref(name string) (uuid.UUID, error) {
	id, ok := r.refs[name]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w %q", ErrUnknownRef, name)
	}
	return id, nil
}

// optionalRef resolves name when set
func (r *Runner) optionalRef(name string) (*uuid.UUID, error) {
	if name == "" {
		return nil, nil
	}
	id, err := r.ref(name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
