package gantt

import (
	"sort"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/ordering"
	"github.com/aeonplan/core/internal/domain/timeline"
)

// Bar is a placed timeline task. Lane equals len(Rows) for unassigned tasks.
type Bar struct {
	TaskID uuid.UUID  `json:"task_id"`
	RowID  *uuid.UUID `json:"row_id,omitempty"`
	Lane   int        `json:"lane"`
	timeline.Geometry
}

// Layout is everything needed to draw the grid
type Layout struct {
	Scale       entities.TimeScale `json:"scale"`
	Window      timeline.Window    `json:"window"`
	Columns     []timeline.Column  `json:"columns"`
	CanvasWidth float64            `json:"canvas_width"`
	Lanes       int                `json:"lanes"`
	Bars        []Bar              `json:"bars"`
}

type Snapshot struct {
	ProjectID      uuid.UUID               `json:"project_id"`
	Version        uint64                  `json:"version"`
	Rows           []entities.Row          `json:"rows"`
	Tasks          []entities.TimelineTask `json:"tasks"`
	Layout         Layout                  `json:"layout"`
	SelectedTaskID *uuid.UUID              `json:"selected_task_id,omitempty"`
	Dirty          bool                    `json:"dirty"`
	DraggingRowID  *uuid.UUID              `json:"dragging_row_id,omitempty"`
}

// Bar returns the placement of one task
func (s Snapshot) Bar(taskID uuid.UUID) (Bar, bool) {
	for _, b := range s.Layout.Bars {
		if b.TaskID == taskID {
			return b, true
		}
	}
	return Bar{}, false
}

// Layout computes the geometry of every bar for the current scale and window
func (s *Store) Layout() (Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layoutLocked(s.lanes)
}

func (s *Store) layoutLocked(lanes *ordering.Model[uuid.UUID]) (Layout, error) {
	cols, err := s.projection.Columns(s.scale, s.window)
	if err != nil {
		return Layout{}, err
	}
	order := lanes.Group(s.projectID)
	laneOf := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		laneOf[id] = i
	}
	unassigned := len(order)

	out := Layout{
		Scale:       s.scale,
		Window:      s.window,
		Columns:     cols,
		CanvasWidth: float64(len(cols)) * s.projection.BucketWidth(s.scale),
		Lanes:       len(order),
		Bars:        make([]Bar, 0, len(s.sequence)),
	}
	for _, id := range s.sequence {
		t := s.tasks[id]
		lane := unassigned
		var rowID *uuid.UUID
		if t.RowID != nil {
			if i, ok := laneOf[*t.RowID]; ok {
				lane = i
				r := *t.RowID
				rowID = &r
			}
		}
		if lane == unassigned {
			out.Lanes = len(order) + 1
		}
		geo, err := s.projection.Geometry(s.scale, s.window.Start, t.StartDate, t.EndDate, lane)
		if err != nil {
			return Layout{}, err
		}
		out.Bars = append(out.Bars, Bar{TaskID: id, RowID: rowID, Lane: lane, Geometry: geo})
	}
	sort.SliceStable(out.Bars, func(i, j int) bool {
		if out.Bars[i].Lane != out.Bars[j].Lane {
			return out.Bars[i].Lane < out.Bars[j].Lane
		}
		return out.Bars[i].Offset < out.Bars[j].Offset
	})
	return out, nil
}

func (s *Store) snapshotLocked() Snapshot {
	lanes := s.lanes
	snap := Snapshot{
		ProjectID: s.projectID,
		Version:   s.version,
		Dirty:     s.dirty,
	}
	if id, ok := s.rowDrag.Active(); ok {
		lanes = s.rowDrag.View()
		snap.DraggingRowID = &id
	}

	snap.Rows = s.rowsLocked(lanes)
	snap.Tasks = make([]entities.TimelineTask, 0, len(s.sequence))
	for _, id := range s.sequence {
		snap.Tasks = append(snap.Tasks, *s.tasks[id].Clone())
	}
	layout, err := s.layoutLocked(lanes)
	if err != nil {
		// Scale and window are validated on every change, so this only
		// happens with a misconfigured projection.
		s.logger.Errorw("Failed to lay out timeline", "error", err)
	}
	snap.Layout = layout
	if s.selected != nil {
		id := *s.selected
		snap.SelectedTaskID = &id
	}
	return snap
}
