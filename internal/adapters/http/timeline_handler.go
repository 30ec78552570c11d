package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

// TimelineHandler serves the timeline of a workspace
type TimelineHandler struct {
	base
}

func NewTimelineHandler(workspaces Workspaces, logger *logger.Logger) *TimelineHandler {
	return &TimelineHandler{base: base{workspaces: workspaces, logger: logger}}
}

// MoveBarRequest is a finished bar drag. RowID wins over Y when both are set.
type MoveBarRequest struct {
	DX    float64    `json:"dx"`
	RowID *uuid.UUID `json:"row_id,omitempty"`
	Y     *float64   `json:"y,omitempty"`
}

type UpdateRowRequest struct {
	Name  *string         `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Color *entities.Color `json:"color,omitempty"`
}

type ReorderRowsRequest struct {
	From int `json:"from" validate:"min=0"`
	To   int `json:"to" validate:"min=0"`
}

type ScaleRequest struct {
	Scale entities.TimeScale `json:"scale" validate:"required"`
}

type WindowRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

func (h *TimelineHandler) GetTimeline(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Get timeline failed", err)
	}
	return c.JSON(http.StatusOK, w.Timeline.Snapshot())
}

// GetLayout returns the header columns and the geometry of every bar
func (h *TimelineHandler) GetLayout(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Get layout failed", err)
	}
	layout, err := w.Timeline.Layout()
	if err != nil {
		return h.fail(c, "Get layout failed", err)
	}
	return c.JSON(http.StatusOK, layout)
}

func (h *TimelineHandler) CreateTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Create timeline task failed", err)
	}
	var req gantt.NewTask
	if err := bind(c, &req); err != nil {
		return err
	}
	task, err := w.Timeline.AddTask(ctx, req)
	if err != nil {
		return h.fail(c, "Create timeline task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *TimelineHandler) UpdateTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Update timeline task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req gantt.TaskChanges
	if err := bind(c, &req); err != nil {
		return err
	}
	task, err := w.Timeline.UpdateTask(ctx, taskID, req)
	if err != nil {
		return h.fail(c, "Update timeline task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TimelineHandler) DeleteTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Delete timeline task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	if err := w.Timeline.RemoveTask(ctx, taskID); err != nil {
		return h.fail(c, "Delete timeline task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MoveBar shifts a bar by a pixel distance and optionally drops it on another row
func (h *TimelineHandler) MoveBar(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Move bar failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req MoveBarRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	overRow := req.RowID
	if overRow == nil && req.Y != nil {
		// a drop outside every lane keeps the bar's row
		overRow, err = w.Timeline.RowAt(*req.Y)
		if err != nil && !errors.Is(err, entities.ErrRowNotFound) {
			return h.fail(c, "Move bar failed", err)
		}
	}
	res, err := w.Timeline.MoveBar(ctx, taskID, req.DX, overRow)
	if err != nil {
		return h.fail(c, "Move bar failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TimelineHandler) SelectTask(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Select timeline task failed", err)
	}
	var req SelectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Timeline.SelectTask(req.TaskID); err != nil {
		return h.fail(c, "Select timeline task failed", err)
	}
	return c.JSON(http.StatusOK, w.Timeline.Snapshot())
}

func (h *TimelineHandler) CreateRow(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Create row failed", err)
	}
	var req gantt.NewRow
	if err := bind(c, &req); err != nil {
		return err
	}
	row, err := w.Timeline.AddRow(ctx, req)
	if err != nil {
		return h.fail(c, "Create row failed", err)
	}
	return c.JSON(http.StatusCreated, row)
}

func (h *TimelineHandler) UpdateRow(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Update row failed", err)
	}
	rowID, err := paramUUID(c, "row")
	if err != nil {
		return err
	}
	var req UpdateRowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	row, err := w.Timeline.UpdateRow(ctx, rowID, req.Name, req.Color)
	if err != nil {
		return h.fail(c, "Update row failed", err)
	}
	return c.JSON(http.StatusOK, row)
}

// DeleteRow removes a lane; its bars move to the unassigned lane
func (h *TimelineHandler) DeleteRow(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Delete row failed", err)
	}
	rowID, err := paramUUID(c, "row")
	if err != nil {
		return err
	}
	if err := w.Timeline.RemoveRow(ctx, rowID); err != nil {
		return h.fail(c, "Delete row failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderRows moves a lane. The new order is not written to storage.
func (h *TimelineHandler) ReorderRows(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Reorder rows failed", err)
	}
	var req ReorderRowsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Timeline.ReorderRows(req.From, req.To); err != nil {
		return h.fail(c, "Reorder rows failed", err)
	}
	return c.JSON(http.StatusOK, w.Timeline.Rows())
}

func (h *TimelineHandler) SetScale(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Set scale failed", err)
	}
	var req ScaleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Timeline.SetTimeScale(req.Scale); err != nil {
		return h.fail(c, "Set scale failed", err)
	}
	return h.layout(c, w.Timeline)
}

func (h *TimelineHandler) SetWindow(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Set window failed", err)
	}
	var req WindowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Timeline.SetWindow(timeline.Window{Start: req.Start, End: req.End}); err != nil {
		return h.fail(c, "Set window failed", err)
	}
	return h.layout(c, w.Timeline)
}

func (h *TimelineHandler) layout(c echo.Context, tl *gantt.Store) error {
	layout, err := tl.Layout()
	if err != nil {
		return h.fail(c, "Get layout failed", err)
	}
	return c.JSON(http.StatusOK, layout)
}
