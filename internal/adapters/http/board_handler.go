package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

// BoardHandler serves the kanban board of a workspace
type BoardHandler struct {
	base
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(workspaces Workspaces, logger *logger.Logger) *BoardHandler {
	return &BoardHandler{base: base{workspaces: workspaces, logger: logger}}
}

type MoveTaskRequest struct {
	Status entities.TaskStatus `json:"status" validate:"required,oneof=todo doing review done"`
	Index  int                 `json:"index" validate:"min=0"`
}

type ConvertRequest struct {
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   time.Time  `json:"end_date" validate:"required"`
	RowID     *uuid.UUID `json:"row_id,omitempty"`
}

type SelectRequest struct {
	TaskID *uuid.UUID `json:"task_id"`
}

type BeginDragRequest struct {
	TaskID uuid.UUID `json:"task_id" validate:"required"`
}

// HoverRequest names what the pointer is over: a card, a column, the trash or nothing
type HoverRequest struct {
	Over   string              `json:"over" validate:"required,oneof=task column trash none"`
	TaskID uuid.UUID           `json:"task_id"`
	Status entities.TaskStatus `json:"status"`
}

type HoverResponse struct {
	Changed bool           `json:"changed"`
	Board   board.Snapshot `json:"board"`
}

// GetBoard returns the current board snapshot
func (h *BoardHandler) GetBoard(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Get board failed", err)
	}
	return c.JSON(http.StatusOK, w.Board.Snapshot())
}

// CreateTask appends a card to its column
func (h *BoardHandler) CreateTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Create task failed", err)
	}
	var req board.NewTask
	if err := bind(c, &req); err != nil {
		return err
	}
	task, err := w.Board.AddTask(ctx, req)
	if err != nil {
		return h.fail(c, "Create task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial edit; a new status moves the card to the end of that column
func (h *BoardHandler) UpdateTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Update task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req board.TaskChanges
	if err := bind(c, &req); err != nil {
		return err
	}
	task, err := w.Board.UpdateTask(ctx, taskID, req)
	if err != nil {
		return h.fail(c, "Update task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *BoardHandler) DeleteTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Delete task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	if err := w.Board.RemoveTask(ctx, taskID); err != nil {
		return h.fail(c, "Delete task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MoveTask places a card at an exact position and returns the reorder batch
func (h *BoardHandler) MoveTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Move task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req MoveTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	batch, err := w.Board.MoveTask(ctx, taskID, req.Status, req.Index)
	if err != nil {
		return h.fail(c, "Move task failed", err)
	}
	return c.JSON(http.StatusOK, board.DropResult{TaskID: taskID, Batch: batch})
}

func (h *BoardHandler) AttachLabel(c echo.Context) error {
	return h.label(c, true)
}

func (h *BoardHandler) DetachLabel(c echo.Context) error {
	return h.label(c, false)
}

func (h *BoardHandler) label(c echo.Context, attach bool) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Change label failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	labelID, err := paramUUID(c, "label")
	if err != nil {
		return err
	}
	if attach {
		err = w.Board.AttachLabel(ctx, taskID, labelID)
	} else {
		err = w.Board.DetachLabel(ctx, taskID, labelID)
	}
	if err != nil {
		return h.fail(c, "Change label failed", err)
	}
	task, _ := w.Board.Task(taskID)
	return c.JSON(http.StatusOK, task)
}

// ConvertTask schedules a card on the timeline
func (h *BoardHandler) ConvertTask(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Convert task failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req ConvertRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	bar, err := w.ConvertToTimeline(ctx, taskID, req.StartDate, req.EndDate, req.RowID)
	if err != nil {
		return h.fail(c, "Convert task failed", err)
	}
	return c.JSON(http.StatusCreated, bar)
}

func (h *BoardHandler) SelectTask(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Select task failed", err)
	}
	var req SelectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Board.SelectTask(req.TaskID); err != nil {
		return h.fail(c, "Select task failed", err)
	}
	return c.JSON(http.StatusOK, w.Board.Snapshot())
}

// BeginDrag picks up a card
func (h *BoardHandler) BeginDrag(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Begin drag failed", err)
	}
	var req BeginDragRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := w.Board.BeginDrag(req.TaskID); err != nil {
		return h.fail(c, "Begin drag failed", err)
	}
	return c.JSON(http.StatusOK, w.Board.Snapshot())
}

// HoverDrag updates the speculative order; nothing is persisted
func (h *BoardHandler) HoverDrag(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Hover failed", err)
	}
	var req HoverRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var changed bool
	switch req.Over {
	case "task":
		changed, err = w.Board.HoverTask(req.TaskID)
	case "column":
		changed, err = w.Board.HoverColumn(req.Status)
	case "trash":
		changed, err = w.Board.HoverTrash()
	default:
		changed, err = w.Board.HoverNothing()
	}
	if err != nil {
		return h.fail(c, "Hover failed", err)
	}
	return c.JSON(http.StatusOK, HoverResponse{Changed: changed, Board: w.Board.Snapshot()})
}

// DropDrag commits the drag and returns what was persisted
func (h *BoardHandler) DropDrag(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Drop failed", err)
	}
	res, err := w.Board.Drop(ctx)
	if err != nil {
		return h.fail(c, "Drop failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *BoardHandler) CancelDrag(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Cancel drag failed", err)
	}
	if err := w.Board.CancelDrag(); err != nil {
		return h.fail(c, "Cancel drag failed", err)
	}
	return c.JSON(http.StatusOK, w.Board.Snapshot())
}

// GetChecklist loads a card's checklist from storage
func (h *BoardHandler) GetChecklist(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Get checklist failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	items, err := w.LoadChecklist(ctx, taskID)
	if err != nil {
		return h.fail(c, "Get checklist failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *BoardHandler) CreateChecklistItem(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Create checklist item failed", err)
	}
	taskID, err := paramUUID(c, "task")
	if err != nil {
		return err
	}
	var req board.NewChecklistItem
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := w.Board.AddChecklistItem(ctx, taskID, req)
	if err != nil {
		return h.fail(c, "Create checklist item failed", err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *BoardHandler) UpdateChecklistItem(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Update checklist item failed", err)
	}
	itemID, err := paramUUID(c, "item")
	if err != nil {
		return err
	}
	var req board.ChecklistChanges
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := w.Board.UpdateChecklistItem(ctx, itemID, req)
	if err != nil {
		return h.fail(c, "Update checklist item failed", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *BoardHandler) ToggleChecklistItem(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Toggle checklist item failed", err)
	}
	itemID, err := paramUUID(c, "item")
	if err != nil {
		return err
	}
	item, err := w.Board.ToggleChecklistItem(ctx, itemID)
	if err != nil {
		return h.fail(c, "Toggle checklist item failed", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *BoardHandler) DeleteChecklistItem(c echo.Context) error {
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Delete checklist item failed", err)
	}
	itemID, err := paramUUID(c, "item")
	if err != nil {
		return err
	}
	if err := w.Board.RemoveChecklistItem(ctx, itemID); err != nil {
		return h.fail(c, "Delete checklist item failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
