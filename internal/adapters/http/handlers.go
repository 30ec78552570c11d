package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/application/workspace"
	"github.com/aeonplan/core/internal/domain/drag"
	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/domain/timeline"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

// UserContextKey is where the identity middleware stores the caller's id
const UserContextKey = "user"

// Workspaces resolves the loaded workspace of a (user, project) pair
type Workspaces interface {
	Get(ctx context.Context, userID, projectID uuid.UUID) (*workspace.Workspace, error)
	Lookup(userID, projectID uuid.UUID) (*workspace.Workspace, bool)
	Evict(userID, projectID uuid.UUID)
}

// Identity reads the caller from header and rejects requests without a valid one
func Identity(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(header)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing user header")
			}
			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user header")
			}
			c.Set(UserContextKey, userID)
			return next(c)
		}
	}
}

func getUserIDFromContext(c echo.Context) uuid.UUID {
	userID, ok := c.Get(UserContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

func paramUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name+" ID")
	}
	return id, nil
}

// bind decodes and validates the request body
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// base carries what every handler needs to reach a workspace
type base struct {
	workspaces Workspaces
	logger     *logger.Logger
}

// workspace returns the caller's ready workspace for the :project parameter
// and a context carrying the caller for persistence calls.
func (h *base) workspace(c echo.Context) (*workspace.Workspace, context.Context, error) {
	userID := getUserIDFromContext(c)
	if userID == uuid.Nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing user")
	}
	projectID, err := paramUUID(c, "project")
	if err != nil {
		return nil, nil, err
	}

	w, err := h.workspaces.Get(c.Request().Context(), userID, projectID)
	if err != nil {
		return nil, nil, err
	}
	if status, lastErr := w.Status(); status != workspace.StatusReady {
		if lastErr != nil {
			return nil, nil, lastErr
		}
		return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, "Workspace is "+string(status))
	}
	return w, w.Context(c.Request().Context()), nil
}

// fail converts a domain error into an HTTP error and logs server-side failures
func (h *base) fail(c echo.Context, msg string, err error) error {
	he := toHTTPError(err)
	if he.Code >= http.StatusInternalServerError {
		h.logger.Errorw(msg, "error", err, "kind", entities.Classify(err), "path", c.Path())
	}
	return he
}

func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch {
	case errors.Is(err, board.ErrDragInProgress),
		errors.Is(err, gantt.ErrRowDragInProgress),
		errors.Is(err, drag.ErrAlreadyDragging),
		errors.Is(err, drag.ErrNotDragging):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, timeline.ErrInvalidScale),
		errors.Is(err, timeline.ErrInvalidWindow),
		errors.Is(err, timeline.ErrWindowTooLarge):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	switch entities.Classify(err) {
	case entities.KindValidation:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case entities.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case entities.KindUnauthorized:
		return echo.NewHTTPError(http.StatusForbidden, "Access to project denied")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "Storage unavailable").SetInternal(err)
	}
}

// SnapshotReader returns the last snapshot fanned out for a project view
type SnapshotReader interface {
	Latest(ctx context.Context, projectID uuid.UUID, kind ports.SnapshotKind) (any, error)
}

// SnapshotReaderFunc adapts a function to SnapshotReader
type SnapshotReaderFunc func(ctx context.Context, projectID uuid.UUID, kind ports.SnapshotKind) (any, error)

func (f SnapshotReaderFunc) Latest(ctx context.Context, projectID uuid.UUID, kind ports.SnapshotKind) (any, error) {
	return f(ctx, projectID, kind)
}

// WorkspaceHandler serves workspace lifecycle requests
type WorkspaceHandler struct {
	base
	snapshots SnapshotReader
}

// NewWorkspaceHandler creates a workspace handler. snapshots may be nil.
func NewWorkspaceHandler(workspaces Workspaces, snapshots SnapshotReader, logger *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		base:      base{workspaces: workspaces, logger: logger},
		snapshots: snapshots,
	}
}

type WorkspaceResponse struct {
	ProjectID uuid.UUID         `json:"project_id"`
	Status    workspace.Status  `json:"status"`
	Error     string            `json:"error,omitempty"`
	Project   *entities.Project `json:"project,omitempty"`
	Dirty     bool              `json:"dirty"`
}

func workspaceResponse(w *workspace.Workspace) WorkspaceResponse {
	status, lastErr := w.Status()
	resp := WorkspaceResponse{
		ProjectID: w.ProjectID(),
		Status:    status,
		Dirty:     w.Board.Dirty() || w.Timeline.Dirty(),
	}
	if lastErr != nil {
		resp.Error = string(entities.Classify(lastErr))
	}
	if p, ok := w.Project(); ok {
		resp.Project = p
	}
	return resp
}

// GetWorkspace opens the workspace if needed and reports its load status
func (h *WorkspaceHandler) GetWorkspace(c echo.Context) error {
	userID := getUserIDFromContext(c)
	projectID, err := paramUUID(c, "project")
	if err != nil {
		return err
	}
	w, err := h.workspaces.Get(c.Request().Context(), userID, projectID)
	if w == nil {
		return h.fail(c, "Open workspace failed", err)
	}
	return c.JSON(http.StatusOK, workspaceResponse(w))
}

// Reload re-runs the bulk load, typically after a failed one
func (h *WorkspaceHandler) Reload(c echo.Context) error {
	userID := getUserIDFromContext(c)
	projectID, err := paramUUID(c, "project")
	if err != nil {
		return err
	}
	w, ok := h.workspaces.Lookup(userID, projectID)
	if !ok {
		// not open yet: the first Get is the load
		w, err = h.workspaces.Get(c.Request().Context(), userID, projectID)
	} else {
		err = w.Retry(c.Request().Context())
	}
	if err != nil {
		return h.fail(c, "Reload workspace failed", err)
	}
	return c.JSON(http.StatusOK, workspaceResponse(w))
}

// Close drops the in-memory workspace
func (h *WorkspaceHandler) Close(c echo.Context) error {
	projectID, err := paramUUID(c, "project")
	if err != nil {
		return err
	}
	h.workspaces.Evict(getUserIDFromContext(c), projectID)
	return c.NoContent(http.StatusNoContent)
}

// MarkClean clears the dirty flag of both views
func (h *WorkspaceHandler) MarkClean(c echo.Context) error {
	w, _, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Mark clean failed", err)
	}
	w.Board.MarkClean()
	w.Timeline.MarkClean()
	return c.JSON(http.StatusOK, workspaceResponse(w))
}

// LatestSnapshot returns the last snapshot fanned out for the :kind view
func (h *WorkspaceHandler) LatestSnapshot(c echo.Context) error {
	if h.snapshots == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Snapshot fan-out is disabled")
	}
	w, ctx, err := h.workspace(c)
	if err != nil {
		return h.fail(c, "Latest snapshot failed", err)
	}
	kind := ports.SnapshotKind(c.Param("kind"))
	if kind != ports.SnapshotBoard && kind != ports.SnapshotTimeline {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown snapshot kind")
	}
	snap, err := h.snapshots.Latest(ctx, w.ProjectID(), kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "No snapshot published yet")
	}
	return c.JSON(http.StatusOK, snap)
}

// MessageResponse is the body of every error response
type MessageResponse struct {
	Message string `json:"message"`
}
