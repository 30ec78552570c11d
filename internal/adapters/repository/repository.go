// Package repository persists the planning model in PostgreSQL through sqlx.
// Every call is scoped to the actor carried by the context and fails with
// entities.ErrUnauthorized when the actor does not own the project.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/database"
	"github.com/aeonplan/core/internal/ports"
)

// New returns every repository backed by db
func New(db *database.DB) ports.Repositories {
	return ports.Repositories{
		Projects:      NewProjectRepository(db),
		BoardTasks:    NewBoardTaskRepository(db),
		Labels:        NewLabelRepository(db),
		TimelineTasks: NewTimelineTaskRepository(db),
		Rows:          NewRowRepository(db),
		Checklists:    NewChecklistRepository(db),
	}
}

func actor(ctx context.Context) (uuid.UUID, error) {
	id, ok := ports.ActorFrom(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: no actor in context", entities.ErrUnauthorized)
	}
	return id, nil
}

// ensureProject checks that the actor owns projectID
func ensureProject(ctx context.Context, q sqlx.QueryerContext, projectID uuid.UUID) error {
	userID, err := actor(ctx)
	if err != nil {
		return err
	}
	var owner uuid.UUID
	err = sqlx.GetContext(ctx, q, &owner, `SELECT user_id FROM projects WHERE id = $1`, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrProjectNotFound
		}
		return mapError("check project owner", err)
	}
	if owner != userID {
		return fmt.Errorf("%w: project %s", entities.ErrUnauthorized, projectID)
	}
	return nil
}

// ensureTask checks that the actor owns the project of board task taskID
func ensureTask(ctx context.Context, q sqlx.QueryerContext, taskID uuid.UUID) error {
	userID, err := actor(ctx)
	if err != nil {
		return err
	}
	var owner uuid.UUID
	query := `
		SELECT p.user_id FROM board_tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.id = $1`
	err = sqlx.GetContext(ctx, q, &owner, query, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return mapError("check task owner", err)
	}
	if owner != userID {
		return fmt.Errorf("%w: task %s", entities.ErrUnauthorized, taskID)
	}
	return nil
}

// mapError classifies a driver error. Constraint and data errors are the
// caller's fault; everything else is a transport failure.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			return fmt.Errorf("%s: %w: %s", op, entities.ErrValidation, pqErr.Message)
		case "42":
			if pqErr.Code == "42501" {
				return fmt.Errorf("%s: %w: %s", op, entities.ErrUnauthorized, pqErr.Message)
			}
		}
	}
	return fmt.Errorf("%s: %w: %v", op, entities.ErrTransport, err)
}

func rowsAffected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// setClause builds the SET list of a partial UPDATE
type setClause struct {
	parts []string
	args  []interface{}
}

func (s *setClause) add(column string, value interface{}) {
	s.args = append(s.args, value)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setClause) empty() bool {
	return len(s.parts) == 0
}

// arg appends a value used outside the SET list and returns its placeholder
func (s *setClause) arg(value interface{}) string {
	s.args = append(s.args, value)
	return fmt.Sprintf("$%d", len(s.args))
}

func (s *setClause) String() string {
	return strings.Join(s.parts, ", ")
}
