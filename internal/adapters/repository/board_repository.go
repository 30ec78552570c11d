package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/database"
	"github.com/aeonplan/core/internal/ports"
)

const boardTaskColumns = `id, project_id, name, description, status, priority, color,
	start_date, end_date, on_timeline, order_index, created_at, updated_at`

type BoardTaskRepository struct {
	db *database.DB
}

func NewBoardTaskRepository(db *database.DB) *BoardTaskRepository {
	return &BoardTaskRepository{db: db}
}

// ListByProject returns every card of the project with its label ids
func (r *BoardTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.BoardTask, error) {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return nil, err
	}

	var tasks []*entities.BoardTask
	query := `SELECT ` + boardTaskColumns + ` FROM board_tasks
		WHERE project_id = $1
		ORDER BY status, order_index, created_at`
	if err := r.db.DB.SelectContext(ctx, &tasks, query, projectID); err != nil {
		return nil, mapError("list board tasks", err)
	}

	var links []struct {
		TaskID  uuid.UUID `db:"task_id"`
		LabelID uuid.UUID `db:"label_id"`
	}
	linkQuery := `
		SELECT tl.task_id, tl.label_id FROM task_labels tl
		JOIN board_tasks t ON t.id = tl.task_id
		WHERE t.project_id = $1`
	if err := r.db.DB.SelectContext(ctx, &links, linkQuery, projectID); err != nil {
		return nil, mapError("list task labels", err)
	}

	byID := make(map[uuid.UUID]*entities.BoardTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, l := range links {
		if t, ok := byID[l.TaskID]; ok {
			t.Labels = append(t.Labels, l.LabelID)
		}
	}
	return tasks, nil
}

// Create inserts a card and its label links in one transaction
func (r *BoardTaskRepository) Create(ctx context.Context, task *entities.BoardTask) (*entities.BoardTask, error) {
	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := ensureProject(ctx, tx, task.ProjectID); err != nil {
			return err
		}

		query := `
			INSERT INTO board_tasks (id, project_id, name, description, status, priority, color,
				start_date, end_date, on_timeline, order_index, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at, updated_at`
		err := tx.QueryRowxContext(ctx, query,
			task.ID, task.ProjectID, task.Name, task.Description, task.Status, task.Priority, task.Color,
			task.StartDate, task.EndDate, task.OnTimeline, task.OrderIndex, task.CreatedAt, task.UpdatedAt,
		).Scan(&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return mapError("create board task", err)
		}

		for _, labelID := range task.Labels {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_labels (task_id, label_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				task.ID, labelID,
			); err != nil {
				return mapError("link label", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies the non-nil fields of patch
func (r *BoardTaskRepository) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.BoardTaskPatch) (*entities.BoardTask, error) {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return nil, err
	}

	var set setClause
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.Priority != nil {
		set.add("priority", *patch.Priority)
	}
	if patch.Color != nil {
		set.add("color", *patch.Color)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set.add("end_date", *patch.EndDate)
	}
	if patch.OnTimeline != nil {
		set.add("on_timeline", *patch.OnTimeline)
	}
	if patch.OrderIndex != nil {
		set.add("order_index", *patch.OrderIndex)
	}
	set.parts = append(set.parts, "updated_at = now()")

	query := `UPDATE board_tasks SET ` + set.String() +
		` WHERE id = ` + set.arg(id) + ` AND project_id = ` + set.arg(projectID) +
		` RETURNING ` + boardTaskColumns

	var task entities.BoardTask
	if err := r.db.DB.GetContext(ctx, &task, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, mapError("update board task", err)
	}
	return &task, nil
}

func (r *BoardTaskRepository) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return err
	}
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM board_tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return mapError("delete board task", err)
	}
	return rowsAffected("delete board task", res, entities.ErrTaskNotFound)
}

// Reorder writes a whole reconciliation batch atomically
func (r *BoardTaskRepository) Reorder(ctx context.Context, projectID uuid.UUID, orders []ports.BoardTaskOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := ensureProject(ctx, tx, projectID); err != nil {
			return err
		}
		query := `
			UPDATE board_tasks
			SET order_index = $1, status = COALESCE($2, status), updated_at = now()
			WHERE id = $3 AND project_id = $4`
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return mapError("prepare reorder", err)
		}
		defer stmt.Close()

		for _, o := range orders {
			var status *string
			if o.Status != nil {
				s := string(*o.Status)
				status = &s
			}
			res, err := stmt.ExecContext(ctx, o.OrderIndex, status, o.ID, projectID)
			if err != nil {
				return mapError("reorder board task", err)
			}
			if err := rowsAffected("reorder board task", res, entities.ErrTaskNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

// LabelRepository reads labels and manages their links to cards
type LabelRepository struct {
	db *database.DB
}

func NewLabelRepository(db *database.DB) *LabelRepository {
	return &LabelRepository{db: db}
}

func (r *LabelRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Label, error) {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return nil, err
	}
	var labels []*entities.Label
	query := `SELECT id, project_id, name, color, created_at FROM labels WHERE project_id = $1 ORDER BY name`
	if err := r.db.DB.SelectContext(ctx, &labels, query, projectID); err != nil {
		return nil, mapError("list labels", err)
	}
	return labels, nil
}

func (r *LabelRepository) AttachToTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return err
	}
	query := `
		INSERT INTO task_labels (task_id, label_id)
		SELECT t.id, l.id FROM board_tasks t, labels l
		WHERE t.id = $1 AND l.id = $2 AND t.project_id = $3 AND l.project_id = $3
		ON CONFLICT DO NOTHING`
	if _, err := r.db.DB.ExecContext(ctx, query, taskID, labelID, projectID); err != nil {
		return mapError("attach label", err)
	}
	return nil
}

func (r *LabelRepository) DetachFromTask(ctx context.Context, projectID, taskID, labelID uuid.UUID) error {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return err
	}
	query := `
		DELETE FROM task_labels tl USING board_tasks t
		WHERE tl.task_id = t.id AND t.project_id = $1 AND tl.task_id = $2 AND tl.label_id = $3`
	if _, err := r.db.DB.ExecContext(ctx, query, projectID, taskID, labelID); err != nil {
		return mapError("detach label", err)
	}
	return nil
}
