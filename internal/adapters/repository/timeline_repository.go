package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/database"
	"github.com/aeonplan/core/internal/ports"
)

const timelineTaskColumns = `id, project_id, row_id, name, description, start_date, end_date,
	color, progress, dependencies, created_at, updated_at`

// timelineTaskRecord carries the UUID[] column that the entity keeps out of sqlx
type timelineTaskRecord struct {
	entities.TimelineTask
	Deps pq.StringArray `db:"dependencies"`
}

func (r timelineTaskRecord) entity() (*entities.TimelineTask, error) {
	task := r.TimelineTask
	task.Dependencies = make([]uuid.UUID, 0, len(r.Deps))
	for _, raw := range r.Deps {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("task %s: bad dependency %q: %w", task.ID, raw, entities.ErrTransport)
		}
		task.Dependencies = append(task.Dependencies, id)
	}
	return &task, nil
}

func dependencyArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type TimelineTaskRepository struct {
	db *database.DB
}

func NewTimelineTaskRepository(db *database.DB) *TimelineTaskRepository {
	return &TimelineTaskRepository{db: db}
}

func (r *TimelineTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.TimelineTask, error) {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return nil, err
	}

	var records []timelineTaskRecord
	query := `SELECT ` + timelineTaskColumns + ` FROM gantt_tasks
		WHERE project_id = $1 ORDER BY created_at, id`
	if err := r.db.DB.SelectContext(ctx, &records, query, projectID); err != nil {
		return nil, mapError("list timeline tasks", err)
	}

	tasks := make([]*entities.TimelineTask, 0, len(records))
	for _, rec := range records {
		task, err := rec.entity()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *TimelineTaskRepository) Create(ctx context.Context, task *entities.TimelineTask) (*entities.TimelineTask, error) {
	if err := ensureProject(ctx, r.db.DB, task.ProjectID); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO gantt_tasks (id, project_id, row_id, name, description, start_date, end_date,
			color, progress, dependencies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`
	err := r.db.DB.QueryRowxContext(ctx, query,
		task.ID, task.ProjectID, task.RowID, task.Name, task.Description, task.StartDate, task.EndDate,
		task.Color, task.Progress, dependencyArray(task.Dependencies), task.CreatedAt, task.UpdatedAt,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, mapError("create timeline task", err)
	}
	return task, nil
}

func (r *TimelineTaskRepository) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.TimelineTaskPatch) (*entities.TimelineTask, error) {
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
	if patch.ClearRow {
		set.parts = append(set.parts, "row_id = NULL")
	} else if patch.RowID != nil {
		set.add("row_id", *patch.RowID)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set.add("end_date", *patch.EndDate)
	}
	if patch.Color != nil {
		set.add("color", *patch.Color)
	}
	if patch.Progress != nil {
		set.add("progress", *patch.Progress)
	}
	if patch.Dependencies != nil {
		set.add("dependencies", dependencyArray(*patch.Dependencies))
	}
	set.parts = append(set.parts, "updated_at = now()")

	query := `UPDATE gantt_tasks SET ` + set.String() +
		` WHERE id = ` + set.arg(id) + ` AND project_id = ` + set.arg(projectID) +
		` RETURNING ` + timelineTaskColumns

	var rec timelineTaskRecord
	if err := r.db.DB.GetContext(ctx, &rec, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, mapError("update timeline task", err)
	}
	return rec.entity()
}

func (r *TimelineTaskRepository) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return err
	}
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM gantt_tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return mapError("delete timeline task", err)
	}
	return rowsAffected("delete timeline task", res, entities.ErrTaskNotFound)
}

type RowRepository struct {
	db *database.DB
}

func NewRowRepository(db *database.DB) *RowRepository {
	return &RowRepository{db: db}
}

func (r *RowRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*entities.Row, error) {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return nil, err
	}
	var rows []*entities.Row
	query := `SELECT id, project_id, name, color, order_index, created_at FROM rows
		WHERE project_id = $1 ORDER BY order_index, created_at`
	if err := r.db.DB.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, mapError("list rows", err)
	}
	return rows, nil
}

func (r *RowRepository) Create(ctx context.Context, row *entities.Row) (*entities.Row, error) {
	if err := ensureProject(ctx, r.db.DB, row.ProjectID); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO rows (id, project_id, name, color, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := r.db.DB.QueryRowxContext(ctx, query,
		row.ID, row.ProjectID, row.Name, row.Color, row.OrderIndex, row.CreatedAt,
	).Scan(&row.CreatedAt)
	if err != nil {
		return nil, mapError("create row", err)
	}
	return row, nil
}

func (r *RowRepository) Update(ctx context.Context, id, projectID uuid.UUID, patch ports.RowPatch) (*entities.Row, error) {
	var set setClause
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Color != nil {
		set.add("color", *patch.Color)
	}
	if patch.OrderIndex != nil {
		set.add("order_index", *patch.OrderIndex)
	}
	if set.empty() {
		return nil, fmt.Errorf("update row: %w: nothing to change", entities.ErrValidation)
	}

	var row entities.Row
	err := r.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := ensureProject(ctx, tx, projectID); err != nil {
			return err
		}
		query := `UPDATE rows SET ` + set.String() +
			` WHERE id = ` + set.arg(id) + ` AND project_id = ` + set.arg(projectID) +
			` RETURNING id, project_id, name, color, order_index, created_at`
		if err := tx.GetContext(ctx, &row, query, set.args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return entities.ErrRowNotFound
			}
			return mapError("update row", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes the lane; the foreign key unassigns its tasks
func (r *RowRepository) Delete(ctx context.Context, id, projectID uuid.UUID) error {
	if err := ensureProject(ctx, r.db.DB, projectID); err != nil {
		return err
	}
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM rows WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return mapError("delete row", err)
	}
	return rowsAffected("delete row", res, entities.ErrRowNotFound)
}
