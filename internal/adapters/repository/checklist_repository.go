package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/database"
	"github.com/aeonplan/core/internal/ports"
)

const checklistColumns = `id, task_id, title, completed, start_date, end_date, order_index, created_at`

type ChecklistRepository struct {
	db *database.DB
}

func NewChecklistRepository(db *database.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

func (r *ChecklistRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*entities.ChecklistItem, error) {
	if err := ensureTask(ctx, r.db.DB, taskID); err != nil {
		return nil, err
	}
	var items []*entities.ChecklistItem
	query := `SELECT ` + checklistColumns + ` FROM checklist_items
		WHERE task_id = $1 ORDER BY order_index, created_at`
	if err := r.db.DB.SelectContext(ctx, &items, query, taskID); err != nil {
		return nil, mapError("list checklist", err)
	}
	return items, nil
}

func (r *ChecklistRepository) Create(ctx context.Context, item *entities.ChecklistItem) (*entities.ChecklistItem, error) {
	if err := ensureTask(ctx, r.db.DB, item.TaskID); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO checklist_items (id, task_id, title, completed, start_date, end_date, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	err := r.db.DB.QueryRowxContext(ctx, query,
		item.ID, item.TaskID, item.Title, item.Completed, item.StartDate, item.EndDate, item.OrderIndex, item.CreatedAt,
	).Scan(&item.CreatedAt)
	if err != nil {
		return nil, mapError("create checklist item", err)
	}
	return item, nil
}

func (r *ChecklistRepository) Update(ctx context.Context, id, taskID uuid.UUID, patch ports.ChecklistPatch) (*entities.ChecklistItem, error) {
	if err := ensureTask(ctx, r.db.DB, taskID); err != nil {
		return nil, err
	}

	var set setClause
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Completed != nil {
		set.add("completed", *patch.Completed)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.EndDate != nil {
		set.add("end_date", *patch.EndDate)
	}
	if patch.OrderIndex != nil {
		set.add("order_index", *patch.OrderIndex)
	}
	if set.empty() {
		// nothing to write, return the current row
		var item entities.ChecklistItem
		err := r.db.DB.GetContext(ctx, &item,
			`SELECT `+checklistColumns+` FROM checklist_items WHERE id = $1 AND task_id = $2`, id, taskID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrChecklistNotFound
		}
		if err != nil {
			return nil, mapError("get checklist item", err)
		}
		return &item, nil
	}

	query := `UPDATE checklist_items SET ` + set.String() +
		` WHERE id = ` + set.arg(id) + ` AND task_id = ` + set.arg(taskID) +
		` RETURNING ` + checklistColumns

	var item entities.ChecklistItem
	if err := r.db.DB.GetContext(ctx, &item, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrChecklistNotFound
		}
		return nil, mapError("update checklist item", err)
	}
	return &item, nil
}

func (r *ChecklistRepository) Delete(ctx context.Context, id, taskID uuid.UUID) error {
	if err := ensureTask(ctx, r.db.DB, taskID); err != nil {
		return err
	}
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM checklist_items WHERE id = $1 AND task_id = $2`, id, taskID)
	if err != nil {
		return mapError("delete checklist item", err)
	}
	return rowsAffected("delete checklist item", res, entities.ErrChecklistNotFound)
}
