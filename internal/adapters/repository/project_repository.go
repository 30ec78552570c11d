package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/database"
)

type ProjectRepository struct {
	db *database.DB
}

func NewProjectRepository(db *database.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByID returns the project if the actor owns it
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Project, error) {
	userID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, name, description, time_scale, start_date, end_date, created_at, updated_at
		FROM projects WHERE id = $1`

	var project entities.Project
	if err := r.db.DB.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrProjectNotFound
		}
		return nil, mapError("get project", err)
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("%w: project %s", entities.ErrUnauthorized, id)
	}
	return &project, nil
}
