package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateProject persists a project and its author membership atomically.
// If either insert fails the whole creation rolls back, so a project can
// never exist without an author-role membership for its creator.
func (s *PostgresService) CreateProject(ctx context.Context, project *Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (title, description, category, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		project.Title, project.Description, project.Category, project.AuthorID).
		Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", mapConstraintError(err))
	}

	query = `
		INSERT INTO memberships (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, query, project.ID, project.AuthorID, RoleAuthor); err != nil {
		return fmt.Errorf("failed to create author membership: %w", mapConstraintError(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project creation: %w", err)
	}

	return nil
}

// ProjectByID retrieves a project by ID
func (s *PostgresService) ProjectByID(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, title, description, category, author_id, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	project := &Project{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Title, &project.Description, &project.Category,
		&project.AuthorID, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// ListProjectsForUser returns the projects the user holds a membership on,
// newest first. Non-members never see a project in any listing.
func (s *PostgresService) ListProjectsForUser(ctx context.Context, userID int64) ([]*Project, error) {
	query := `
		SELECT p.id, p.title, p.description, p.category, p.author_id, p.created_at, p.updated_at
		FROM projects p
		JOIN memberships m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		if err := rows.Scan(
			&project.ID, &project.Title, &project.Description, &project.Category,
			&project.AuthorID, &project.CreatedAt, &project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// UpdateProject updates a project's mutable fields. The author is immutable.
func (s *PostgresService) UpdateProject(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects
		SET title = $1, description = $2, category = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		project.Title, project.Description, project.Category, project.ID).
		Scan(&project.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update project: %w", mapConstraintError(err))
	}

	return nil
}

// DeleteProject removes a project. Memberships, issues and their comments go
// with it through the schema's cascade rules.
func (s *PostgresService) DeleteProject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}

	return nil
}
