package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateIssue files an issue against a project. Title uniqueness within the
// project is backed by a constraint; concurrent creates with the same title
// resolve to a single winner and ErrDuplicateTitle for the loser.
func (s *PostgresService) CreateIssue(ctx context.Context, issue *Issue) error {
	if issue.Status == "" {
		issue.Status = StatusTodo
	}

	query := `
		INSERT INTO issues (project_id, title, description, tag, priority, status, reporter_id, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		issue.ProjectID, issue.Title, issue.Description, issue.Tag,
		issue.Priority, issue.Status, issue.ReporterID, issue.AssigneeID).
		Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", mapConstraintError(err))
	}

	return nil
}

// IssueByID retrieves an issue by ID
func (s *PostgresService) IssueByID(ctx context.Context, id int64) (*Issue, error) {
	query := `
		SELECT id, project_id, title, description, tag, priority, status, reporter_id, assignee_id, created_at, updated_at
		FROM issues
		WHERE id = $1
	`
	issue := &Issue{}
	var assigneeID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&issue.ID, &issue.ProjectID, &issue.Title, &issue.Description,
		&issue.Tag, &issue.Priority, &issue.Status, &issue.ReporterID,
		&assigneeID, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}

	if assigneeID.Valid {
		id := assigneeID.Int64
		issue.AssigneeID = &id
	}

	return issue, nil
}

// IssueTitleTaken reports whether another issue in the project already uses
// the title. excludeIssueID skips the issue itself when checking a rename.
func (s *PostgresService) IssueTitleTaken(ctx context.Context, projectID int64, title string, excludeIssueID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM issues WHERE project_id = $1 AND title = $2 AND id != $3)`

	var taken bool
	if err := s.db.QueryRowContext(ctx, query, projectID, title, excludeIssueID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check issue title: %w", err)
	}

	return taken, nil
}

// ListIssues retrieves all issues of a project, newest first
func (s *PostgresService) ListIssues(ctx context.Context, projectID int64) ([]*Issue, error) {
	query := `
		SELECT id, project_id, title, description, tag, priority, status, reporter_id, assignee_id, created_at, updated_at
		FROM issues
		WHERE project_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*Issue
	for rows.Next() {
		issue := &Issue{}
		var assigneeID sql.NullInt64
		if err := rows.Scan(
			&issue.ID, &issue.ProjectID, &issue.Title, &issue.Description,
			&issue.Tag, &issue.Priority, &issue.Status, &issue.ReporterID,
			&assigneeID, &issue.CreatedAt, &issue.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		if assigneeID.Valid {
			id := assigneeID.Int64
			issue.AssigneeID = &id
		}
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

// UpdateIssue updates an issue's mutable fields. Project and reporter are
// immutable.
func (s *PostgresService) UpdateIssue(ctx context.Context, issue *Issue) error {
	query := `
		UPDATE issues
		SET title = $1, description = $2, tag = $3, priority = $4, status = $5, assignee_id = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		issue.Title, issue.Description, issue.Tag, issue.Priority,
		issue.Status, issue.AssigneeID, issue.ID).
		Scan(&issue.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrIssueNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", mapConstraintError(err))
	}

	return nil
}

// DeleteIssue removes an issue; its comments cascade with it.
func (s *PostgresService) DeleteIssue(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrIssueNotFound
	}

	return nil
}
