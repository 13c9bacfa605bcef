package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateComment adds a comment to an issue
func (s *PostgresService) CreateComment(ctx context.Context, comment *Comment) error {
	query := `
		INSERT INTO comments (issue_id, author_id, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		comment.IssueID, comment.AuthorID, comment.Description).
		Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

// CommentByID retrieves a comment by ID
func (s *PostgresService) CommentByID(ctx context.Context, id int64) (*Comment, error) {
	query := `
		SELECT id, issue_id, author_id, description, created_at, updated_at
		FROM comments
		WHERE id = $1
	`
	comment := &Comment{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&comment.ID, &comment.IssueID, &comment.AuthorID,
		&comment.Description, &comment.CreatedAt, &comment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	return comment, nil
}

// ListComments retrieves all comments of an issue, oldest first for display
func (s *PostgresService) ListComments(ctx context.Context, issueID int64) ([]*Comment, error) {
	query := `
		SELECT id, issue_id, author_id, description, created_at, updated_at
		FROM comments
		WHERE issue_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		comment := &Comment{}
		if err := rows.Scan(
			&comment.ID, &comment.IssueID, &comment.AuthorID,
			&comment.Description, &comment.CreatedAt, &comment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

// UpdateComment edits a comment's text
func (s *PostgresService) UpdateComment(ctx context.Context, comment *Comment) error {
	query := `
		UPDATE comments
		SET description = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, comment.Description, comment.ID).
		Scan(&comment.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	return nil
}

// DeleteComment removes a comment
func (s *PostgresService) DeleteComment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCommentNotFound
	}

	return nil
}
