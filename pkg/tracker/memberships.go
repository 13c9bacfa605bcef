package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// RoleOf answers the membership index lookup: the role userID holds on
// projectID, or false when no membership exists. It always reads current
// state; membership changes are security relevant and must never be served
// from a stale cache.
func (s *PostgresService) RoleOf(ctx context.Context, userID, projectID int64) (Role, bool, error) {
	query := `SELECT role FROM memberships WHERE user_id = $1 AND project_id = $2`

	var role Role
	err := s.db.QueryRowContext(ctx, query, userID, projectID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up role: %w", err)
	}

	return role, true, nil
}

// AuthorCount counts author-role memberships on a project
func (s *PostgresService) AuthorCount(ctx context.Context, projectID int64) (int, error) {
	query := `SELECT COUNT(*) FROM memberships WHERE project_id = $1 AND role = $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, RoleAuthor).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count authors: %w", err)
	}

	return count, nil
}

// AddMembership adds a user to a project. The unique constraint on
// (project_id, user_id) makes concurrent duplicate adds lose cleanly with
// ErrDuplicateMembership.
func (s *PostgresService) AddMembership(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (project_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, m.ProjectID, m.UserID, m.Role, m.InvitedBy).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", mapConstraintError(err))
	}

	return nil
}

// MembershipOf retrieves the membership for a (project, user) pair
func (s *PostgresService) MembershipOf(ctx context.Context, projectID, userID int64) (*Membership, error) {
	query := `
		SELECT id, project_id, user_id, role, invited_by, created_at
		FROM memberships
		WHERE project_id = $1 AND user_id = $2
	`
	m := &Membership{}
	var invitedBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&m.ID, &m.ProjectID, &m.UserID, &m.Role, &invitedBy, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	if invitedBy.Valid {
		id := invitedBy.Int64
		m.InvitedBy = &id
	}

	return m, nil
}

// ListMemberships retrieves all memberships of a project, oldest first
func (s *PostgresService) ListMemberships(ctx context.Context, projectID int64) ([]*Membership, error) {
	query := `
		SELECT id, project_id, user_id, role, invited_by, created_at
		FROM memberships
		WHERE project_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m := &Membership{}
		var invitedBy sql.NullInt64
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &invitedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if invitedBy.Valid {
			id := invitedBy.Int64
			m.InvitedBy = &id
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// RemoveMembership removes a user from a project
func (s *PostgresService) RemoveMembership(ctx context.Context, projectID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}
