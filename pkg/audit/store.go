package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists audit events in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes one event to the trail
func (s *Store) Insert(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id, decision, reason, request_id, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		event.UserID, event.Action, event.ResourceType, event.ResourceID,
		event.Decision, event.Reason, event.RequestID, event.IPAddress).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListByUser returns a user's most recent events, newest first
func (s *Store) ListByUser(ctx context.Context, userID int64, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, user_id, action, resource_type, resource_id, decision, reason, request_id, ip_address, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var eventUserID sql.NullInt64
		if err := rows.Scan(
			&event.ID, &eventUserID, &event.Action, &event.ResourceType,
			&event.ResourceID, &event.Decision, &event.Reason,
			&event.RequestID, &event.IPAddress, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if eventUserID.Valid {
			id := eventUserID.Int64
			event.UserID = &id
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteOlderThan prunes events past the retention window. Returns the
// number removed.
func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}
