package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// compile-time interface check
var _ Service = (*PostgresService)(nil)

// Stats returns entity counts for the business gauges
func (s *PostgresService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&stats.Projects); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`).Scan(&stats.Issues); err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}

	return stats, nil
}
