package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the tracker schema. Uniqueness constraints live here
// deliberately: the engine's pre-checks are advisory, the constraints are
// authoritative under concurrency. Cascade rules implement the ownership
// tree (project → memberships/issues → comments).
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(150) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					can_be_contacted BOOLEAN NOT NULL DEFAULT FALSE,
					can_data_be_shared BOOLEAN NOT NULL DEFAULT FALSE,
					birth_date DATE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_username ON users(username);
			`,
		},
		{
			Version:     2,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(100) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					category VARCHAR(20) NOT NULL,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_author_id ON projects(author_id);
			`,
		},
		{
			Version:     3,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT memberships_project_id_user_id_key UNIQUE (project_id, user_id)
				);

				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
				CREATE INDEX idx_memberships_project_id ON memberships(project_id);
			`,
		},
		{
			Version:     4,
			Description: "Create issues table",
			SQL: `
				CREATE TABLE IF NOT EXISTS issues (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					title VARCHAR(100) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					tag VARCHAR(20) NOT NULL,
					priority VARCHAR(10) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'todo',
					reporter_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					assignee_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CONSTRAINT issues_project_id_title_key UNIQUE (project_id, title)
				);

				CREATE INDEX idx_issues_project_id ON issues(project_id);
				CREATE INDEX idx_issues_reporter_id ON issues(reporter_id);
				CREATE INDEX idx_issues_assignee_id ON issues(assignee_id);
			`,
		},
		{
			Version:     5,
			Description: "Create comments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS comments (
					id BIGSERIAL PRIMARY KEY,
					issue_id BIGINT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					description TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_comments_issue_id ON comments(issue_id);
			`,
		},
		{
			Version:     6,
			Description: "Create refresh_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS refresh_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(20) NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					revoked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_refresh_tokens_user_id ON refresh_tokens(user_id);
				CREATE INDEX idx_refresh_tokens_token_hash ON refresh_tokens(token_hash);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					action VARCHAR(50) NOT NULL,
					resource_type VARCHAR(20) NOT NULL,
					resource_id VARCHAR(50) NOT NULL DEFAULT '',
					decision VARCHAR(10) NOT NULL,
					reason VARCHAR(50) NOT NULL DEFAULT '',
					request_id VARCHAR(50) NOT NULL DEFAULT '',
					ip_address VARCHAR(45) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_logs_user_id ON audit_logs(user_id);
				CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tracker_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM tracker_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tracker_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
