package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser indicates the username or email is already taken
	ErrDuplicateUser = errors.New("username or email already taken")
	// ErrTokenNotFound indicates the refresh token does not exist
	ErrTokenNotFound = errors.New("refresh token not found")
)

const pqUniqueViolation = "23505"

// PostgresStore persists users and refresh tokens
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateUser inserts a new account. Username and email collisions map to
// ErrDuplicateUser through the unique constraints.
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, can_be_contacted, can_data_be_shared, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash,
		user.CanBeContacted, user.CanDataBeShared, user.BirthDate).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UserByID retrieves a user by ID
func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.userBy(ctx, `WHERE id = $1`, id)
}

// UserByUsername retrieves a user by username
func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	return s.userBy(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) userBy(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, can_be_contacted, can_data_be_shared,
		       birth_date, is_active, created_at, updated_at
		FROM users
	` + where

	user := &User{}
	var birthDate sql.NullTime
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CanBeContacted, &user.CanDataBeShared,
		&birthDate, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if birthDate.Valid {
		t := birthDate.Time
		user.BirthDate = &t
	}

	return user, nil
}

// UpdateUser updates a user's email and consent flags
func (s *PostgresStore) UpdateUser(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET email = $1, can_be_contacted = $2, can_data_be_shared = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Email, user.CanBeContacted, user.CanDataBeShared, user.ID).
		Scan(&user.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// DeleteUser erases an account. Projects the user authored, memberships,
// issues and comments all fall with it through the cascade rules, which is
// exactly what the right to erasure requires.
func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UserExport is the personal data bundle for a data access request
type UserExport struct {
	User       *User           `json:"user"`
	Projects   []ExportItem    `json:"projects"`
	Issues     []ExportItem    `json:"issues"`
	Comments   []ExportComment `json:"comments"`
	ExportedAt time.Time       `json:"exported_at"`
}

// ExportItem is a titled record the user authored
type ExportItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportComment is a comment the user authored
type ExportComment struct {
	ID          int64     `json:"id"`
	IssueID     int64     `json:"issue_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportUserData gathers everything stored about a user: the account plus
// the projects, issues and comments they authored.
func (s *PostgresStore) ExportUserData(ctx context.Context, userID int64) (*UserExport, error) {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	export := &UserExport{User: user, ExportedAt: time.Now()}

	export.Projects, err = s.exportItems(ctx,
		`SELECT id, title, created_at FROM projects WHERE author_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to export projects: %w", err)
	}

	export.Issues, err = s.exportItems(ctx,
		`SELECT id, title, created_at FROM issues WHERE reporter_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to export issues: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, description, created_at FROM comments WHERE author_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to export comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ExportComment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		export.Comments = append(export.Comments, c)
	}

	return export, rows.Err()
}

func (s *PostgresStore) exportItems(ctx context.Context, query string, userID int64) ([]ExportItem, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExportItem
	for rows.Next() {
		var item ExportItem
		if err := rows.Scan(&item.ID, &item.Title, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// StoreRefreshToken persists a refresh token hash
func (s *PostgresStore) StoreRefreshToken(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, token_prefix, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		token.UserID, token.TokenHash, token.TokenPrefix, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// RefreshTokenByHash looks up a refresh token by its SHA256 hash
func (s *PostgresStore) RefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	token := &RefreshToken{}
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.TokenPrefix,
		&token.ExpiresAt, &revokedAt, &token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}

	return token, nil
}

// RevokeRefreshToken marks a token revoked. Rotation revokes the old token
// before issuing its replacement.
func (s *PostgresStore) RevokeRefreshToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// RevokeUserTokens revokes every live refresh token of a user
func (s *PostgresStore) RevokeUserTokens(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}

// CleanupExpiredTokens deletes tokens past their expiry. Returns the number
// removed; runs on a schedule from the main process.
func (s *PostgresStore) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}
