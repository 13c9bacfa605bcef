package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func TestCreateUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
		user := &User{
			Username:     "alice",
			Email:        "alice@example.com",
			PasswordHash: "$2a$12$hash",
			BirthDate:    &birth,
		}
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(user.Username, user.Email, user.PasswordHash,
				user.CanBeContacted, user.CanDataBeShared, user.BirthDate).
			WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
				AddRow(1, true, now, now))

		err := store.CreateUser(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.True(t, user.IsActive)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		user := &User{Username: "alice", Email: "other@example.com", PasswordHash: "h"}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(user.Username, user.Email, user.PasswordHash,
				user.CanBeContacted, user.CanDataBeShared, user.BirthDate).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "users_username_key"})

		err := store.CreateUser(context.Background(), user)
		assert.ErrorIs(t, err, ErrDuplicateUser)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserLookups(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	columns := []string{
		"id", "username", "email", "password_hash", "can_be_contacted",
		"can_data_be_shared", "birth_date", "is_active", "created_at", "updated_at",
	}

	t.Run("by ID", func(t *testing.T) {
		now := time.Now()
		birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`FROM users`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(1, "alice", "alice@example.com", "$2a$12$hash", true, false, birth, true, now, now))

		user, err := store.UserByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.CanBeContacted)
		require.NotNil(t, user.BirthDate)
		assert.Equal(t, birth, *user.BirthDate)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by username without birth date", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`FROM users`).
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(2, "bob", "bob@example.com", "$2a$12$hash", false, false, nil, true, now, now))

		user, err := store.UserByUsername(context.Background(), "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(2), user.ID)
		assert.Nil(t, user.BirthDate)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM users`).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := store.UserByUsername(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrUserNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeleteUser(context.Background(), 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.DeleteUser(context.Background(), 999)
		assert.ErrorIs(t, err, ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestExportUserData(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	now := time.Now()
	userColumns := []string{
		"id", "username", "email", "password_hash", "can_be_contacted",
		"can_data_be_shared", "birth_date", "is_active", "created_at", "updated_at",
	}

	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "alice", "alice@example.com", "$2a$12$hash", true, false, nil, true, now, now))

	mock.ExpectQuery(`FROM projects WHERE author_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}).
			AddRow(50, "Checkout Bug", now))

	mock.ExpectQuery(`FROM issues WHERE reporter_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "created_at"}).
			AddRow(60, "Null pointer", now).
			AddRow(61, "Slow query", now))

	mock.ExpectQuery(`FROM comments WHERE author_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "issue_id", "description", "created_at"}).
			AddRow(70, 60, "Reproduced on staging", now))

	export, err := store.ExportUserData(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", export.User.Username)
	assert.Len(t, export.Projects, 1)
	assert.Len(t, export.Issues, 2)
	assert.Len(t, export.Comments, 1)
	assert.Equal(t, int64(60), export.Comments[0].IssueID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenLifecycle(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("store", func(t *testing.T) {
		token := &RefreshToken{
			UserID:      1,
			TokenHash:   "abc123",
			TokenPrefix: "quarry_abcd1234",
			ExpiresAt:   time.Now().Add(30 * 24 * time.Hour),
		}

		mock.ExpectQuery(`INSERT INTO refresh_tokens`).
			WithArgs(token.UserID, token.TokenHash, token.TokenPrefix, token.ExpiresAt).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))

		require.NoError(t, store.StoreRefreshToken(context.Background(), token))
		assert.Equal(t, int64(5), token.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup live token", func(t *testing.T) {
		expires := time.Now().Add(time.Hour)

		mock.ExpectQuery(`FROM refresh_tokens`).
			WithArgs("abc123").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "token_hash", "token_prefix", "expires_at", "revoked_at", "created_at",
			}).AddRow(5, 1, "abc123", "quarry_abcd1234", expires, nil, time.Now()))

		token, err := store.RefreshTokenByHash(context.Background(), "abc123")
		require.NoError(t, err)
		assert.True(t, token.Valid(time.Now()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoked token is invalid", func(t *testing.T) {
		revoked := time.Now().Add(-time.Minute)

		mock.ExpectQuery(`FROM refresh_tokens`).
			WithArgs("revoked456").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "token_hash", "token_prefix", "expires_at", "revoked_at", "created_at",
			}).AddRow(6, 1, "revoked456", "quarry_efgh5678", time.Now().Add(time.Hour), revoked, time.Now()))

		token, err := store.RefreshTokenByHash(context.Background(), "revoked456")
		require.NoError(t, err)
		assert.False(t, token.Valid(time.Now()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown hash", func(t *testing.T) {
		mock.ExpectQuery(`FROM refresh_tokens`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := store.RefreshTokenByHash(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoke", func(t *testing.T) {
		mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at = NOW\(\)`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.RevokeRefreshToken(context.Background(), 5))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cleanup expired", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < NOW\(\)`).
			WillReturnResult(sqlmock.NewResult(0, 3))

		removed, err := store.CleanupExpiredTokens(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
