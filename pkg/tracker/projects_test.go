package tracker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to create a new mock service
func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	service := NewPostgresService(db)
	return service, mock, db
}

func TestCreateProject(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success commits project and author membership together", func(t *testing.T) {
		now := time.Now()
		project := &Project{
			Title:       "Checkout Bug",
			Description: "Broken checkout flow",
			Category:    CategoryBackEnd,
			AuthorID:    1,
		}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs(project.Title, project.Description, project.Category, project.AuthorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(50, now, now))
		mock.ExpectExec(`INSERT INTO memberships`).
			WithArgs(int64(50), project.AuthorID, RoleAuthor).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := service.CreateProject(context.Background(), project)
		require.NoError(t, err)
		assert.Equal(t, int64(50), project.ID)
		assert.Equal(t, now, project.CreatedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("membership insert failure rolls the project back", func(t *testing.T) {
		project := &Project{Title: "Orphan", Category: CategoryIOS, AuthorID: 2}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs(project.Title, project.Description, project.Category, project.AuthorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(51, time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO memberships`).
			WithArgs(int64(51), project.AuthorID, RoleAuthor).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := service.CreateProject(context.Background(), project)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create author membership")

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate title maps to ErrDuplicateTitle", func(t *testing.T) {
		project := &Project{Title: "Checkout Bug", Category: CategoryBackEnd, AuthorID: 1}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs(project.Title, project.Description, project.Category, project.AuthorID).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "projects_title_key"})
		mock.ExpectRollback()

		err := service.CreateProject(context.Background(), project)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateTitle)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectByID(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "title", "description", "category", "author_id", "created_at", "updated_at",
		}).AddRow(50, "Checkout Bug", "Broken checkout flow", CategoryBackEnd, 1, now, now)

		mock.ExpectQuery(`SELECT id, title, description, category, author_id, created_at, updated_at`).
			WithArgs(int64(50)).
			WillReturnRows(rows)

		project, err := service.ProjectByID(context.Background(), 50)
		require.NoError(t, err)
		assert.Equal(t, "Checkout Bug", project.Title)
		assert.Equal(t, CategoryBackEnd, project.Category)
		assert.Equal(t, int64(1), project.AuthorID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, title, description, category, author_id, created_at, updated_at`).
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.ProjectByID(context.Background(), 999)
		assert.ErrorIs(t, err, ErrProjectNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListProjectsForUser(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("newest first, scoped to membership", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "title", "description", "category", "author_id", "created_at", "updated_at",
		}).
			AddRow(52, "Mobile App", "", CategoryAndroid, 2, now, now).
			AddRow(50, "Checkout Bug", "Broken checkout flow", CategoryBackEnd, 1, now.Add(-time.Hour), now)

		mock.ExpectQuery(`JOIN memberships m ON m.project_id = p.id`).
			WithArgs(int64(1)).
			WillReturnRows(rows)

		projects, err := service.ListProjectsForUser(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, int64(52), projects[0].ID)
		assert.Equal(t, int64(50), projects[1].ID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no memberships", func(t *testing.T) {
		mock.ExpectQuery(`JOIN memberships m ON m.project_id = p.id`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "title", "description", "category", "author_id", "created_at", "updated_at",
			}))

		projects, err := service.ListProjectsForUser(context.Background(), 3)
		require.NoError(t, err)
		assert.Empty(t, projects)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateProject(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		project := &Project{ID: 50, Title: "Checkout Bug v2", Category: CategoryBackEnd}
		updated := time.Now()

		mock.ExpectQuery(`UPDATE projects`).
			WithArgs(project.Title, project.Description, project.Category, project.ID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))

		err := service.UpdateProject(context.Background(), project)
		require.NoError(t, err)
		assert.Equal(t, updated, project.UpdatedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		project := &Project{ID: 999, Title: "Ghost"}

		mock.ExpectQuery(`UPDATE projects`).
			WithArgs(project.Title, project.Description, project.Category, project.ID).
			WillReturnError(sql.ErrNoRows)

		err := service.UpdateProject(context.Background(), project)
		assert.ErrorIs(t, err, ErrProjectNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteProject(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
			WithArgs(int64(50)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.DeleteProject(context.Background(), 50)
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DeleteProject(context.Background(), 999)
		assert.ErrorIs(t, err, ErrProjectNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStats(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM issues`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Projects)
	assert.Equal(t, int64(42), stats.Issues)

	require.NoError(t, mock.ExpectationsWereMet())
}
