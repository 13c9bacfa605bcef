package tracker

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

func TestCreateIssue(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("status defaults to todo", func(t *testing.T) {
		now := time.Now()
		issue := &Issue{
			ProjectID:  50,
			Title:      "Null pointer",
			Tag:        TagBug,
			Priority:   PriorityHigh,
			ReporterID: 2,
		}

		mock.ExpectQuery(`INSERT INTO issues`).
			WithArgs(issue.ProjectID, issue.Title, issue.Description, issue.Tag,
				issue.Priority, StatusTodo, issue.ReporterID, issue.AssigneeID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(60, now, now))

		err := service.CreateIssue(context.Background(), issue)
		require.NoError(t, err)
		assert.Equal(t, int64(60), issue.ID)
		assert.Equal(t, StatusTodo, issue.Status)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate title maps to ErrDuplicateTitle", func(t *testing.T) {
		issue := &Issue{
			ProjectID:  50,
			Title:      "Null pointer",
			Tag:        TagBug,
			Priority:   PriorityLow,
			Status:     StatusTodo,
			ReporterID: 2,
		}

		mock.ExpectQuery(`INSERT INTO issues`).
			WithArgs(issue.ProjectID, issue.Title, issue.Description, issue.Tag,
				issue.Priority, issue.Status, issue.ReporterID, issue.AssigneeID).
			WillReturnError(&pq.Error{Code: pqUniqueViolation, Constraint: "issues_project_id_title_key"})

		err := service.CreateIssue(context.Background(), issue)
		assert.ErrorIs(t, err, ErrDuplicateTitle)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIssueByID(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("assigned issue", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "project_id", "title", "description", "tag", "priority", "status",
			"reporter_id", "assignee_id", "created_at", "updated_at",
		}).AddRow(60, 50, "Null pointer", "Crash in checkout", TagBug, PriorityHigh, StatusInProgress, 2, 1, now, now)

		mock.ExpectQuery(`SELECT id, project_id, title, description, tag, priority, status`).
			WithArgs(int64(60)).
			WillReturnRows(rows)

		issue, err := service.IssueByID(context.Background(), 60)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, issue.Status)
		require.NotNil(t, issue.AssigneeID)
		assert.Equal(t, int64(1), *issue.AssigneeID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unassigned issue", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "project_id", "title", "description", "tag", "priority", "status",
			"reporter_id", "assignee_id", "created_at", "updated_at",
		}).AddRow(61, 50, "Slow query", "", TagImprovement, PriorityMedium, StatusTodo, 2, nil, now, now)

		mock.ExpectQuery(`SELECT id, project_id, title, description, tag, priority, status`).
			WithArgs(int64(61)).
			WillReturnRows(rows)

		issue, err := service.IssueByID(context.Background(), 61)
		require.NoError(t, err)
		assert.Nil(t, issue.AssigneeID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, project_id, title, description, tag, priority, status`).
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.IssueByID(context.Background(), 999)
		assert.ErrorIs(t, err, ErrIssueNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIssueTitleTaken(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("taken by sibling", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(50), "Null pointer", int64(0)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		taken, err := service.IssueTitleTaken(context.Background(), 50, "Null pointer", 0)
		require.NoError(t, err)
		assert.True(t, taken)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rename excludes the issue itself", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(50), "Null pointer", int64(60)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		taken, err := service.IssueTitleTaken(context.Background(), 50, "Null pointer", 60)
		require.NoError(t, err)
		assert.False(t, taken)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListIssues(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "project_id", "title", "description", "tag", "priority", "status",
		"reporter_id", "assignee_id", "created_at", "updated_at",
	}).
		AddRow(61, 50, "Slow query", "", TagImprovement, PriorityMedium, StatusTodo, 2, nil, now, now).
		AddRow(60, 50, "Null pointer", "Crash in checkout", TagBug, PriorityHigh, StatusDone, 2, 1, now.Add(-time.Hour), now)

	mock.ExpectQuery(`SELECT id, project_id, title, description, tag, priority, status`).
		WithArgs(int64(50)).
		WillReturnRows(rows)

	issues, err := service.ListIssues(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, int64(61), issues[0].ID)
	assert.Nil(t, issues[0].AssigneeID)
	require.NotNil(t, issues[1].AssigneeID)
	assert.Equal(t, int64(1), *issues[1].AssigneeID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIssue(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		assignee := int64(1)
		issue := &Issue{
			ID:       60,
			Title:    "Null pointer",
			Tag:      TagBug,
			Priority: PriorityHigh,
			Status:   StatusDone,
			AssigneeID: &assignee,
		}
		updated := time.Now()

		mock.ExpectQuery(`UPDATE issues`).
			WithArgs(issue.Title, issue.Description, issue.Tag, issue.Priority,
				issue.Status, issue.AssigneeID, issue.ID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))

		err := service.UpdateIssue(context.Background(), issue)
		require.NoError(t, err)
		assert.Equal(t, updated, issue.UpdatedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		issue := &Issue{ID: 999, Title: "Ghost", Tag: TagTask, Priority: PriorityLow, Status: StatusTodo}

		mock.ExpectQuery(`UPDATE issues`).
			WithArgs(issue.Title, issue.Description, issue.Tag, issue.Priority,
				issue.Status, issue.AssigneeID, issue.ID).
			WillReturnError(sql.ErrNoRows)

		err := service.UpdateIssue(context.Background(), issue)
		assert.ErrorIs(t, err, ErrIssueNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteIssue(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM issues WHERE id = \$1`).
			WithArgs(int64(60)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.DeleteIssue(context.Background(), 60)
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM issues WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DeleteIssue(context.Background(), 999)
		assert.ErrorIs(t, err, ErrIssueNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
