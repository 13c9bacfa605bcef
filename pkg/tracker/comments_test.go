package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	now := time.Now()
	comment := &Comment{IssueID: 60, AuthorID: 2, Description: "Reproduced on staging"}

	mock.ExpectQuery(`INSERT INTO comments`).
		WithArgs(comment.IssueID, comment.AuthorID, comment.Description).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(70, now, now))

	err := service.CreateComment(context.Background(), comment)
	require.NoError(t, err)
	assert.Equal(t, int64(70), comment.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentByID(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "issue_id", "author_id", "description", "created_at", "updated_at"}).
			AddRow(70, 60, 2, "Reproduced on staging", now, now)

		mock.ExpectQuery(`SELECT id, issue_id, author_id, description, created_at, updated_at`).
			WithArgs(int64(70)).
			WillReturnRows(rows)

		comment, err := service.CommentByID(context.Background(), 70)
		require.NoError(t, err)
		assert.Equal(t, int64(60), comment.IssueID)
		assert.Equal(t, int64(2), comment.AuthorID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, issue_id, author_id, description, created_at, updated_at`).
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.CommentByID(context.Background(), 999)
		assert.ErrorIs(t, err, ErrCommentNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListComments(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "issue_id", "author_id", "description", "created_at", "updated_at"}).
		AddRow(70, 60, 2, "Reproduced on staging", now, now).
		AddRow(71, 60, 1, "Fix is up for review", now.Add(time.Minute), now.Add(time.Minute))

	mock.ExpectQuery(`SELECT id, issue_id, author_id, description, created_at, updated_at`).
		WithArgs(int64(60)).
		WillReturnRows(rows)

	comments, err := service.ListComments(context.Background(), 60)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, int64(70), comments[0].ID)
	assert.Equal(t, int64(71), comments[1].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateComment(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		comment := &Comment{ID: 70, Description: "Reproduced on staging and prod"}
		updated := time.Now()

		mock.ExpectQuery(`UPDATE comments`).
			WithArgs(comment.Description, comment.ID).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updated))

		err := service.UpdateComment(context.Background(), comment)
		require.NoError(t, err)
		assert.Equal(t, updated, comment.UpdatedAt)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		comment := &Comment{ID: 999, Description: "Ghost"}

		mock.ExpectQuery(`UPDATE comments`).
			WithArgs(comment.Description, comment.ID).
			WillReturnError(sql.ErrNoRows)

		err := service.UpdateComment(context.Background(), comment)
		assert.ErrorIs(t, err, ErrCommentNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteComment(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM comments WHERE id = \$1`).
			WithArgs(int64(70)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.DeleteComment(context.Background(), 70)
		require.NoError(t, err)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM comments WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DeleteComment(context.Background(), 999)
		assert.ErrorIs(t, err, ErrCommentNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
