package services

import (
	"context"
	"regexp"
	"testing"

	"softwarnews/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return gormDB, mock
}

func TestCastVote_SerializationFailureIsConflictRetry(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	svc := NewTallyService(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT "id","upvote","downvote" FROM "post_votes" WHERE post_id = \$1 AND author_id = \$2 .*FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	res, err := svc.CastVote(context.Background(), models.Actor{UserID: 3}, models.TargetPost, 7, models.DirectionUp)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflictRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCastVote_DeadlockOnCounterRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	svc := NewTallyService(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "comment_votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "upvote", "downvote"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comment_votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET "downvotes"=downvotes + 1`)).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := svc.CastVote(context.Background(), models.Actor{UserID: 3}, models.TargetComment, 5, models.DirectionDown)
	assert.ErrorIs(t, err, models.ErrConflictRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCastVote_DuplicateInsertIsConflictRetry(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	svc := NewTallyService(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "post_votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "upvote", "downvote"}))
	// 并发插入同一 (post, author) 行
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "post_votes"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := svc.CastVote(context.Background(), models.Actor{UserID: 3}, models.TargetPost, 7, models.DirectionUp)
	assert.ErrorIs(t, err, models.ErrConflictRetry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyDBError(t *testing.T) {
	assert.Nil(t, classifyDBError(nil, duplicateAsConflict))
	assert.ErrorIs(t, classifyDBError(gorm.ErrRecordNotFound, duplicateAsConflict), models.ErrNotFound)
	assert.ErrorIs(t, classifyDBError(gorm.ErrDuplicatedKey, duplicateAsConstraint("dup")), models.ErrConstraintViolation)
	assert.ErrorIs(t, classifyDBError(assert.AnError, duplicateAsConflict), models.NewInternalError(nil))

	notFound := models.NewNotFoundError("post", 1)
	assert.Same(t, notFound, classifyDBError(notFound, duplicateAsConflict))
}
