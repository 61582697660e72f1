package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func tutorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "email", "subjects", "availability", "tutee_count", "max_tutee_count", "active", "created_at", "updated_at"})
}

func TestTutorRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	active := true
	accepting := true
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + tutorColumns + " FROM tutors WHERE 1=1 AND active = $1 AND tutee_count < max_tutee_count AND subjects @> $2::jsonb ORDER BY full_name ASC, id ASC LIMIT 10 OFFSET 10")).
		WithArgs(true, `[{"subject":"Math"}]`).
		WillReturnRows(tutorRows().AddRow("tutor-1", "Ada", "ada@example.edu", types.JSONText(`[{"subject":"Math"}]`), types.JSONText(`{}`), 1, 3, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tutors WHERE 1=1 AND active = $1 AND tutee_count < max_tutee_count AND subjects @> $2::jsonb")).
		WithArgs(true, `[{"subject":"Math"}]`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	tutors, total, err := repo.List(context.Background(), models.TutorFilter{
		Active:    &active,
		Accepting: &accepting,
		Subject:   "Math",
		Page:      2,
		PageSize:  10,
		SortBy:    "full_name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, tutors, 1)
	assert.Equal(t, "Ada", tutors[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryListEligible(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM tutors WHERE active = TRUE ORDER BY created_at ASC, id ASC")).
		WillReturnRows(tutorRows().
			AddRow("tutor-1", "Ada", "ada@example.edu", types.JSONText(`[]`), types.JSONText(`{}`), 0, 2, true, now, now).
			AddRow("tutor-2", "Grace", "grace@example.edu", types.JSONText(`[]`), types.JSONText(`{}`), 2, 2, true, now, now))

	tutors, err := repo.ListEligible(context.Background())
	require.NoError(t, err)
	assert.Len(t, tutors, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreateStartsWithZeroLoad(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("INSERT INTO tutors").
		WithArgs(sqlmock.AnyArg(), "Ada", "ada@example.edu", sqlmock.AnyArg(), sqlmock.AnyArg(), 0, 3, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tutor := &models.Tutor{FullName: "Ada", Email: "ada@example.edu", TuteeCount: 7, MaxTuteeCount: 3, Active: true}
	require.NoError(t, repo.Create(context.Background(), tutor))
	assert.NotEmpty(t, tutor.ID)
	assert.Equal(t, 0, tutor.TuteeCount)
	assert.Equal(t, types.JSONText("[]"), tutor.Subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("UPDATE tutors SET full_name").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Tutor{ID: "missing"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryApplyLoadDeltaInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutors SET tutee_count = tutee_count + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("tutor-1", -1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ApplyLoadDelta(context.Background(), tx, "tutor-1", -1))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryApplyLoadDeltaUnknownTutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("UPDATE tutors SET tutee_count = tutee_count").
		WithArgs("ghost", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyLoadDelta(context.Background(), nil, "ghost", 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTutorRepositoryResetLoadsClosesIntake(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutors SET tutee_count = 0, max_tutee_count = 0, updated_at = $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutors SET tutee_count = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("tutor-a", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutors SET tutee_count = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("tutor-b", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reset, err := repo.ResetLoads(context.Background(), nil, map[string]int{"tutor-b": 1, "tutor-a": 2, "tutor-c": 0}, true)
	require.NoError(t, err)
	assert.Equal(t, 4, reset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryLockLoadsInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tutors ORDER BY id ASC FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tutor-a").AddRow("tutor-b"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	locked, err := repo.LockLoads(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, 2, locked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM tutors WHERE LOWER(email) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("ada@example.edu", "tutor-1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByEmail(context.Background(), "ada@example.edu", "tutor-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
