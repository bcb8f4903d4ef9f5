package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postRows(rows ...[]driverValue) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{"id", "user_id", "content", "title", "scheduled_for", "status", "created_at", "updated_at"})
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

type driverValue = driver.Value

func TestFindDueSelectsOnlyDueScheduledPosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)

	mock.ExpectQuery(`SELECT (.+) FROM posts\s+WHERE status = \$1 AND scheduled_for IS NOT NULL AND scheduled_for <= \$2`).
		WithArgs(models.PostStatusScheduled, now).
		WillReturnRows(postRows(
			[]driverValue{int64(1), int64(7), "first", "", due, models.PostStatusScheduled, now, now},
			[]driverValue{int64(2), int64(7), "second", "", due, models.PostStatusScheduled, now, now},
		))

	repo := NewPostRepository(db)
	posts, err := repo.FindDue(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, int64(2), posts[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDueEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM posts`).
		WithArgs(models.PostStatusScheduled, now).
		WillReturnRows(postRows())

	repo := NewPostRepository(db)
	posts, err := repo.FindDue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, posts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForPostingSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE posts\s+SET status = \$1`).
		WithArgs(models.PostStatusPosting, sqlmock.AnyArg(), int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostRepository(db)
	claimed, err := repo.ClaimForPosting(context.Background(), 42, []string{models.PostStatusScheduled})
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForPostingRejectedWhenStatusMoved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// another worker already flipped the status, zero rows match
	mock.ExpectExec(`UPDATE posts\s+SET status = \$1`).
		WithArgs(models.PostStatusPosting, sqlmock.AnyArg(), int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostRepository(db)
	claimed, err := repo.ClaimForPosting(context.Background(), 42, []string{models.PostStatusScheduled})
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUpcoming(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts WHERE status = \$1 AND scheduled_for >= \$2`).
		WithArgs(models.PostStatusScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	repo := NewPostRepository(db)
	count, err := repo.CountUpcoming(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextScheduledNone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM posts\s+WHERE status = \$1 AND scheduled_for >= \$2`).
		WithArgs(models.PostStatusScheduled, now).
		WillReturnRows(postRows())

	repo := NewPostRepository(db)
	post, err := repo.NextScheduled(context.Background(), now)
	require.NoError(t, err)
	assert.Nil(t, post)
	require.NoError(t, mock.ExpectationsWereMet())
}
