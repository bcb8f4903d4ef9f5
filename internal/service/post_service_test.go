package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/socialpost/socialpost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostRepo struct {
	repository.PostRepository

	created       *models.Post
	targets       []models.PlatformTarget
	owned         bool
	stored        *models.Post
	updated       *models.Post
	removedPostID int64
}

func (f *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	f.created = post
	return 101, nil
}

func (f *fakePostRepo) CreateTarget(ctx context.Context, tx *sql.Tx, t *models.PlatformTarget) error {
	f.targets = append(f.targets, *t)
	return nil
}

func (f *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	return f.owned, nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return f.stored, nil
}

func (f *fakePostRepo) Update(ctx context.Context, post *models.Post) error {
	f.updated = post
	return nil
}

func (f *fakePostRepo) Remove(ctx context.Context, id int64) error {
	f.removedPostID = id
	return nil
}

func newTestPostService(t *testing.T, repo *fakePostRepo) (PostService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewPostService(db, repo, nil, nil, R2Service{}, []string{
		models.PlatformFacebook, models.PlatformInstagram, models.PlatformYoutube, models.PlatformWhatsapp,
	})
	return svc, mock
}

func TestCreatePostValidation(t *testing.T) {
	svc, _ := newTestPostService(t, &fakePostRepo{})
	ctx := context.Background()

	tests := []struct {
		name string
		pc   *transfer.PostCreation
	}{
		{"nil creation data", nil},
		{"empty content", &transfer.PostCreation{Platforms: `["facebook"]`}},
		{"invalid platforms json", &transfer.PostCreation{Content: "hi", Platforms: `facebook`}},
		{"no platforms selected", &transfer.PostCreation{Content: "hi", Platforms: `[]`}},
		{"unsupported platform", &transfer.PostCreation{Content: "hi", Platforms: `["tiktok"]`}},
		{"bad schedule format", &transfer.PostCreation{Content: "hi", Platforms: `["facebook"]`, ScheduledFor: "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := svc.CreatePost(ctx, 7, tt.pc, nil)
			assert.Error(t, err)
		})
	}
}

func TestCreatePostContentTooLong(t *testing.T) {
	svc, _ := newTestPostService(t, &fakePostRepo{})

	long := make([]byte, maxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, _, _, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:   string(long),
		Platforms: `["facebook"]`,
	}, nil)
	assert.Error(t, err)
}

func TestCreatePostDraftPublishesImmediately(t *testing.T) {
	repo := &fakePostRepo{}
	svc, mock := newTestPostService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	postID, delay, immediate, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:   "hello",
		Platforms: `["facebook","whatsapp"]`,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(101), postID)
	assert.True(t, immediate)
	assert.Zero(t, delay)

	assert.Equal(t, models.PostStatusDraft, repo.created.Status)
	require.Len(t, repo.targets, 2)
	assert.Equal(t, models.TargetStatusPending, repo.targets[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePostScheduledComputesDelay(t *testing.T) {
	repo := &fakePostRepo{}
	svc, mock := newTestPostService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	future := time.Now().Add(2 * time.Hour).Format("2006-01-02T15:04")
	_, delay, immediate, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:      "hello",
		Platforms:    `["facebook"]`,
		ScheduledFor: future,
	}, nil)
	require.NoError(t, err)

	assert.False(t, immediate)
	assert.Greater(t, delay, time.Hour)

	assert.Equal(t, models.PostStatusScheduled, repo.created.Status)
	require.Len(t, repo.targets, 1)
	assert.Equal(t, models.TargetStatusScheduled, repo.targets[0].Status)
}

func TestCreatePostPastScheduleZeroDelay(t *testing.T) {
	repo := &fakePostRepo{}
	svc, mock := newTestPostService(t, repo)

	mock.ExpectBegin()
	mock.ExpectCommit()

	past := time.Now().Add(-time.Hour).Format("2006-01-02T15:04")
	_, delay, immediate, err := svc.CreatePost(context.Background(), 7, &transfer.PostCreation{
		Content:      "hello",
		Platforms:    `["facebook"]`,
		ScheduledFor: past,
	}, nil)
	require.NoError(t, err)

	assert.False(t, immediate)
	assert.Zero(t, delay)
}

func TestPublishNowRejectsSettledPost(t *testing.T) {
	repo := &fakePostRepo{
		owned:  true,
		stored: &models.Post{ID: 101, Status: models.PostStatusPosted},
	}
	svc, _ := newTestPostService(t, repo)

	err := svc.PublishNow(context.Background(), 7, 101)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPublishNowRejectsUnknownPost(t *testing.T) {
	repo := &fakePostRepo{owned: false}
	svc, _ := newTestPostService(t, repo)

	err := svc.PublishNow(context.Background(), 7, 101)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidState)
}

func TestUpdateRejectsPublishedPost(t *testing.T) {
	repo := &fakePostRepo{
		owned:  true,
		stored: &models.Post{ID: 101, Status: models.PostStatusPosted},
	}
	svc, _ := newTestPostService(t, repo)

	err := svc.Update(context.Background(), 7, 101, &transfer.PostUpdate{Content: "new"})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, repo.updated)
}

func TestUpdateReschedulesDraft(t *testing.T) {
	repo := &fakePostRepo{
		owned:  true,
		stored: &models.Post{ID: 101, Status: models.PostStatusDraft, Content: "old"},
	}
	svc, _ := newTestPostService(t, repo)

	err := svc.Update(context.Background(), 7, 101, &transfer.PostUpdate{
		Content:      "new",
		ScheduledFor: "2026-09-01T09:30",
	})
	require.NoError(t, err)

	require.NotNil(t, repo.updated)
	assert.Equal(t, "new", repo.updated.Content)
	assert.Equal(t, models.PostStatusScheduled, repo.updated.Status)
	assert.True(t, repo.updated.ScheduledFor.Valid)
}

func TestRemoveRejectsPublishedPost(t *testing.T) {
	repo := &fakePostRepo{
		owned:  true,
		stored: &models.Post{ID: 101, Status: models.PostStatusPosted},
	}
	svc, _ := newTestPostService(t, repo)

	err := svc.Remove(context.Background(), 7, 101)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, repo.removedPostID)
}

func TestRemoveDraft(t *testing.T) {
	repo := &fakePostRepo{
		owned:  true,
		stored: &models.Post{ID: 101, Status: models.PostStatusDraft},
	}
	svc, _ := newTestPostService(t, repo)

	err := svc.Remove(context.Background(), 7, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(101), repo.removedPostID)
}
