package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/platform"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostRepo struct {
	repository.PostRepository

	post  *models.Post
	owner *models.User

	claimResult bool
	claimErr    error
	claimedFrom []string

	savedTargets []models.PlatformTarget
	saveErr      error

	statusUpdates []string
}

func (f *fakePostRepo) GetWithOwner(ctx context.Context, id int64) (*models.Post, *models.User, error) {
	return f.post, f.owner, nil
}

func (f *fakePostRepo) ClaimForPosting(ctx context.Context, postID int64, fromStatuses []string) (bool, error) {
	f.claimedFrom = fromStatuses
	return f.claimResult, f.claimErr
}

func (f *fakePostRepo) SaveTarget(ctx context.Context, t *models.PlatformTarget) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedTargets = append(f.savedTargets, *t)
	return nil
}

func (f *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

type fakeAccountRepo struct {
	repository.PlatformAccountRepository

	accounts map[string]*models.PlatformAccount
}

func (f *fakeAccountRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformAccount, error) {
	return f.accounts[platform], nil
}

type fakeHistoryRepo struct {
	repository.PostingHistoryRepository

	entries []models.PostingHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	f.entries = append(f.entries, *ph)
	return int64(len(f.entries)), nil
}

type fakeClient struct {
	name       string
	remoteID   string
	publishErr error
	tokenOK    bool
	panics     bool

	published []*platform.Request
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Publish(ctx context.Context, req *platform.Request) (string, error) {
	if f.panics {
		panic("boom")
	}
	f.published = append(f.published, req)
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return f.remoteID, nil
}

type fakeValidatingClient struct {
	fakeClient
}

func (f *fakeValidatingClient) ValidateToken(ctx context.Context, account *models.PlatformAccount) bool {
	return f.tokenOK
}

func scheduledPost(targets ...models.PlatformTarget) *models.Post {
	return &models.Post{
		ID:      42,
		UserID:  7,
		Content: "hello world",
		Status:  models.PostStatusScheduled,
		Targets: targets,
	}
}

func target(platformName, status string) models.PlatformTarget {
	return models.PlatformTarget{ID: 1, PostID: 42, Platform: platformName, Status: status}
}

func account(platformName string) *models.PlatformAccount {
	return &models.PlatformAccount{ID: 1, UserID: 7, Platform: platformName, AccountID: "acc-1"}
}

func newTestOrchestrator(posts repository.PostRepository, accounts *fakeAccountRepo, history *fakeHistoryRepo, clients ...platform.Client) *Orchestrator {
	registry := platform.NewRegistry()
	for _, c := range clients {
		registry.Register(c)
	}
	return NewOrchestrator(posts, accounts, history, registry)
}

func TestProcessScheduledAllTargetsPosted(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled), target(models.PlatformWhatsapp, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
		models.PlatformWhatsapp: account(models.PlatformWhatsapp),
	}}
	history := &fakeHistoryRepo{}

	fb := &fakeClient{name: models.PlatformFacebook, remoteID: "fb-123"}
	wa := &fakeClient{name: models.PlatformWhatsapp, remoteID: "wa-456"}

	orch := newTestOrchestrator(posts, accounts, history, fb, wa)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, posts.savedTargets, 2)
	assert.Equal(t, models.TargetStatusPosted, posts.savedTargets[0].Status)
	assert.Equal(t, "fb-123", posts.savedTargets[0].RemotePostID)
	assert.True(t, posts.savedTargets[0].PostedAt.Valid)
	assert.Equal(t, models.TargetStatusPosted, posts.savedTargets[1].Status)
	assert.Equal(t, "wa-456", posts.savedTargets[1].RemotePostID)

	require.NotEmpty(t, posts.statusUpdates)
	assert.Equal(t, models.PostStatusPosted, posts.statusUpdates[len(posts.statusUpdates)-1])

	require.Len(t, history.entries, 2)
	assert.Equal(t, "fb-123", history.entries[0].RemotePostID)
}

func TestProcessScheduledPublishErrorFailsOnlyThatTarget(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformYoutube, models.TargetStatusScheduled), target(models.PlatformFacebook, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformYoutube:  account(models.PlatformYoutube),
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	history := &fakeHistoryRepo{}

	yt := &fakeClient{name: models.PlatformYoutube, publishErr: platform.NewError(platform.ErrUnsupportedContent, "no video file found")}
	fb := &fakeClient{name: models.PlatformFacebook, remoteID: "fb-123"}

	orch := newTestOrchestrator(posts, accounts, history, yt, fb)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, posts.savedTargets, 2)
	assert.Equal(t, models.TargetStatusFailed, posts.savedTargets[0].Status)
	assert.Equal(t, "no video file found", posts.savedTargets[0].ErrorMessage)
	assert.Equal(t, models.TargetStatusPosted, posts.savedTargets[1].Status)

	// one dead platform never blocks the others
	require.Len(t, fb.published, 1)
	assert.Equal(t, models.PostStatusFailed, posts.statusUpdates[len(posts.statusUpdates)-1])
}

func TestProcessNowAccountNotConnected(t *testing.T) {
	posts := &fakePostRepo{
		post: &models.Post{
			ID:      42,
			UserID:  7,
			Status:  models.PostStatusDraft,
			Targets: []models.PlatformTarget{target(models.PlatformFacebook, models.TargetStatusPending)},
		},
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{}}
	history := &fakeHistoryRepo{}

	fb := &fakeClient{name: models.PlatformFacebook, remoteID: "fb-123"}

	orch := newTestOrchestrator(posts, accounts, history, fb)
	err := orch.ProcessNow(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, posts.savedTargets, 1)
	assert.Equal(t, models.TargetStatusFailed, posts.savedTargets[0].Status)
	assert.Equal(t, "Facebook not connected", posts.savedTargets[0].ErrorMessage)
	assert.Empty(t, fb.published)
	assert.Equal(t, models.PostStatusFailed, posts.statusUpdates[len(posts.statusUpdates)-1])
}

func TestProcessScheduledTokenExpired(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	history := &fakeHistoryRepo{}

	fb := &fakeValidatingClient{fakeClient: fakeClient{name: models.PlatformFacebook, tokenOK: false}}

	orch := newTestOrchestrator(posts, accounts, history, fb)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, posts.savedTargets, 1)
	assert.Equal(t, models.TargetStatusFailed, posts.savedTargets[0].Status)
	assert.Equal(t, "Facebook token expired", posts.savedTargets[0].ErrorMessage)
	assert.Empty(t, fb.published)
}

func TestProcessScheduledUnsupportedPlatform(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target("myspace", models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		"myspace": account("myspace"),
	}}
	history := &fakeHistoryRepo{}

	orch := newTestOrchestrator(posts, accounts, history)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, posts.savedTargets, 1)
	assert.Equal(t, models.TargetStatusFailed, posts.savedTargets[0].Status)
	assert.Equal(t, "unsupported platform: myspace", posts.savedTargets[0].ErrorMessage)
}

func TestProcessScheduledZeroTargets(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{}
	history := &fakeHistoryRepo{}

	orch := newTestOrchestrator(posts, accounts, history)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, []string{models.PostStatusFailed}, posts.statusUpdates)
	require.Len(t, history.entries, 1)
	assert.Equal(t, "no platforms to publish", history.entries[0].ErrorMessage)
}

func TestProcessSkipsWhenClaimRejected(t *testing.T) {
	posts := &fakePostRepo{
		post: &models.Post{
			ID:      42,
			UserID:  7,
			Status:  models.PostStatusPosted,
			Targets: []models.PlatformTarget{target(models.PlatformFacebook, models.TargetStatusPosted)},
		},
		owner:       &models.User{ID: 7},
		claimResult: false,
	}
	accounts := &fakeAccountRepo{}
	history := &fakeHistoryRepo{}

	fb := &fakeClient{name: models.PlatformFacebook}

	orch := newTestOrchestrator(posts, accounts, history, fb)
	err := orch.ProcessNow(context.Background(), 42)
	require.NoError(t, err)

	assert.Empty(t, posts.savedTargets)
	assert.Empty(t, posts.statusUpdates)
	assert.Empty(t, fb.published)
	assert.Empty(t, history.entries)
}

func TestProcessScheduledSkipsSettledTargets(t *testing.T) {
	posted := target(models.PlatformFacebook, models.TargetStatusPosted)
	posted.RemotePostID = "fb-old"

	posts := &fakePostRepo{
		post:        scheduledPost(posted, target(models.PlatformWhatsapp, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
		models.PlatformWhatsapp: account(models.PlatformWhatsapp),
	}}
	history := &fakeHistoryRepo{}

	fb := &fakeClient{name: models.PlatformFacebook, remoteID: "fb-new"}
	wa := &fakeClient{name: models.PlatformWhatsapp, remoteID: "wa-456"}

	orch := newTestOrchestrator(posts, accounts, history, fb, wa)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)

	// already-posted target is never re-attempted but still counts
	// toward the overall posted status
	assert.Empty(t, fb.published)
	require.Len(t, posts.savedTargets, 1)
	assert.Equal(t, models.PlatformWhatsapp, posts.savedTargets[0].Platform)
	assert.Equal(t, models.PostStatusPosted, posts.statusUpdates[len(posts.statusUpdates)-1])
}

func TestProcessNowClaimsFromDraftAndScheduled(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	orch := newTestOrchestrator(posts, accounts, &fakeHistoryRepo{}, &fakeClient{name: models.PlatformFacebook, remoteID: "fb-1"})

	err := orch.ProcessNow(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PostStatusDraft, models.PostStatusScheduled}, posts.claimedFrom)

	posts.claimedFrom = nil
	err = orch.ProcessScheduled(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PostStatusScheduled}, posts.claimedFrom)
}

func TestProcessPanicMarksPostFailed(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	history := &fakeHistoryRepo{}

	fb := &fakeClient{name: models.PlatformFacebook, panics: true}

	orch := newTestOrchestrator(posts, accounts, history, fb)
	err := orch.ProcessScheduled(context.Background(), 42)
	require.Error(t, err)

	require.NotEmpty(t, posts.statusUpdates)
	assert.Equal(t, models.PostStatusFailed, posts.statusUpdates[len(posts.statusUpdates)-1])
}

func TestProcessStorageFaultMarksPostFailed(t *testing.T) {
	posts := &fakePostRepo{
		post:        scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled)),
		owner:       &models.User{ID: 7},
		claimResult: true,
		saveErr:     errors.New("connection reset"),
	}
	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	history := &fakeHistoryRepo{}

	orch := newTestOrchestrator(posts, accounts, history, &fakeClient{name: models.PlatformFacebook, remoteID: "fb-1"})
	err := orch.ProcessScheduled(context.Background(), 42)
	require.Error(t, err)

	require.NotEmpty(t, posts.statusUpdates)
	assert.Equal(t, models.PostStatusFailed, posts.statusUpdates[len(posts.statusUpdates)-1])
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"no targets", nil, models.PostStatusFailed},
		{"all posted", []string{models.TargetStatusPosted, models.TargetStatusPosted}, models.PostStatusPosted},
		{"one failed", []string{models.TargetStatusPosted, models.TargetStatusFailed}, models.PostStatusFailed},
		{"all failed", []string{models.TargetStatusFailed}, models.PostStatusFailed},
		{"still pending", []string{models.TargetStatusPosted, models.TargetStatusPending}, models.PostStatusPosting},
		{"still scheduled", []string{models.TargetStatusScheduled}, models.PostStatusPosting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var targets []models.PlatformTarget
			for _, s := range tt.statuses {
				targets = append(targets, models.PlatformTarget{Status: s})
			}
			assert.Equal(t, tt.want, Reconcile(targets))
		})
	}
}
