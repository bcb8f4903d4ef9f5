package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDueRepo struct {
	fakePostRepo

	due     []*models.Post
	dueErr  error
	findNow []time.Time
}

func (f *fakeDueRepo) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	f.findNow = append(f.findNow, now)
	return f.due, f.dueErr
}

func newTestScheduler(posts repository.PostRepository, orch *Orchestrator) *Scheduler {
	return NewScheduler("@every 0h1m0s", posts, orch)
}

func TestSchedulerTickEmptyBatch(t *testing.T) {
	due := &fakeDueRepo{}
	orch := newTestOrchestrator(&due.fakePostRepo, &fakeAccountRepo{}, &fakeHistoryRepo{})

	s := newTestScheduler(due, orch)
	s.running.Store(true)
	s.Tick()

	require.Len(t, due.findNow, 1)
	assert.Empty(t, due.statusUpdates)
}

func TestSchedulerTickQueryError(t *testing.T) {
	due := &fakeDueRepo{dueErr: errors.New("db down")}
	orch := newTestOrchestrator(&due.fakePostRepo, &fakeAccountRepo{}, &fakeHistoryRepo{})

	s := newTestScheduler(due, orch)
	s.running.Store(true)
	s.Tick()

	assert.Empty(t, due.statusUpdates)
}

func TestSchedulerTickProcessesDuePosts(t *testing.T) {
	post := scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled))
	due := &fakeDueRepo{due: []*models.Post{post}}
	due.post = post
	due.owner = &models.User{ID: 7}
	due.claimResult = true

	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	// the orchestrator reads through the same repo the scheduler scans
	orch := newTestOrchestrator(due, accounts, &fakeHistoryRepo{}, &fakeClient{name: models.PlatformFacebook, remoteID: "fb-1"})

	s := newTestScheduler(due, orch)
	s.running.Store(true)
	s.Tick()

	require.Len(t, due.savedTargets, 1)
	assert.Equal(t, models.TargetStatusPosted, due.savedTargets[0].Status)
	assert.Equal(t, models.PostStatusPosted, due.statusUpdates[len(due.statusUpdates)-1])
}

func TestSchedulerTickSurvivesPanickingPost(t *testing.T) {
	first := scheduledPost(target(models.PlatformFacebook, models.TargetStatusScheduled))
	second := &models.Post{
		ID:      43,
		UserID:  7,
		Status:  models.PostStatusScheduled,
		Targets: []models.PlatformTarget{target(models.PlatformFacebook, models.TargetStatusScheduled)},
	}

	due := &fakeDueRepo{due: []*models.Post{first, second}}
	due.post = first
	due.owner = &models.User{ID: 7}
	due.claimResult = true

	accounts := &fakeAccountRepo{accounts: map[string]*models.PlatformAccount{
		models.PlatformFacebook: account(models.PlatformFacebook),
	}}
	fb := &fakeClient{name: models.PlatformFacebook, panics: true}
	orch := newTestOrchestrator(due, accounts, &fakeHistoryRepo{}, fb)

	s := newTestScheduler(due, orch)
	s.running.Store(true)

	assert.NotPanics(t, func() { s.Tick() })
	// both posts were attempted and parked as failed
	assert.Equal(t, []string{models.PostStatusFailed, models.PostStatusFailed}, due.statusUpdates)
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	due := &fakeDueRepo{}
	orch := newTestOrchestrator(&due.fakePostRepo, &fakeAccountRepo{}, &fakeHistoryRepo{})

	s := newTestScheduler(due, orch)
	s.Start()
	s.Start()
	assert.True(t, s.running.Load())

	s.Stop()
	s.Stop()
	assert.False(t, s.running.Load())

	// a tick after stop is a no-op
	s.Tick()
	assert.Empty(t, due.findNow)
}

func TestSchedulerTickSingleFlight(t *testing.T) {
	due := &fakeDueRepo{}
	orch := newTestOrchestrator(&due.fakePostRepo, &fakeAccountRepo{}, &fakeHistoryRepo{})

	s := newTestScheduler(due, orch)
	s.running.Store(true)
	s.inFlight.Store(true)

	s.Tick()
	assert.Empty(t, due.findNow)
}
