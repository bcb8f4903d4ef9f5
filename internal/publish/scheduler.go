package publish

import (
	"context"
	"log"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"github.com/socialpost/socialpost/internal/repository"
)

// Scheduler periodically scans for due posts and hands each one to the
// orchestrator. One instance per process, constructed in main and driven
// by its own cron timer.
type Scheduler struct {
	cron     *cron.Cron
	posts    repository.PostRepository
	orch     *Orchestrator
	spec     string
	running  atomic.Bool
	inFlight atomic.Bool
}

func NewScheduler(spec string, posts repository.PostRepository, orch *Orchestrator) *Scheduler {
	if spec == "" {
		spec = "@every 0h1m0s"
	}
	return &Scheduler{
		cron:  cron.New(),
		posts: posts,
		orch:  orch,
		spec:  spec,
	}
}

// Start begins the periodic scan. Calling it on a running scheduler is a
// logged no-op.
func (s *Scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Scheduler is already running")
		return
	}

	s.cron.AddFunc(s.spec, s.Tick)
	s.cron.Start()
	log.Println("Scheduler started - checking for due posts on", s.spec)
}

// Stop prevents future ticks. An in-flight run completes naturally.
func (s *Scheduler) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.cron.Stop()
		log.Println("Scheduler stopped")
	}
}

// Tick runs one scan. Ticks are single-flight: if the previous run is
// still going, this one is skipped rather than overlapped.
func (s *Scheduler) Tick() {
	if !s.running.Load() {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Debug("previous scheduler run still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	ctx := context.Background()

	duePosts, err := s.posts.FindDue(ctx, time.Now())
	if err != nil {
		slog.Error("error querying due posts", "error", err)
		return
	}
	if len(duePosts) == 0 {
		slog.Debug("no due posts")
		return
	}

	slog.Info("processing due posts", "count", len(duePosts))

	for _, post := range duePosts {
		s.processOne(ctx, post.ID)
	}
}

// processOne isolates a single post so one bad post cannot take down the
// rest of the batch or the loop itself.
func (s *Scheduler) processOne(ctx context.Context, postID int64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic processing due post", "post_id", postID, "panic", r)
		}
	}()

	if err := s.orch.ProcessScheduled(ctx, postID); err != nil {
		slog.Error("error processing due post", "post_id", postID, "error", err)
	}
}
