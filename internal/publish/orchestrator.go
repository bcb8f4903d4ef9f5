package publish

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/platform"
	"github.com/socialpost/socialpost/internal/repository"
)

// Orchestrator drives one post through its platform targets and reconciles
// the per-platform outcomes into the overall post status. Publish failures
// are recorded on the targets, never returned: a non-nil error from the
// Process methods means an internal fault (storage, panic), and even then
// the post has already been parked in a terminal failed state.
type Orchestrator struct {
	posts    repository.PostRepository
	accounts repository.PlatformAccountRepository
	history  repository.PostingHistoryRepository
	registry *platform.Registry
}

func NewOrchestrator(
	posts repository.PostRepository,
	accounts repository.PlatformAccountRepository,
	history repository.PostingHistoryRepository,
	registry *platform.Registry) *Orchestrator {
	return &Orchestrator{
		posts:    posts,
		accounts: accounts,
		history:  history,
		registry: registry,
	}
}

// ProcessScheduled publishes a due post from the scheduler loop. Only
// targets still in "scheduled" are attempted.
func (o *Orchestrator) ProcessScheduled(ctx context.Context, postID int64) error {
	return o.process(ctx, postID,
		[]string{models.PostStatusScheduled},
		map[string]bool{models.TargetStatusScheduled: true})
}

// ProcessNow publishes a post immediately, for the user-facing publish
// action. Both "pending" and "scheduled" targets are attempted.
func (o *Orchestrator) ProcessNow(ctx context.Context, postID int64) error {
	return o.process(ctx, postID,
		[]string{models.PostStatusDraft, models.PostStatusScheduled},
		map[string]bool{models.TargetStatusPending: true, models.TargetStatusScheduled: true})
}

func (o *Orchestrator) process(ctx context.Context, postID int64, claimFrom []string, eligible map[string]bool) (err error) {
	post, owner, loadErr := o.posts.GetWithOwner(ctx, postID)
	if loadErr != nil {
		return fmt.Errorf("error loading post %d: %w", postID, loadErr)
	}
	if post == nil {
		return fmt.Errorf("post %d not found", postID)
	}
	if owner == nil {
		// Should not happen with referential integrity intact. Leave the
		// post untouched so the problem stays visible.
		slog.Error("owner not found for post", "post_id", postID, "user_id", post.UserID)
		return fmt.Errorf("owner not found for post %d", postID)
	}

	claimed, claimErr := o.posts.ClaimForPosting(ctx, postID, claimFrom)
	if claimErr != nil {
		return fmt.Errorf("error claiming post %d: %w", postID, claimErr)
	}
	if !claimed {
		slog.Info("skipping post, already claimed or not publishable", "post_id", postID, "status", post.Status)
		return nil
	}

	// From here on the post is ours. A panic or storage fault must still
	// leave it in a visible failed state rather than stuck in "posting".
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while publishing post", "post_id", postID, "panic", r)
			err = fmt.Errorf("panic while publishing post %d: %v", postID, r)
		}
		if err != nil {
			if updateErr := o.posts.UpdateStatus(ctx, models.PostStatusFailed, postID); updateErr != nil {
				slog.Error("could not mark post failed", "post_id", postID, "error", updateErr)
			}
		}
	}()

	if len(post.Targets) == 0 {
		o.recordHistory(ctx, owner.ID, postID, "", "", "no platforms to publish")
		if err := o.posts.UpdateStatus(ctx, models.PostStatusFailed, postID); err != nil {
			return fmt.Errorf("error updating status for post %d: %w", postID, err)
		}
		return nil
	}

	for i := range post.Targets {
		target := &post.Targets[i]
		if !eligible[target.Status] {
			continue
		}

		o.attemptTarget(ctx, post, owner, target)

		if saveErr := o.posts.SaveTarget(ctx, target); saveErr != nil {
			return fmt.Errorf("error saving target %s for post %d: %w", target.Platform, postID, saveErr)
		}
		o.recordHistory(ctx, owner.ID, postID, target.Platform, target.RemotePostID, target.ErrorMessage)
	}

	finalStatus := Reconcile(post.Targets)
	if updateErr := o.posts.UpdateStatus(ctx, finalStatus, postID); updateErr != nil {
		return fmt.Errorf("error updating status for post %d: %w", postID, updateErr)
	}

	slog.Info("finished processing post", "post_id", postID, "status", finalStatus)
	return nil
}

// attemptTarget settles a single target. Every failure mode ends up as
// data on the target, so one platform can never block the others.
func (o *Orchestrator) attemptTarget(ctx context.Context, post *models.Post, owner *models.User, target *models.PlatformTarget) {
	account, err := o.accounts.GetByUserAndPlatform(ctx, owner.ID, target.Platform)
	if err != nil {
		failTarget(target, fmt.Sprintf("error loading %s credentials: %v", platform.DisplayName(target.Platform), err))
		return
	}
	if account == nil {
		failTarget(target, platform.DisplayName(target.Platform)+" not connected")
		return
	}

	client, ok := o.registry.Get(target.Platform)
	if !ok {
		failTarget(target, "unsupported platform: "+target.Platform)
		return
	}

	if validator, ok := client.(platform.TokenValidator); ok {
		if !validator.ValidateToken(ctx, account) {
			failTarget(target, platform.DisplayName(target.Platform)+" token expired")
			return
		}
	}

	remoteID, err := client.Publish(ctx, &platform.Request{
		Content:    post.Content,
		Title:      post.Title,
		MediaFiles: post.MediaFiles,
		Account:    account,
	})
	if err != nil {
		slog.Info("publish failed", "post_id", post.ID, "platform", target.Platform, "error", err)
		failTarget(target, err.Error())
		return
	}

	target.Status = models.TargetStatusPosted
	target.RemotePostID = remoteID
	target.ErrorMessage = ""
	target.PostedAt = sql.NullTime{Time: time.Now(), Valid: true}
}

func failTarget(target *models.PlatformTarget, message string) {
	target.Status = models.TargetStatusFailed
	target.ErrorMessage = message
}

// Reconcile derives the overall post status from all targets, including
// ones settled on earlier passes: posted when every target is posted,
// failed when any target is failed, otherwise still posting.
func Reconcile(targets []models.PlatformTarget) string {
	if len(targets) == 0 {
		return models.PostStatusFailed
	}

	allPosted := true
	anyFailed := false
	for _, t := range targets {
		if t.Status != models.TargetStatusPosted {
			allPosted = false
		}
		if t.Status == models.TargetStatusFailed {
			anyFailed = true
		}
	}

	switch {
	case allPosted:
		return models.PostStatusPosted
	case anyFailed:
		return models.PostStatusFailed
	default:
		return models.PostStatusPosting
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, userID, postID int64, platformName, remoteID, errorMessage string) {
	entry := &models.PostingHistory{
		UserID:       userID,
		PostID:       postID,
		Platform:     platformName,
		RemotePostID: remoteID,
		ErrorMessage: errorMessage,
	}
	if _, err := o.history.Create(ctx, entry); err != nil {
		slog.Info("error saving posting history", "post_id", postID, "error", err)
	}
}
