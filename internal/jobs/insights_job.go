package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	config "github.com/socialpost/socialpost/configs"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/socialpost/socialpost/pkg/utils"
)

type InsightsJob struct {
	cfg config.Config
	pr  repository.PostRepository
	pa  repository.PlatformAccountRepository
}

func NewInsightsJob(cfg config.Config, pr repository.PostRepository, pa repository.PlatformAccountRepository) *InsightsJob {
	return &InsightsJob{
		cfg: cfg,
		pr:  pr,
		pa:  pa,
	}
}

// CollectInsights refreshes engagement counts for Facebook posts published
// within the last 30 days. Older posts stop changing enough to matter.
func (c *InsightsJob) CollectInsights() {
	ctx := context.Background()

	since := time.Now().AddDate(0, 0, -30)
	targets, err := c.pr.ListPostedTargets(ctx, models.PlatformFacebook, since)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 5
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, two := range targets {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(two *repository.TargetWithOwner) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.collectOne(ctx, two); err != nil {
				slog.Info("unable to collect insights", "target_id", two.Target.ID, "error", err.Error())
			}
		}(two)
	}

	wg.Wait()
}

func (c *InsightsJob) collectOne(ctx context.Context, two *repository.TargetWithOwner) error {
	account, err := c.pa.GetByUserAndPlatform(ctx, two.UserID, models.PlatformFacebook)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return err
	}

	engagement, err := fetchPostEngagement(ctx, two.Target.RemotePostID, accessToken)
	if err != nil {
		return err
	}

	t := two.Target
	t.Likes = engagement.Likes
	t.Comments = engagement.Comments
	t.Shares = engagement.Shares
	t.Views = engagement.Views

	return c.pr.UpdateTargetMetrics(ctx, t)
}
