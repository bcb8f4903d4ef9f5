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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type TokenRefreshJob struct {
	cfg config.Config
	pa  repository.PlatformAccountRepository
}

func NewTokenRefreshJob(cfg config.Config, pa repository.PlatformAccountRepository) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg: cfg,
		pa:  pa,
	}
}

// RefreshTokens renews access tokens expiring within the next 30 minutes.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.pa.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.PlatformAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			switch acc.Platform {
			case models.PlatformYoutube:
				if err := c.refreshYoutubeToken(ctx, acc); err != nil {
					slog.Info("unable to refresh token for YouTube", "account_id", acc.ID, "error", err.Error())
				}

			case models.PlatformFacebook, models.PlatformInstagram:
				if err := c.refreshFacebookToken(ctx, acc); err != nil {
					slog.Info("unable to refresh token for "+acc.Platform, "account_id", acc.ID, "error", err.Error())
				}
			}
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refreshYoutubeToken(ctx context.Context, acc *models.PlatformAccount) error {
	refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     c.cfg.GoogleClientID,
		ClientSecret: c.cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(c.cfg.SecretKey))
	if err != nil {
		return err
	}

	updated := &models.PlatformAccount{
		Platform:       acc.Platform,
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(c.cfg.SecretKey))
		if err != nil {
			return err
		}
		updated.RefreshToken = encryptedRefreshToken
	}

	return c.pa.SetToken(ctx, acc.UserID, acc.AccessToken, updated)
}

// Facebook long-lived tokens renew through the same exchange endpoint the
// connect flow uses, keyed on the current token.
func (c *TokenRefreshJob) refreshFacebookToken(ctx context.Context, acc *models.PlatformAccount) error {
	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return err
	}

	token, err := exchangeLongLivedToken(ctx, c.cfg.FacebookAppID, c.cfg.FacebookAppSecret, accessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(c.cfg.SecretKey))
	if err != nil {
		return err
	}

	updated := &models.PlatformAccount{
		Platform:       acc.Platform,
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}

	return c.pa.SetToken(ctx, acc.UserID, acc.AccessToken, updated)
}
