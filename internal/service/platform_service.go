package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/socialpost/socialpost/configs"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/socialpost/socialpost/internal/transfer"
	"github.com/socialpost/socialpost/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	FACEBOOK_AUTH_URL  = "https://www.facebook.com/v18.0/dialog/oauth"
	FACEBOOK_GRAPH_URL = "https://graph.facebook.com/v18.0"
	GOOGLE_AUTH_URL    = "https://accounts.google.com/o/oauth2/v2/auth"
)

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, state string) string
	FacebookCallback(ctx context.Context, code string, userID int64) error
	InstagramCallback(ctx context.Context, code string, userID int64) error
	YoutubeCallback(ctx context.Context, code string, userID int64) error
	ConnectWhatsapp(ctx context.Context, userID int64, accessToken, phoneNumberID, recipientID string) error
	List(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg config.Config
	pa  repository.PlatformAccountRepository
}

func NewPlatformService(cfg config.Config, pa repository.PlatformAccountRepository) PlatformService {
	return &platformService{
		cfg: cfg,
		pa:  pa,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, state string) string {
	switch platform {
	case models.PlatformFacebook:
		params := url.Values{}
		params.Add("client_id", s.cfg.FacebookAppID)
		params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
		params.Add("scope", "pages_show_list,pages_manage_posts,pages_read_engagement,read_insights")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", FACEBOOK_AUTH_URL, params.Encode())

	case models.PlatformInstagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.FacebookAppID)
		params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
		params.Add("scope", "instagram_basic,instagram_content_publish,pages_show_list")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", FACEBOOK_AUTH_URL, params.Encode())

	case models.PlatformYoutube:
		params := url.Values{}
		params.Add("client_id", s.cfg.GoogleClientID)
		params.Add("redirect_uri", s.cfg.GoogleRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "https://www.googleapis.com/auth/userinfo.profile https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/youtube.upload")
		params.Add("state", state)
		params.Add("access_type", "offline")
		return fmt.Sprintf("%s?%s", GOOGLE_AUTH_URL, params.Encode())

	default:
		return ""
	}
}

// FacebookCallback finishes the page-publishing connect flow: exchange the
// code, upgrade to a long-lived token, pick the user's page and keep the
// page token, since feed publishing runs as the page.
func (s *platformService) FacebookCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	token, err := s.exchangeFacebookCode(ctx, code)
	if err != nil {
		return err
	}

	longLived, err := s.getLongLivedFacebookToken(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	pages, err := s.getFacebookPages(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		err = errors.New("no Facebook pages available for this account")
		slog.Info(err.Error())
		return err
	}
	page := pages[0]

	encryptedToken, err := utils.Encrypt([]byte(page.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.PlatformAccount{
		UserID:         userID,
		Platform:       models.PlatformFacebook,
		AccountID:      page.ID,
		AccountName:    page.Name,
		PageID:         page.ID,
		AccessToken:    encryptedToken,
		TokenExpiresAt: time.Now().Add(time.Duration(longLived.ExpiresIn) * time.Second),
	}

	_, err = s.pa.Create(ctx, nil, accountInfo)
	return err
}

// InstagramCallback connects the Instagram business account behind the
// user's Facebook page.
func (s *platformService) InstagramCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	token, err := s.exchangeFacebookCode(ctx, code)
	if err != nil {
		return err
	}

	longLived, err := s.getLongLivedFacebookToken(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	pages, err := s.getFacebookPages(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		err = errors.New("no Facebook pages available for this account")
		slog.Info(err.Error())
		return err
	}

	igAccountID, err := s.getInstagramBusinessAccount(ctx, pages[0].ID, longLived.AccessToken)
	if err != nil {
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(longLived.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.PlatformAccount{
		UserID:         userID,
		Platform:       models.PlatformInstagram,
		AccountID:      igAccountID,
		AccountName:    pages[0].Name,
		PageID:         pages[0].ID,
		AccessToken:    encryptedToken,
		TokenExpiresAt: time.Now().Add(time.Duration(longLived.ExpiresIn) * time.Second),
	}

	_, err = s.pa.Create(ctx, nil, accountInfo)
	return err
}

func (s *platformService) YoutubeCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		err := errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile", "https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if token.RefreshToken == "" {
		err = errors.New("refresh token is empty")
		slog.Info(err.Error())
		return err
	}

	client := oauth2Config.Client(ctx, token)
	userInfo, err := GetGoogleUserInfo(client)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.PlatformAccount{
		UserID:         userID,
		Platform:       models.PlatformYoutube,
		AccountID:      userInfo.ID,
		AccountName:    userInfo.Name,
		ChannelID:      userInfo.ID,
		ProfilePicture: userInfo.Picture,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	}

	_, err = s.pa.Create(ctx, nil, accountInfo)
	return err
}

// ConnectWhatsapp stores Business Cloud API credentials provided directly
// by the user; WhatsApp has no browser OAuth flow for system tokens.
func (s *platformService) ConnectWhatsapp(ctx context.Context, userID int64, accessToken, phoneNumberID, recipientID string) error {
	if accessToken == "" || phoneNumberID == "" {
		err := errors.New("access token and phone number id are required")
		slog.Info(err.Error())
		return err
	}

	encryptedToken, err := utils.Encrypt([]byte(accessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.PlatformAccount{
		UserID:         userID,
		Platform:       models.PlatformWhatsapp,
		AccountID:      recipientID,
		AccountName:    phoneNumberID,
		PhoneNumberID:  phoneNumberID,
		AccessToken:    encryptedToken,
		TokenExpiresAt: time.Now().Add(60 * 24 * time.Hour),
	}

	_, err = s.pa.Create(ctx, nil, accountInfo)
	return err
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	if userID == 0 {
		err := errors.New("user id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.pa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting platform accounts")
	}
	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	if userID == 0 || accountID == 0 {
		err := errors.New("user or account id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("platform account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	accountInfo, err := s.pa.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("unable to get platform account info")
	}

	if accountInfo.Platform == models.PlatformYoutube {
		decryptedAccessToken, err := utils.Decrypt(accountInfo.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		if err := RevokeGoogleAccess(decryptedAccessToken); err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("unable to revoke access")
		}
	}

	if err := s.pa.Remove(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account info")
	}
	return nil
}

func (s *platformService) exchangeFacebookCode(ctx context.Context, code string) (*transfer.FacebookToken, error) {
	params := url.Values{}
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("client_secret", s.cfg.FacebookAppSecret)
	params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Add("code", code)

	return s.facebookTokenRequest(ctx, params)
}

func (s *platformService) getLongLivedFacebookToken(ctx context.Context, shortLivedToken string) (*transfer.FacebookToken, error) {
	params := url.Values{}
	params.Add("grant_type", "fb_exchange_token")
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("client_secret", s.cfg.FacebookAppSecret)
	params.Add("fb_exchange_token", shortLivedToken)

	token, err := s.facebookTokenRequest(ctx, params)
	if err != nil {
		return nil, err
	}
	if token.ExpiresIn == 0 {
		token.ExpiresIn = 5184000 // 60 days default
	}
	return token, nil
}

func (s *platformService) facebookTokenRequest(ctx context.Context, params url.Values) (*transfer.FacebookToken, error) {
	reqURL := fmt.Sprintf("%s/oauth/access_token?%s", FACEBOOK_GRAPH_URL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to exchange Facebook token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var token transfer.FacebookToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &token, nil
}

func (s *platformService) getFacebookPages(ctx context.Context, accessToken string) ([]transfer.FacebookPage, error) {
	reqURL := fmt.Sprintf("%s/me/accounts?fields=id,name,access_token,category&access_token=%s", FACEBOOK_GRAPH_URL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to fetch Facebook pages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var result struct {
		Data []transfer.FacebookPage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode pages response: %w", err)
	}
	return result.Data, nil
}

func (s *platformService) getInstagramBusinessAccount(ctx context.Context, pageID, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=instagram_business_account&access_token=%s", FACEBOOK_GRAPH_URL, pageID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to resolve Instagram account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var result struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.InstagramBusinessAccount.ID == "" {
		return "", errors.New("no Instagram business account linked to this page")
	}
	return result.InstagramBusinessAccount.ID, nil
}
