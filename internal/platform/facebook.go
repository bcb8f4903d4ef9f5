package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	config "github.com/socialpost/socialpost/configs"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/pkg/utils"
)

const facebookGraphURL = "https://graph.facebook.com/v18.0"

type FacebookClient struct {
	cfg     config.Config
	baseURL string
	http    *http.Client
}

func NewFacebookClient(cfg config.Config) *FacebookClient {
	return &FacebookClient{
		cfg:     cfg,
		baseURL: facebookGraphURL,
		http:    http.DefaultClient,
	}
}

func (c *FacebookClient) Name() string {
	return models.PlatformFacebook
}

// ValidateToken checks token liveness against /me before a publish attempt.
func (c *FacebookClient) ValidateToken(ctx context.Context, account *models.PlatformAccount) bool {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		slog.Info(err.Error())
		return false
	}

	reqURL := fmt.Sprintf("%s/me?access_token=%s", c.baseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (c *FacebookClient) Publish(ctx context.Context, req *Request) (string, error) {
	accessToken, err := utils.Decrypt(req.Account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return "", NewError(ErrTokenInvalid, "could not decrypt Facebook access token")
	}

	pageID := req.Account.PageID
	if pageID == "" {
		return "", NewError(ErrNotConnected, "no Facebook page selected")
	}

	images, videos := splitMediaByKind(req.MediaFiles)

	switch {
	case len(videos) == 1 && len(images) == 0:
		return c.graphPost(ctx, fmt.Sprintf("%s/%s/videos", c.baseURL, pageID), map[string]interface{}{
			"description":  req.Content,
			"file_url":     videos[0].URL,
			"access_token": accessToken,
		})

	case len(images) == 1 && len(videos) == 0:
		return c.graphPost(ctx, fmt.Sprintf("%s/%s/photos", c.baseURL, pageID), map[string]interface{}{
			"message":      req.Content,
			"url":          images[0].URL,
			"access_token": accessToken,
		})

	case len(images) > 1:
		// Multi-image posts go out as an album: unpublished photo uploads
		// first, then one feed post referencing them.
		attached := make([]map[string]string, 0, len(images))
		for _, img := range images {
			id, err := c.graphPost(ctx, fmt.Sprintf("%s/%s/photos", c.baseURL, pageID), map[string]interface{}{
				"url":          img.URL,
				"published":    false,
				"access_token": accessToken,
			})
			if err != nil {
				return "", err
			}
			attached = append(attached, map[string]string{"media_fbid": id})
		}
		return c.graphPost(ctx, fmt.Sprintf("%s/%s/feed", c.baseURL, pageID), map[string]interface{}{
			"message":        req.Content,
			"attached_media": attached,
			"access_token":   accessToken,
		})

	default:
		return c.graphPost(ctx, fmt.Sprintf("%s/%s/feed", c.baseURL, pageID), map[string]interface{}{
			"message":      req.Content,
			"access_token": accessToken,
		})
	}
}

func (c *FacebookClient) graphPost(ctx context.Context, reqURL string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", NewError(ErrTransientNetwork, "Facebook request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(ErrTransientNetwork, "error reading Facebook response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", graphError(resp.StatusCode, respBody)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", NewError(ErrUploadRejected, "error parsing Facebook response: %v", err)
	}

	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", NewError(ErrUploadRejected, "no post id returned from Facebook")
	}
	return result.ID, nil
}

// graphError maps a Graph API error response onto the publish taxonomy.
// OAuthException means the token is dead, everything else is a rejection.
func graphError(status int, body []byte) *Error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		if apiErr.Error.Type == "OAuthException" || apiErr.Error.Code == 190 {
			return NewError(ErrTokenInvalid, "Facebook token expired")
		}
		return NewError(ErrUploadRejected, "Facebook rejected post: %s", apiErr.Error.Message)
	}
	return NewError(ErrUploadRejected, "unexpected status code from Facebook: %d", status)
}

func splitMediaByKind(files []models.MediaFile) (images, videos []models.MediaFile) {
	for _, f := range files {
		if f.Kind == models.MediaKindVideo {
			videos = append(videos, f)
		} else {
			images = append(images, f)
		}
	}
	return images, videos
}
