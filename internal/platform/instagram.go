package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	config "github.com/socialpost/socialpost/configs"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/pkg/utils"
)

const instagramGraphURL = "https://graph.instagram.com/v21.0"

type InstagramClient struct {
	cfg     config.Config
	baseURL string
	http    *http.Client
}

func NewInstagramClient(cfg config.Config) *InstagramClient {
	return &InstagramClient{
		cfg:     cfg,
		baseURL: instagramGraphURL,
		http:    http.DefaultClient,
	}
}

func (c *InstagramClient) Name() string {
	return models.PlatformInstagram
}

// Publish creates a media container (carousel for multi-image posts) and
// then publishes it, per the Instagram content publishing flow.
func (c *InstagramClient) Publish(ctx context.Context, req *Request) (string, error) {
	accessToken, err := utils.Decrypt(req.Account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return "", NewError(ErrTokenInvalid, "could not decrypt Instagram access token")
	}

	images, _ := splitMediaByKind(req.MediaFiles)
	if len(images) == 0 {
		return "", NewError(ErrUnsupportedContent, "no image file found")
	}

	accountID := req.Account.AccountID

	var containerID string
	if len(images) == 1 {
		containerID, err = c.createContainer(ctx, accountID, map[string]interface{}{
			"image_url":    images[0].URL,
			"caption":      req.Content,
			"access_token": accessToken,
		})
	} else {
		containerID, err = c.createCarousel(ctx, accountID, accessToken, req.Content, images)
	}
	if err != nil {
		return "", err
	}

	return c.publishContainer(ctx, accountID, containerID, accessToken)
}

func (c *InstagramClient) createCarousel(ctx context.Context, accountID, accessToken, caption string, images []models.MediaFile) (string, error) {
	children := make([]string, 0, len(images))
	for _, img := range images {
		id, err := c.createContainer(ctx, accountID, map[string]interface{}{
			"image_url":        img.URL,
			"is_carousel_item": true,
			"access_token":     accessToken,
		})
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	return c.createContainer(ctx, accountID, map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     children,
		"access_token": accessToken,
	})
}

func (c *InstagramClient) createContainer(ctx context.Context, accountID string, payload map[string]interface{}) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/media", c.baseURL, accountID)
	return c.post(ctx, reqURL, payload)
}

func (c *InstagramClient) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/media_publish", c.baseURL, accountID)
	return c.post(ctx, reqURL, map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	})
}

func (c *InstagramClient) post(ctx context.Context, reqURL string, payload map[string]interface{}) (string, error) {
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
		return "", NewError(ErrTransientNetwork, "Instagram request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(ErrTransientNetwork, "error reading Instagram response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Type == "OAuthException" {
			return "", NewError(ErrTokenInvalid, "Instagram token expired")
		}
		return "", NewError(ErrUploadRejected, "unexpected status code from Instagram: %d", resp.StatusCode)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", NewError(ErrUploadRejected, "error parsing Instagram response: %v", err)
	}
	if result.ID == "" {
		return "", NewError(ErrUploadRejected, "no media id returned from Instagram")
	}
	return result.ID, nil
}
