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

type WhatsappClient struct {
	cfg     config.Config
	baseURL string
	http    *http.Client
}

func NewWhatsappClient(cfg config.Config) *WhatsappClient {
	return &WhatsappClient{
		cfg:     cfg,
		baseURL: facebookGraphURL,
		http:    http.DefaultClient,
	}
}

func (c *WhatsappClient) Name() string {
	return models.PlatformWhatsapp
}

// Publish sends the post through the WhatsApp Business Cloud API to the
// broadcast recipient chosen when the account was connected.
func (c *WhatsappClient) Publish(ctx context.Context, req *Request) (string, error) {
	accessToken, err := utils.Decrypt(req.Account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return "", NewError(ErrTokenInvalid, "could not decrypt WhatsApp access token")
	}

	if req.Account.PhoneNumberID == "" {
		return "", NewError(ErrNotConnected, "no WhatsApp phone number configured")
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                req.Account.AccountID,
	}

	images, _ := splitMediaByKind(req.MediaFiles)
	if len(images) > 0 {
		payload["type"] = "image"
		payload["image"] = map[string]string{
			"link":    images[0].URL,
			"caption": req.Content,
		}
	} else {
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{
			"body": req.Content,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/messages", c.baseURL, req.Account.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", NewError(ErrTransientNetwork, "WhatsApp request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(ErrTransientNetwork, "error reading WhatsApp response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return "", NewError(ErrTokenInvalid, "WhatsApp token expired")
		}
		return "", NewError(ErrUploadRejected, "unexpected status code from WhatsApp: %d", resp.StatusCode)
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", NewError(ErrUploadRejected, "error parsing WhatsApp response: %v", err)
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return "", NewError(ErrUploadRejected, "no message id returned from WhatsApp")
	}

	return result.Messages[0].ID, nil
}
