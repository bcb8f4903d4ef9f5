package job

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/socialpost/socialpost/internal/transfer"
)

const facebookGraphURL = "https://graph.facebook.com/v18.0"

func exchangeLongLivedToken(ctx context.Context, appID, appSecret, token string) (*transfer.FacebookToken, error) {
	params := url.Values{}
	params.Add("grant_type", "fb_exchange_token")
	params.Add("client_id", appID)
	params.Add("client_secret", appSecret)
	params.Add("fb_exchange_token", token)

	reqURL := fmt.Sprintf("%s/oauth/access_token?%s", facebookGraphURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange Facebook token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var result transfer.FacebookToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.ExpiresIn == 0 {
		result.ExpiresIn = 5184000
	}
	return &result, nil
}

type postEngagement struct {
	Likes    int64
	Comments int64
	Shares   int64
	Views    int64
}

// fetchPostEngagement reads reaction, comment and share counts for a
// published page post.
func fetchPostEngagement(ctx context.Context, remotePostID, accessToken string) (*postEngagement, error) {
	fields := "reactions.summary(total_count),comments.summary(total_count),shares"
	reqURL := fmt.Sprintf("%s/%s?fields=%s&access_token=%s",
		facebookGraphURL, remotePostID, url.QueryEscape(fields), url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post engagement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from Facebook: %d", resp.StatusCode)
	}

	var result struct {
		Reactions struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"reactions"`
		Comments struct {
			Summary struct {
				TotalCount int64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
		Shares struct {
			Count int64 `json:"count"`
		} `json:"shares"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode engagement response: %w", err)
	}

	return &postEngagement{
		Likes:    result.Reactions.Summary.TotalCount,
		Comments: result.Comments.Summary.TotalCount,
		Shares:   result.Shares.Count,
	}, nil
}
