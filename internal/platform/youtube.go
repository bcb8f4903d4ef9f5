package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	config "github.com/socialpost/socialpost/configs"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/pkg/utils"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type YoutubeClient struct {
	cfg config.Config
}

func NewYoutubeClient(cfg config.Config) *YoutubeClient {
	return &YoutubeClient{cfg: cfg}
}

func (c *YoutubeClient) Name() string {
	return models.PlatformYoutube
}

// Publish uploads the post's video to YouTube. A post without a video file
// fails without touching the API.
func (c *YoutubeClient) Publish(ctx context.Context, req *Request) (string, error) {
	var video *models.MediaFile
	for i := range req.MediaFiles {
		if req.MediaFiles[i].Kind == models.MediaKindVideo {
			video = &req.MediaFiles[i]
			break
		}
	}
	if video == nil {
		return "", NewError(ErrUnsupportedContent, "no video file found")
	}

	accessToken, err := utils.Decrypt(req.Account.AccessToken, []byte(c.cfg.SecretKey))
	if err != nil {
		return "", NewError(ErrTokenInvalid, "could not decrypt YouTube access token")
	}

	token := &oauth2.Token{AccessToken: accessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return "", NewError(ErrTransientNetwork, "error creating YouTube service: %v", err)
	}

	tempFile, err := downloadToTempFile(ctx, video.URL)
	if err != nil {
		slog.Info(err.Error())
		return "", NewError(ErrTransientNetwork, "error fetching video file: %v", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return "", fmt.Errorf("error opening video file: %w", err)
	}
	defer file.Close()

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, upload)
	response, err := call.Media(file).Do()
	if err != nil {
		slog.Info(err.Error())
		if apiErr, ok := err.(*googleapi.Error); ok {
			if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
				return "", NewError(ErrTokenInvalid, "YouTube token expired")
			}
			return "", NewError(ErrUploadRejected, "YouTube rejected upload: %s", apiErr.Message)
		}
		return "", NewError(ErrTransientNetwork, "error uploading video: %v", err)
	}

	return response.Id, nil
}

func downloadToTempFile(ctx context.Context, fileURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
	if err != nil {
		return "", err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	if _, err := io.Copy(tempFile, response.Body); err != nil {
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}

	return tempFile.Name(), nil
}
