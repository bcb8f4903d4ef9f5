package platform

import (
	"context"
	"testing"

	"github.com/socialpost/socialpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYoutubePublishRequiresVideo(t *testing.T) {
	c := NewYoutubeClient(testConfig())

	_, err := c.Publish(context.Background(), &Request{
		Content: "no video here",
		MediaFiles: []models.MediaFile{
			{URL: "https://cdn.example/img.jpg", Kind: models.MediaKindImage},
		},
		Account: &models.PlatformAccount{AccessToken: encryptedToken(t, "yt-token")},
	})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrUnsupportedContent, perr.Kind)
	assert.Equal(t, "no video file found", perr.Message)
}
