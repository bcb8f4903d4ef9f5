package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/socialpost/socialpost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whatsappAccount(t *testing.T) *models.PlatformAccount {
	return &models.PlatformAccount{
		UserID:        7,
		Platform:      models.PlatformWhatsapp,
		AccountID:     "15550001111",
		PhoneNumberID: "phone-1",
		AccessToken:   encryptedToken(t, "wa-token"),
	}
}

func newTestWhatsappClient(srv *httptest.Server) *WhatsappClient {
	return &WhatsappClient{
		cfg:     testConfig(),
		baseURL: srv.URL,
		http:    srv.Client(),
	}
}

func TestWhatsappPublishText(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.1"}},
		})
	}))
	defer srv.Close()

	c := newTestWhatsappClient(srv)
	id, err := c.Publish(context.Background(), &Request{
		Content: "hello",
		Account: whatsappAccount(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", id)
	assert.Equal(t, "/phone-1/messages", gotPath)
	assert.Equal(t, "Bearer wa-token", gotAuth)
	assert.Equal(t, "text", gotPayload["type"])
	assert.Equal(t, "15550001111", gotPayload["to"])
}

func TestWhatsappPublishImageWithCaption(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []map[string]string{{"id": "wamid.2"}},
		})
	}))
	defer srv.Close()

	c := newTestWhatsappClient(srv)
	id, err := c.Publish(context.Background(), &Request{
		Content:    "look",
		MediaFiles: []models.MediaFile{{URL: "https://cdn.example/img.jpg", Kind: models.MediaKindImage}},
		Account:    whatsappAccount(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", id)
	assert.Equal(t, "image", gotPayload["type"])

	image := gotPayload["image"].(map[string]interface{})
	assert.Equal(t, "https://cdn.example/img.jpg", image["link"])
	assert.Equal(t, "look", image["caption"])
}

func TestWhatsappPublishNoPhoneNumber(t *testing.T) {
	c := &WhatsappClient{cfg: testConfig()}
	acc := whatsappAccount(t)
	acc.PhoneNumberID = ""

	_, err := c.Publish(context.Background(), &Request{Content: "x", Account: acc})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrNotConnected, perr.Kind)
}

func TestWhatsappPublishExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestWhatsappClient(srv)
	_, err := c.Publish(context.Background(), &Request{Content: "x", Account: whatsappAccount(t)})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrTokenInvalid, perr.Kind)
}
