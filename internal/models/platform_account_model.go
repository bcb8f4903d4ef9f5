package models

import "time"

// PlatformAccount holds one user's connection to a social platform.
// Access and refresh tokens are stored AES-GCM encrypted; the orchestrator
// treats the whole record as read-only.
type PlatformAccount struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	AccountID      string    `db:"account_id" json:"account_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	PageID         string    `db:"page_id" json:"page_id"`
	ChannelID      string    `db:"channel_id" json:"channel_id"`
	PhoneNumberID  string    `db:"phone_number_id" json:"phone_number_id"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformYoutube   = "youtube"
	PlatformWhatsapp  = "whatsapp"
)
