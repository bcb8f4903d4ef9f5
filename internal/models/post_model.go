package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID           int64            `db:"id" json:"id"`
	UserID       int64            `db:"user_id" json:"user_id"`
	Content      string           `db:"content" json:"content"`
	Title        string           `db:"title" json:"title"`
	ScheduledFor sql.NullTime     `db:"scheduled_for" json:"scheduled_for"`
	Status       string           `db:"status" json:"status"` // draft, scheduled, posting, posted, failed
	MediaFiles   []MediaFile      `json:"media_files"`
	Targets      []PlatformTarget `json:"targets"`
	Analytics    PostAnalytics    `json:"analytics"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

type MediaFile struct {
	ID           int64     `db:"id" json:"id"`
	PostID       int64     `db:"post_id" json:"post_id"`
	URL          string    `db:"file_url" json:"url"`
	Kind         string    `db:"media_kind" json:"kind"` // image, video
	FileName     string    `db:"file_name" json:"file_name"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type PlatformTarget struct {
	ID           int64        `db:"id" json:"id"`
	PostID       int64        `db:"post_id" json:"post_id"`
	Platform     string       `db:"platform" json:"platform"`
	RemotePostID string       `db:"remote_post_id" json:"remote_post_id"`
	Status       string       `db:"status" json:"status"` // pending, scheduled, posted, failed
	ErrorMessage string       `db:"error_message" json:"error_message"`
	PostedAt     sql.NullTime `db:"posted_at" json:"posted_at"`
	Likes        int64        `db:"likes" json:"likes"`
	Comments     int64        `db:"comments" json:"comments"`
	Shares       int64        `db:"shares" json:"shares"`
	Views        int64        `db:"views" json:"views"`
}

// PostAnalytics is an aggregate over target engagement. The publishing
// pipeline never writes it; the insights job keeps the numbers current.
type PostAnalytics struct {
	TotalViews    int64 `json:"total_views"`
	TotalLikes    int64 `json:"total_likes"`
	TotalComments int64 `json:"total_comments"`
	TotalShares   int64 `json:"total_shares"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosting   = "posting"
	PostStatusPosted    = "posted"
	PostStatusFailed    = "failed"
)

const (
	TargetStatusPending   = "pending"
	TargetStatusScheduled = "scheduled"
	TargetStatusPosted    = "posted"
	TargetStatusFailed    = "failed"
)

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// TargetSettled reports whether a target reached a terminal state.
func TargetSettled(status string) bool {
	return status == TargetStatusPosted || status == TargetStatusFailed
}
