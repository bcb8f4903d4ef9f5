package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/socialpost/socialpost/internal/models"
	"github.com/socialpost/socialpost/internal/publish"
	"github.com/socialpost/socialpost/internal/repository"
	"github.com/socialpost/socialpost/internal/transfer"
)

const maxContentLength = 2200

// ErrInvalidState is returned when an action is not allowed for the post's
// current status, e.g. publishing an already posted post.
var ErrInvalidState = errors.New("post is not in a publishable state")

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (postID int64, delay time.Duration, immediate bool, err error)
	List(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error
	Remove(ctx context.Context, userID, postID int64) error
	PublishNow(ctx context.Context, userID, postID int64) error
	ScheduledCount(ctx context.Context) (int64, error)
	NextScheduled(ctx context.Context) (*models.Post, error)
}

type postService struct {
	db       *sql.DB
	pr       repository.PostRepository
	pa       repository.PlatformAccountRepository
	orch     *publish.Orchestrator
	r2       R2Service
	validPlatforms map[string]bool
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	pa repository.PlatformAccountRepository,
	orch *publish.Orchestrator,
	r2 R2Service,
	platforms []string) PostService {
	valid := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		valid[p] = true
	}
	return &postService{
		db:             db,
		pr:             pr,
		pa:             pa,
		orch:           orch,
		r2:             r2,
		validPlatforms: valid,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (int64, time.Duration, bool, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, false, err
	}
	if pc.Content == "" {
		err := errors.New("content cannot be empty")
		slog.Info(err.Error())
		return 0, 0, false, err
	}
	if len(pc.Content) > maxContentLength {
		err := fmt.Errorf("content exceeds %d characters", maxContentLength)
		slog.Info(err.Error())
		return 0, 0, false, err
	}

	var platforms []string
	if err := json.Unmarshal([]byte(pc.Platforms), &platforms); err != nil {
		err = fmt.Errorf("invalid platforms format: %w", err)
		slog.Error(err.Error())
		return 0, 0, false, err
	}
	if len(platforms) == 0 {
		err := errors.New("no platforms selected")
		slog.Error(err.Error())
		return 0, 0, false, err
	}
	for _, p := range platforms {
		if !s.validPlatforms[p] {
			err := fmt.Errorf("unsupported platform: %s", p)
			slog.Info(err.Error())
			return 0, 0, false, err
		}
	}

	// No scheduled time means publish right away.
	var scheduledFor sql.NullTime
	if pc.ScheduledFor != "" {
		t, err := time.Parse("2006-01-02T15:04", pc.ScheduledFor)
		if err != nil {
			err = fmt.Errorf("invalid scheduled time format: %w", err)
			slog.Error(err.Error())
			return 0, 0, false, err
		}
		scheduledFor = sql.NullTime{Time: t, Valid: true}
	}

	postStatus := models.PostStatusDraft
	targetStatus := models.TargetStatusPending
	if scheduledFor.Valid {
		postStatus = models.PostStatusScheduled
		targetStatus = models.TargetStatusScheduled
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		UserID:       userID,
		Content:      pc.Content,
		Title:        pc.Title,
		ScheduledFor: scheduledFor,
		Status:       postStatus,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, 0, false, fmt.Errorf("error creating post: %w", err)
	}

	for _, p := range platforms {
		target := models.PlatformTarget{
			PostID:   postID,
			Platform: p,
			Status:   targetStatus,
		}
		if err = s.pr.CreateTarget(ctx, tx, &target); err != nil {
			return 0, 0, false, fmt.Errorf("error saving platform target %s: %w", p, err)
		}
	}

	if err = s.processFiles(ctx, tx, userID, postID, files); err != nil {
		return 0, 0, false, fmt.Errorf("error processing files: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !scheduledFor.Valid {
		return postID, 0, true, nil
	}

	delay := time.Until(scheduledFor.Time)
	if delay < 0 {
		delay = 0
	}
	return postID, delay, false, nil
}

func (s *postService) processFiles(ctx context.Context, tx *sql.Tx, userID, postID int64, files []*multipart.FileHeader) error {
	allowedKinds := map[string]string{
		"mp4": models.MediaKindVideo, "mov": models.MediaKindVideo,
		"jpg": models.MediaKindImage, "jpeg": models.MediaKindImage, "png": models.MediaKindImage,
	}

	for i, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return fmt.Errorf("error opening file: %w", err)
		}
		defer fileContent.Close()

		fileBytes, err := io.ReadAll(fileContent)
		if err != nil {
			return fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return fmt.Errorf("unsupported file type: %w", err)
		}
		kind, ok := allowedKinds[fileType.Extension]
		if !ok {
			return fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return err
		}
		if err := s.r2.UploadToR2(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}

		mf := models.MediaFile{
			PostID:       postID,
			URL:          s.r2.PublicURL(key),
			Kind:         kind,
			FileName:     key,
			FileSize:     int64(len(fileBytes)),
			DisplayOrder: i,
		}
		if err := s.pr.CreateMedia(ctx, tx, &mf); err != nil {
			return fmt.Errorf("error saving media file: %w", err)
		}
	}
	return nil
}

func (s *postService) List(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info")
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) error {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosted || post.Status == models.PostStatusPosting {
		slog.Info("rejected edit of published post", "post_id", postID)
		return ErrInvalidState
	}

	if pu.Content != "" {
		if len(pu.Content) > maxContentLength {
			return fmt.Errorf("content exceeds %d characters", maxContentLength)
		}
		post.Content = pu.Content
	}
	if pu.Title != "" {
		post.Title = pu.Title
	}
	if pu.ScheduledFor != "" {
		t, err := time.Parse("2006-01-02T15:04", pu.ScheduledFor)
		if err != nil {
			return fmt.Errorf("invalid scheduled time format: %w", err)
		}
		post.ScheduledFor = sql.NullTime{Time: t, Valid: true}
		post.Status = models.PostStatusScheduled
	}

	if err := s.pr.Update(ctx, post); err != nil {
		return fmt.Errorf("error updating post")
	}
	return nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPosted {
		slog.Info("rejected deletion of published post", "post_id", postID)
		return ErrInvalidState
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post")
	}
	return nil
}

// PublishNow publishes a draft or scheduled post immediately, bypassing
// its scheduled time.
func (s *postService) PublishNow(ctx context.Context, userID, postID int64) error {
	if err := s.checkOwnership(ctx, postID, userID); err != nil {
		return err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusScheduled {
		slog.Info("rejected publish, post not in publishable state", "post_id", postID, "status", post.Status)
		return ErrInvalidState
	}

	return s.orch.ProcessNow(ctx, postID)
}

func (s *postService) ScheduledCount(ctx context.Context) (int64, error) {
	return s.pr.CountUpcoming(ctx, time.Now())
}

func (s *postService) NextScheduled(ctx context.Context) (*models.Post, error) {
	return s.pr.NextScheduled(ctx, time.Now())
}

func (s *postService) checkOwnership(ctx context.Context, postID, userID int64) error {
	if userID == 0 {
		err := errors.New("user is not valid")
		slog.Info(err.Error())
		return err
	}
	if postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return nil
}
