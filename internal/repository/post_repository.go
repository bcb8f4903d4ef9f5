package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/socialpost/socialpost/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetWithOwner(ctx context.Context, id int64) (*models.Post, *models.User, error)
	GetByUserID(ctx context.Context, userID int64, status string) ([]*models.Post, error)
	FindDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	ClaimForPosting(ctx context.Context, postID int64, fromStatuses []string) (bool, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	Update(ctx context.Context, post *models.Post) error
	CreateMedia(ctx context.Context, tx *sql.Tx, mf *models.MediaFile) error
	CreateTarget(ctx context.Context, tx *sql.Tx, t *models.PlatformTarget) error
	SaveTarget(ctx context.Context, t *models.PlatformTarget) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	CountUpcoming(ctx context.Context, now time.Time) (int64, error)
	NextScheduled(ctx context.Context, now time.Time) (*models.Post, error)
	ListPostedTargets(ctx context.Context, platform string, since time.Time) ([]*TargetWithOwner, error)
	UpdateTargetMetrics(ctx context.Context, t *models.PlatformTarget) error
	Remove(ctx context.Context, id int64) error
}

type TargetWithOwner struct {
	Target *models.PlatformTarget
	UserID int64
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content, title, scheduled_for, status, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content, title, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Content, post.Title, post.ScheduledFor, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Content, post.Title, post.ScheduledFor, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.Title, &post.ScheduledFor, &post.Status, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	if err := r.loadAssociations(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetWithOwner(ctx context.Context, id int64) (*models.Post, *models.User, error) {
	post, err := r.GetByID(ctx, id)
	if err != nil || post == nil {
		return post, nil, err
	}

	query := `SELECT id, google_id, email, name, profile_picture FROM users WHERE id = $1`
	var user models.User
	err = r.db.QueryRowContext(ctx, query, post.UserID).Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.ProfilePicture)
	if err != nil {
		if err == sql.ErrNoRows {
			return post, nil, nil
		}
		slog.Info(err.Error())
		return nil, nil, err
	}

	return post, &user, nil
}

func (r *postRepository) loadAssociations(ctx context.Context, post *models.Post) error {
	mediaQuery := `
		SELECT id, post_id, file_url, media_kind, file_name, file_size, display_order
		FROM post_media
		WHERE post_id = $1
		ORDER BY display_order
	`
	rows, err := r.db.QueryContext(ctx, mediaQuery, post.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var mf models.MediaFile
		if err := rows.Scan(&mf.ID, &mf.PostID, &mf.URL, &mf.Kind, &mf.FileName, &mf.FileSize, &mf.DisplayOrder); err != nil {
			slog.Info(err.Error())
			return err
		}
		post.MediaFiles = append(post.MediaFiles, mf)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return err
	}

	targetQuery := `
		SELECT id, post_id, platform, remote_post_id, status, error_message, posted_at, likes, comments, shares, views
		FROM post_targets
		WHERE post_id = $1
		ORDER BY id
	`
	trows, err := r.db.QueryContext(ctx, targetQuery, post.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer trows.Close()

	for trows.Next() {
		var t models.PlatformTarget
		if err := trows.Scan(&t.ID, &t.PostID, &t.Platform, &t.RemotePostID, &t.Status, &t.ErrorMessage, &t.PostedAt, &t.Likes, &t.Comments, &t.Shares, &t.Views); err != nil {
			slog.Info(err.Error())
			return err
		}
		post.Targets = append(post.Targets, t)
		post.Analytics.TotalLikes += t.Likes
		post.Analytics.TotalComments += t.Comments
		post.Analytics.TotalShares += t.Shares
		post.Analytics.TotalViews += t.Views
	}
	if err := trows.Err(); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64, status string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	for _, post := range posts {
		if err := r.loadAssociations(ctx, post); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// FindDue lists posts whose scheduled time has arrived, soonest first.
func (r *postRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
	`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// ClaimForPosting flips the post to "posting" only if its stored status is
// still one of fromStatuses. A false return means another worker got there
// first or the post is not in a publishable state.
func (r *postRepository) ClaimForPosting(ctx context.Context, postID int64, fromStatuses []string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = ANY($4)
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPosting, time.Now(), postID, pq.Array(fromStatuses))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET content = $1,
			title = $2,
			scheduled_for = $3,
			status = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, post.Content, post.Title, post.ScheduledFor, post.Status, time.Now(), post.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CreateMedia(ctx context.Context, tx *sql.Tx, mf *models.MediaFile) error {
	query := `
		INSERT INTO post_media (post_id, file_url, media_kind, file_name, file_size, display_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, mf.PostID, mf.URL, mf.Kind, mf.FileName, mf.FileSize, mf.DisplayOrder)
	} else {
		_, err = r.db.ExecContext(ctx, query, mf.PostID, mf.URL, mf.Kind, mf.FileName, mf.FileSize, mf.DisplayOrder)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CreateTarget(ctx context.Context, tx *sql.Tx, t *models.PlatformTarget) error {
	query := `
		INSERT INTO post_targets (post_id, platform, status)
		VALUES ($1, $2, $3)
	`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, t.PostID, t.Platform, t.Status)
	} else {
		_, err = r.db.ExecContext(ctx, query, t.PostID, t.Platform, t.Status)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SaveTarget writes back an attempted target. Repeated saves with the same
// content are harmless.
func (r *postRepository) SaveTarget(ctx context.Context, t *models.PlatformTarget) error {
	query := `
		UPDATE post_targets
		SET remote_post_id = $1,
			status = $2,
			error_message = $3,
			posted_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, t.RemotePostID, t.Status, t.ErrorMessage, t.PostedAt, t.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM posts WHERE status = $1 AND scheduled_for >= $2`

	var count int64
	err := r.db.QueryRowContext(ctx, query, models.PostStatusScheduled, now).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *postRepository) NextScheduled(ctx context.Context, now time.Time) (*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND scheduled_for >= $2
		ORDER BY scheduled_for ASC
		LIMIT 1
	`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, models.PostStatusScheduled, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListPostedTargets(ctx context.Context, platform string, since time.Time) ([]*TargetWithOwner, error) {
	query := `
		SELECT t.id, t.post_id, t.remote_post_id, p.user_id
		FROM post_targets t
		JOIN posts p ON p.id = t.post_id
		WHERE t.platform = $1 AND t.status = $2 AND t.posted_at >= $3
	`
	rows, err := r.db.QueryContext(ctx, query, platform, models.TargetStatusPosted, since)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var targets []*TargetWithOwner
	for rows.Next() {
		t := &models.PlatformTarget{Platform: platform, Status: models.TargetStatusPosted}
		two := &TargetWithOwner{Target: t}
		if err := rows.Scan(&t.ID, &t.PostID, &t.RemotePostID, &two.UserID); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		targets = append(targets, two)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return targets, nil
}

func (r *postRepository) UpdateTargetMetrics(ctx context.Context, t *models.PlatformTarget) error {
	query := `
		UPDATE post_targets
		SET likes = $1, comments = $2, shares = $3, views = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, t.Likes, t.Comments, t.Shares, t.Views, t.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
