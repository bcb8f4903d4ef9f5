package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/socialpost/socialpost/internal/models"
)

type PlatformAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pa *models.PlatformAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformAccount, error)
	ListInfoByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error)
	ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, userID int64, oldAccessToken string, pa *models.PlatformAccount) error
	Remove(ctx context.Context, id int64) error
}

type platformAccountRepository struct {
	db *sql.DB
}

func NewPlatformAccountRepository(db *sql.DB) PlatformAccountRepository {
	return &platformAccountRepository{db: db}
}

const platformAccountColumns = `id, user_id, platform, account_id, account_name, page_id, channel_id, phone_number_id, profile_picture_url, access_token, refresh_token, token_expires_at, created_at, updated_at`

func (r *platformAccountRepository) Create(ctx context.Context, tx *sql.Tx, pa *models.PlatformAccount) (int64, error) {
	var err error
	var id int64

	insertQuery := `
		INSERT INTO platform_accounts(
			user_id,
			platform,
			account_id,
			account_name,
			page_id,
			channel_id,
			phone_number_id,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	args := []interface{}{
		pa.UserID,
		pa.Platform,
		pa.AccountID,
		pa.AccountName,
		pa.PageID,
		pa.ChannelID,
		pa.PhoneNumberID,
		pa.ProfilePicture,
		pa.AccessToken,
		pa.RefreshToken,
		pa.TokenExpiresAt,
	}

	if tx != nil {
		err = tx.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, insertQuery, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *platformAccountRepository) scanAccount(row interface{ Scan(...interface{}) error }) (*models.PlatformAccount, error) {
	var pa models.PlatformAccount
	err := row.Scan(&pa.ID, &pa.UserID, &pa.Platform, &pa.AccountID, &pa.AccountName,
		&pa.PageID, &pa.ChannelID, &pa.PhoneNumberID, &pa.ProfilePicture,
		&pa.AccessToken, &pa.RefreshToken, &pa.TokenExpiresAt, &pa.CreatedAt, &pa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *platformAccountRepository) GetByID(ctx context.Context, id int64) (*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + ` FROM platform_accounts WHERE id = $1`
	pa, err := r.scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pa, nil
}

// GetByUserAndPlatform resolves a user's credentials for one platform.
// A nil result with nil error means the platform is not connected.
func (r *platformAccountRepository) GetByUserAndPlatform(ctx context.Context, userID int64, platform string) (*models.PlatformAccount, error) {
	query := `SELECT ` + platformAccountColumns + ` FROM platform_accounts WHERE user_id = $1 AND platform = $2`
	pa, err := r.scanAccount(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return pa, nil
}

func (r *platformAccountRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.PlatformAccount, error) {
	query := `SELECT id, platform, account_name, profile_picture_url, token_expires_at FROM platform_accounts WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.PlatformAccount
	for rows.Next() {
		var pa models.PlatformAccount
		if err := rows.Scan(&pa.ID, &pa.Platform, &pa.AccountName, &pa.ProfilePicture, &pa.TokenExpiresAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &pa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *platformAccountRepository) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.PlatformAccount, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, token_expires_at
		FROM platform_accounts
		WHERE (token_expires_at BETWEEN $1 AND $2)
		OR (token_expires_at < $1)
	`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.PlatformAccount
	for rows.Next() {
		var pa models.PlatformAccount
		if err := rows.Scan(&pa.ID, &pa.UserID, &pa.Platform, &pa.AccessToken, &pa.RefreshToken, &pa.TokenExpiresAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &pa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

func (r *platformAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM platform_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *platformAccountRepository) SetToken(ctx context.Context, userID int64, oldAccessToken string, pa *models.PlatformAccount) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	updateTokenQuery := `
		UPDATE platform_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND access_token = $2
	`
	result, err := tx.ExecContext(ctx, updateTokenQuery, userID, oldAccessToken, pa.AccessToken, pa.RefreshToken, pa.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; account may have been disconnected")
		return errors.New("no rows affected; account may have been disconnected")
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *platformAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM platform_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
