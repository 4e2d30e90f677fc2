package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/botforge/internal/models"
)

const userColumns = `id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), is_premium, free_used, free_limit, premium_used, premium_limit, premium_expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		premium int
		expires sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &premium, &u.FreeUsed, &u.FreeLimit, &u.PremiumUsed, &u.PremiumLimit, &expires, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.IsPremium = premium != 0
	if expires.Valid {
		t := expires.Time
		u.PremiumExpiresAt = &t
	}
	return &u, nil
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.findOne(ctx, "telegram_id = ?", telegramID)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (telegram_id, username, first_name, last_name, is_premium, free_used, free_limit, premium_used, premium_limit)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), 0, 0, ?, 0, ?)`
	res, err := r.db.ExecContext(ctx, query, user.TelegramID, user.Username, user.FirstName, user.LastName, user.FreeLimit, user.PremiumLimit)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string) error {
	const query = `
UPDATE users SET username = NULLIF(?, ''), first_name = NULLIF(?, ''), last_name = NULLIF(?, ''), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, username, firstName, lastName, userID); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// SaveEntitlement persists the quota and premium fields of u as a whole.
// Callers hold the per-user lock.
func (r *UserRepository) SaveEntitlement(ctx context.Context, u *models.User) error {
	const query = `
UPDATE users SET is_premium = ?, free_used = ?, free_limit = ?, premium_used = ?, premium_limit = ?, premium_expires_at = ?, updated_at = NOW()
WHERE id = ?`
	premium := 0
	if u.IsPremium {
		premium = 1
	}
	var expires sql.NullTime
	if u.PremiumExpiresAt != nil {
		expires = sql.NullTime{Time: *u.PremiumExpiresAt, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, premium, u.FreeUsed, u.FreeLimit, u.PremiumUsed, u.PremiumLimit, expires, u.ID); err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListExpiredPremium returns premium users whose expiry is at or before now.
func (r *UserRepository) ListExpiredPremium(ctx context.Context, now time.Time) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_premium = 1 AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired premium: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
