package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/botforge/internal/models"
)

// AdminRepository stores the set of privileged telegram ids.
type AdminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Add inserts telegramID and reports whether it was new.
func (r *AdminRepository) Add(ctx context.Context, telegramID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO admins (telegram_id) VALUES (?)`, telegramID)
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admin rows affected: %w", err)
	}
	return n > 0, nil
}

// Remove deletes telegramID and reports whether it was present.
func (r *AdminRepository) Remove(ctx context.Context, telegramID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admin rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *AdminRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE telegram_id = ?`, telegramID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup admin: %w", err)
	}
	return true, nil
}

func (r *AdminRepository) List(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT telegram_id FROM admins ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StatsRepository computes the aggregate counters for the reporting surface.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Counts fills every count field of Stats; revenue fields are left to the caller.
func (r *StatsRepository) Counts(ctx context.Context, since time.Time) (models.Stats, error) {
	var s models.Stats
	const query = `
SELECT
    (SELECT COUNT(*) FROM users),
    (SELECT COUNT(*) FROM users WHERE is_premium = 1),
    (SELECT COUNT(*) FROM bots),
    (SELECT COUNT(*) FROM bots WHERE status = ?),
    (SELECT COUNT(*) FROM users WHERE created_at >= ?),
    (SELECT COUNT(*) FROM bots WHERE created_at >= ?),
    (SELECT COUNT(*) FROM generations WHERE created_at >= ?),
    (SELECT COUNT(*) FROM generations),
    (SELECT COUNT(*) FROM generations WHERE status = ?),
    (SELECT COUNT(*) FROM generations WHERE status = ?),
    (SELECT COUNT(*) FROM generations WHERE status = ?)`
	row := r.db.QueryRowContext(ctx, query,
		string(models.BotStatusActive), since, since, since,
		string(models.GenerationPending), string(models.GenerationCompleted), string(models.GenerationFailed))
	if err := row.Scan(&s.TotalUsers, &s.PremiumUsers, &s.TotalBots, &s.ActiveBots,
		&s.RecentUsers, &s.RecentBots, &s.RecentGenerations, &s.TotalGenerations,
		&s.PendingGenerations, &s.CompletedGenerations, &s.FailedGenerations); err != nil {
		return models.Stats{}, fmt.Errorf("scan stats: %w", err)
	}
	return s, nil
}
