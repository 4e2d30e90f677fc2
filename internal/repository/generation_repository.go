package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/digkill/botforge/internal/database"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/models"
)

var (
	// ErrQuotaConflict means the conditional counter increment matched no row.
	ErrQuotaConflict = errors.New("quota counter already at limit")
	// ErrNotPending means the generation record was already finalized.
	ErrNotPending = errors.New("generation is not pending")
)

// Completion carries everything needed to finalize a successful generation.
type Completion struct {
	GenerationID int64
	UserID       int64
	Pool         entitlement.Pool
	Name         string
	Description  string
	Code         string
	At           time.Time
}

type GenerationRepository struct {
	db *sql.DB
}

func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) CreatePending(ctx context.Context, userID int64, prompt string, at time.Time) (*models.GenerationRecord, error) {
	const query = `
INSERT INTO generations (user_id, prompt, status, created_at)
VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, userID, prompt, string(models.GenerationPending), at)
	if err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &models.GenerationRecord{
		ID:        id,
		UserID:    userID,
		Prompt:    prompt,
		Status:    models.GenerationPending,
		CreatedAt: at,
	}, nil
}

// Complete inserts the artifact, finalizes the record and charges the pool in
// one transaction. Nothing is written unless all three succeed.
func (r *GenerationRepository) Complete(ctx context.Context, c Completion) (*models.BotArtifact, error) {
	counter := "free_used = free_used + 1 WHERE id = ? AND free_used < free_limit"
	if c.Pool == entitlement.PoolPremium {
		counter = "premium_used = premium_used + 1 WHERE id = ? AND premium_used < premium_limit"
	}

	artifact := &models.BotArtifact{
		Name:        c.Name,
		Description: c.Description,
		Code:        c.Code,
		Status:      models.BotStatusCreated,
		OwnerID:     c.UserID,
		CreatedAt:   c.At,
		UpdatedAt:   c.At,
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO bots (name, description, owner_id, status, generated_code, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`, c.Name, c.Description, c.UserID, string(models.BotStatusCreated), c.Code, c.At, c.At)
		if err != nil {
			return fmt.Errorf("insert bot: %w", err)
		}
		if artifact.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("bot last insert id: %w", err)
		}

		res, err = tx.ExecContext(ctx, `
UPDATE generations SET status = ?, bot_id = ?, generated_code = ?, completed_at = ?
WHERE id = ? AND status = ?`, string(models.GenerationCompleted), artifact.ID, c.Code, c.At, c.GenerationID, string(models.GenerationPending))
		if err != nil {
			return fmt.Errorf("complete generation: %w", err)
		}
		if err := expectOneRow(res, ErrNotPending); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE users SET updated_at = ?, `+counter, c.At, c.UserID)
		if err != nil {
			return fmt.Errorf("record consumption: %w", err)
		}
		return expectOneRow(res, ErrQuotaConflict)
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func expectOneRow(res sql.Result, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return onZero
	}
	return nil
}

// MarkFailed finalizes a pending record as failed. An already finalized
// record is left untouched.
func (r *GenerationRepository) MarkFailed(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE generations SET status = ?, completed_at = ? WHERE id = ? AND status = ?`
	if _, err := r.db.ExecContext(ctx, query, string(models.GenerationFailed), at, id, string(models.GenerationPending)); err != nil {
		return fmt.Errorf("mark generation failed: %w", err)
	}
	return nil
}

// FailPendingBefore fails every record still pending since before cutoff.
func (r *GenerationRepository) FailPendingBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	const query = `UPDATE generations SET status = ?, completed_at = ? WHERE status = ? AND created_at < ?`
	res, err := r.db.ExecContext(ctx, query, string(models.GenerationFailed), at, string(models.GenerationPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep pending generations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rows affected: %w", err)
	}
	return n, nil
}

func (r *GenerationRepository) List(ctx context.Context, limit, offset int) ([]models.GenerationRecord, error) {
	const query = `
SELECT id, user_id, bot_id, prompt, generated_code, status, created_at, completed_at
FROM generations ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var records []models.GenerationRecord
	for rows.Next() {
		var (
			g         models.GenerationRecord
			botID     sql.NullInt64
			code      sql.NullString
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.UserID, &botID, &g.Prompt, &code, &status, &g.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Status = models.GenerationStatus(status)
		if botID.Valid {
			id := botID.Int64
			g.BotID = &id
		}
		if code.Valid {
			s := code.String
			g.GeneratedCode = &s
		}
		if completed.Valid {
			t := completed.Time
			g.CompletedAt = &t
		}
		records = append(records, g)
	}
	return records, rows.Err()
}
