package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/botforge/internal/models"
)

const botColumns = `id, name, COALESCE(description, ''), COALESCE(generated_code, ''), status, owner_id, created_at, updated_at`

type BotRepository struct {
	db *sql.DB
}

func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

func scanBot(row rowScanner) (*models.BotArtifact, error) {
	var b models.BotArtifact
	var status string
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Code, &status, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = models.BotStatus(status)
	return &b, nil
}

func (r *BotRepository) FindByID(ctx context.Context, id int64) (*models.BotArtifact, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id)
	b, err := scanBot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bot: %w", err)
	}
	return b, nil
}

// ListByOwner returns the newest artifacts of one user first.
func (r *BotRepository) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]models.BotArtifact, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots WHERE owner_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bots by owner: %w", err)
	}
	defer rows.Close()
	return collectBots(rows)
}

func (r *BotRepository) List(ctx context.Context, limit, offset int) ([]models.BotArtifact, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()
	return collectBots(rows)
}

func collectBots(rows *sql.Rows) ([]models.BotArtifact, error) {
	var bots []models.BotArtifact
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}

func (r *BotRepository) UpdateStatus(ctx context.Context, id int64, status models.BotStatus) error {
	const query = `UPDATE bots SET status = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(status), id); err != nil {
		return fmt.Errorf("update bot status: %w", err)
	}
	return nil
}
