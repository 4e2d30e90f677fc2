package service

import (
	"context"
	"strconv"
	"time"

	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/repository"
)

// UserStore is the persistence the services need for accounts.
// Lookups return (nil, nil) when the row does not exist.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string) error
	SaveEntitlement(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	ListExpiredPremium(ctx context.Context, now time.Time) ([]models.User, error)
	ListTelegramIDs(ctx context.Context) ([]int64, error)
}

type BotStore interface {
	FindByID(ctx context.Context, id int64) (*models.BotArtifact, error)
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]models.BotArtifact, error)
	List(ctx context.Context, limit, offset int) ([]models.BotArtifact, error)
	UpdateStatus(ctx context.Context, id int64, status models.BotStatus) error
}

// GenerationStore finalizes records. Complete must apply the artifact insert,
// the record update and the counter increment atomically.
type GenerationStore interface {
	CreatePending(ctx context.Context, userID int64, prompt string, at time.Time) (*models.GenerationRecord, error)
	Complete(ctx context.Context, c repository.Completion) (*models.BotArtifact, error)
	MarkFailed(ctx context.Context, id int64, at time.Time) error
	FailPendingBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
	List(ctx context.Context, limit, offset int) ([]models.GenerationRecord, error)
}

type AdminStore interface {
	Add(ctx context.Context, telegramID int64) (bool, error)
	Remove(ctx context.Context, telegramID int64) (bool, error)
	Exists(ctx context.Context, telegramID int64) (bool, error)
	List(ctx context.Context) ([]int64, error)
}

type StatsStore interface {
	Counts(ctx context.Context, since time.Time) (models.Stats, error)
}

// Uploader publishes bundle archives and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func userLockKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

func adminLockKey(telegramID int64) string {
	return "admin:" + strconv.FormatInt(telegramID, 10)
}
