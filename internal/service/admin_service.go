package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/lock"
	"github.com/digkill/botforge/internal/models"
)

const (
	recentWindow    = 30 * 24 * time.Hour
	defaultPageSize = 50
	maxPageSize     = 500
)

// SweepReport summarizes one maintenance pass.
type SweepReport struct {
	PremiumExpired int   `json:"premium_expired"`
	PendingFailed  int64 `json:"pending_failed"`
}

type AdminService struct {
	cfg         config.Config
	log         *slog.Logger
	users       UserStore
	bots        BotStore
	generations GenerationStore
	admins      AdminStore
	stats       StatsStore
	locker      lock.Locker
	ledger      *LedgerService
	generator   *GenerationService
	now         func() time.Time
}

func NewAdminService(cfg config.Config, log *slog.Logger, users UserStore, bots BotStore, generations GenerationStore, admins AdminStore, stats StatsStore, locker lock.Locker, ledger *LedgerService, generator *GenerationService) *AdminService {
	return &AdminService{
		cfg:         cfg,
		log:         log,
		users:       users,
		bots:        bots,
		generations: generations,
		admins:      admins,
		stats:       stats,
		locker:      locker,
		ledger:      ledger,
		generator:   generator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns the counters together with the revenue estimate.
func (s *AdminService) Stats(ctx context.Context) (models.Stats, error) {
	st, err := s.stats.Counts(ctx, s.now().Add(-recentWindow))
	if err != nil {
		return models.Stats{}, err
	}
	st.MonthlyRevenue = st.PremiumUsers * s.cfg.PremiumPrice
	st.TotalRevenue = st.MonthlyRevenue * 12
	if st.TotalUsers > 0 {
		rate := float64(st.PremiumUsers) / float64(st.TotalUsers) * 100
		st.ConversionRate = math.Round(rate*10) / 10
	}
	return st, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = page(limit, offset)
	return s.users.List(ctx, limit, offset)
}

func (s *AdminService) User(ctx context.Context, userID int64) (*models.User, error) {
	return s.ledger.Snapshot(ctx, userID)
}

// SearchUser finds a user by username; a leading @ is ignored.
func (s *AdminService) SearchUser(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, invalidArgument("username is required")
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *AdminService) UserBots(ctx context.Context, userID int64, limit int) ([]models.BotArtifact, error) {
	if _, err := s.ledger.Snapshot(ctx, userID); err != nil {
		return nil, err
	}
	limit, _ = page(limit, 0)
	return s.bots.ListByOwner(ctx, userID, limit)
}

func (s *AdminService) ListBots(ctx context.Context, limit, offset int) ([]models.BotArtifact, error) {
	limit, offset = page(limit, offset)
	return s.bots.List(ctx, limit, offset)
}

func (s *AdminService) ListGenerations(ctx context.Context, limit, offset int) ([]models.GenerationRecord, error) {
	limit, offset = page(limit, offset)
	return s.generations.List(ctx, limit, offset)
}

// ToggleBotStatus flips active and inactive; any other status becomes active.
func (s *AdminService) ToggleBotStatus(ctx context.Context, botID int64) (*models.BotArtifact, error) {
	bot, err := s.bots.FindByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	next := models.BotStatusActive
	if bot.Status == models.BotStatusActive {
		next = models.BotStatusInactive
	}
	if err := s.bots.UpdateStatus(ctx, botID, next); err != nil {
		return nil, err
	}
	s.log.Info("bot status toggled", "bot_id", botID, "from", string(bot.Status), "to", string(next))
	bot.Status = next
	return bot, nil
}

func (s *AdminService) AddAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if telegramID <= 0 {
		return false, invalidArgument("telegram id must be positive")
	}
	return s.withAdminLock(ctx, telegramID, func() (bool, error) {
		return s.admins.Add(ctx, telegramID)
	})
}

func (s *AdminService) RemoveAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return s.withAdminLock(ctx, telegramID, func() (bool, error) {
		return s.admins.Remove(ctx, telegramID)
	})
}

func (s *AdminService) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return s.admins.Exists(ctx, telegramID)
}

func (s *AdminService) ListAdmins(ctx context.Context) ([]int64, error) {
	return s.admins.List(ctx)
}

// SeedAdmins makes sure every configured id is in the admin set.
func (s *AdminService) SeedAdmins(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := s.AddAdmin(ctx, id); err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
	}
	return nil
}

func (s *AdminService) withAdminLock(ctx context.Context, telegramID int64, fn func() (bool, error)) (bool, error) {
	release, err := s.locker.Acquire(ctx, adminLockKey(telegramID))
	if err != nil {
		return false, fmt.Errorf("lock admin %d: %w", telegramID, err)
	}
	defer release()
	return fn()
}

// Sweep demotes expired premium users and fails stale pending generations.
func (s *AdminService) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	expired, err := s.ledger.ExpirePremium(ctx)
	report.PremiumExpired = expired
	if err != nil {
		return report, err
	}
	failed, err := s.generator.SweepPending(ctx, s.cfg.PendingSweep)
	report.PendingFailed = failed
	if err != nil {
		return report, err
	}
	return report, nil
}
