package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/models"
)

// Profile is the display data the front-end knows about a user.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

type UserService struct {
	cfg   config.Config
	log   *slog.Logger
	users UserStore
	bots  BotStore
}

func NewUserService(cfg config.Config, log *slog.Logger, users UserStore, bots BotStore) *UserService {
	return &UserService{cfg: cfg, log: log, users: users, bots: bots}
}

// Ensure registers the user on first contact and refreshes display fields
// afterwards. The bool reports whether the user was created.
func (s *UserService) Ensure(ctx context.Context, p Profile) (*models.User, bool, error) {
	user, err := s.users.FindByTelegramID(ctx, p.TelegramID)
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	if user != nil {
		if user.Username != p.Username || user.FirstName != p.FirstName || user.LastName != p.LastName {
			if err := s.users.UpdateProfile(ctx, user.ID, p.Username, p.FirstName, p.LastName); err != nil {
				s.log.Warn("update profile", "user_id", user.ID, "err", err)
			} else {
				user.Username, user.FirstName, user.LastName = p.Username, p.FirstName, p.LastName
			}
		}
		return user, false, nil
	}

	created, err := s.users.Create(ctx, &models.User{
		TelegramID:   p.TelegramID,
		Username:     p.Username,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		FreeLimit:    s.cfg.FreeGenerations,
		PremiumLimit: s.cfg.PremiumGenerationsPerMonth,
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	s.log.Info("user registered", "user_id", created.ID, "telegram_id", created.TelegramID)
	return created, true, nil
}

// Bots lists the newest artifacts owned by userID.
func (s *UserService) Bots(ctx context.Context, userID int64, limit int) ([]models.BotArtifact, error) {
	bots, err := s.bots.ListByOwner(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user bots: %w", err)
	}
	return bots, nil
}

// Bot returns one artifact, hiding artifacts owned by someone else.
func (s *UserService) Bot(ctx context.Context, userID, botID int64) (*models.BotArtifact, error) {
	bot, err := s.bots.FindByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil || bot.OwnerID != userID {
		return nil, ErrBotNotFound
	}
	return bot, nil
}

func (s *UserService) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.users.ListTelegramIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	return ids, nil
}
