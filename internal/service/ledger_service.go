package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/lock"
	"github.com/digkill/botforge/internal/models"
)

// LedgerService applies entitlement mutations under the per-user lock that
// generation also takes.
type LedgerService struct {
	cfg    config.Config
	log    *slog.Logger
	users  UserStore
	locker lock.Locker
	now    func() time.Time
}

func NewLedgerService(cfg config.Config, log *slog.Logger, users UserStore, locker lock.Locker) *LedgerService {
	return &LedgerService{
		cfg:    cfg,
		log:    log,
		users:  users,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current entitlement state of a user.
func (s *LedgerService) Snapshot(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *LedgerService) CanGenerate(ctx context.Context, userID int64) (bool, error) {
	u, err := s.Snapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	return entitlement.CanGenerate(u), nil
}

func (s *LedgerService) GrantPremium(ctx context.Context, userID int64, days int, resetUsage bool) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if err := entitlement.GrantPremium(u, s.now(), days, resetUsage, s.cfg.PremiumGenerationsPerMonth); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		s.log.Info("premium granted", "user_id", userID, "days", days, "reset_usage", resetUsage)
		return true, nil
	})
}

func (s *LedgerService) RevokePremium(ctx context.Context, userID int64) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		entitlement.RevokePremium(u)
		s.log.Info("premium revoked", "user_id", userID)
		return true, nil
	})
}

func (s *LedgerService) AddQuota(ctx context.Context, userID int64, freeDelta, premiumDelta int) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		if err := entitlement.AddQuota(u, freeDelta, premiumDelta); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return freeDelta != 0 || premiumDelta != 0, nil
	})
}

func (s *LedgerService) ResetUsage(ctx context.Context, userID int64, resetFree, resetPremium bool) (*models.User, error) {
	return s.mutate(ctx, userID, func(u *models.User) (bool, error) {
		entitlement.ResetUsage(u, resetFree, resetPremium)
		return resetFree || resetPremium, nil
	})
}

// ExpirePremium demotes every user whose premium period has ended and returns
// how many were demoted.
func (s *LedgerService) ExpirePremium(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.users.ListExpiredPremium(ctx, now)
	if err != nil {
		return 0, err
	}

	demoted := 0
	for _, candidate := range expired {
		revoked := false
		_, err := s.mutate(ctx, candidate.ID, func(u *models.User) (bool, error) {
			// re-checked under the lock, a grant may have landed meanwhile
			if !entitlement.Expired(u, now) {
				return false, nil
			}
			entitlement.RevokePremium(u)
			revoked = true
			return true, nil
		})
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return demoted, fmt.Errorf("expire premium for user %d: %w", candidate.ID, err)
		}
		if revoked {
			demoted++
		}
	}
	if demoted > 0 {
		s.log.Info("expired premium demoted", "count", demoted)
	}
	return demoted, nil
}

// mutate loads the user under its lock, applies fn and persists the result
// when fn reports a change.
func (s *LedgerService) mutate(ctx context.Context, userID int64, fn func(u *models.User) (bool, error)) (*models.User, error) {
	release, err := s.locker.Acquire(ctx, userLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer release()

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	changed, err := fn(u)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.users.SaveEntitlement(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}
