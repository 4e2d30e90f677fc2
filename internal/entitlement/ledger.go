// Package entitlement holds the quota and premium-expiry state machine.
//
// Functions here mutate a models.User in memory only. Persistence and per-user
// serialization belong to the caller (see service.LedgerService).
package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/digkill/botforge/internal/models"
)

// ErrNegativeDelta is returned for administrative input that would lower a limit.
var ErrNegativeDelta = errors.New("quota delta must be non-negative")

// ErrInvalidDuration is returned for a premium grant outside 1..MaxPremiumDays.
var ErrInvalidDuration = errors.New("premium duration out of range")

// MaxPremiumDays caps a single premium grant at ten years.
const MaxPremiumDays = 3650

// Pool identifies which counter a generation is charged to.
type Pool string

const (
	PoolFree    Pool = "free"
	PoolPremium Pool = "premium"
)

// ActivePool reports the pool a generation by u would consume.
func ActivePool(u *models.User) Pool {
	if u.IsPremium {
		return PoolPremium
	}
	return PoolFree
}

// CanGenerate is true when the active pool has at least one unit left.
// Premium expiry is not consulted; see Expired.
func CanGenerate(u *models.User) bool {
	if u.IsPremium {
		return u.PremiumUsed < u.PremiumLimit
	}
	return u.FreeUsed < u.FreeLimit
}

// Remaining returns the units left in the active pool, never below zero.
func Remaining(u *models.User) int {
	left := u.FreeLimit - u.FreeUsed
	if u.IsPremium {
		left = u.PremiumLimit - u.PremiumUsed
	}
	if left < 0 {
		return 0
	}
	return left
}

// RecordConsumption charges one generation to the active pool.
func RecordConsumption(u *models.User) Pool {
	pool := ActivePool(u)
	if pool == PoolPremium {
		u.PremiumUsed++
	} else {
		u.FreeUsed++
	}
	return pool
}

// Expired reports whether u holds premium status past its expiry time.
// A premium user without an expiry never expires.
func Expired(u *models.User, now time.Time) bool {
	return u.IsPremium && u.PremiumExpiresAt != nil && !now.Before(*u.PremiumExpiresAt)
}

// GrantPremium opens a premium period of days starting at now. With
// resetUsage the premium pool restarts at the standard monthly allotment.
func GrantPremium(u *models.User, now time.Time, days int, resetUsage bool, monthlyAllotment int) error {
	if days <= 0 || days > MaxPremiumDays {
		return fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}
	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	u.IsPremium = true
	u.PremiumExpiresAt = &expires
	if resetUsage {
		u.PremiumUsed = 0
		u.PremiumLimit = monthlyAllotment
	}
	return nil
}

// RevokePremium returns u to the free tier. Counters are left untouched.
func RevokePremium(u *models.User) {
	u.IsPremium = false
	u.PremiumExpiresAt = nil
}

// AddQuota raises the free and premium limits by the given amounts.
func AddQuota(u *models.User, freeDelta, premiumDelta int) error {
	if freeDelta < 0 || premiumDelta < 0 {
		return fmt.Errorf("%w: free=%d premium=%d", ErrNegativeDelta, freeDelta, premiumDelta)
	}
	u.FreeLimit += freeDelta
	u.PremiumLimit += premiumDelta
	return nil
}

// ResetUsage zeroes the selected used-counters.
func ResetUsage(u *models.User, resetFree, resetPremium bool) {
	if resetFree {
		u.FreeUsed = 0
	}
	if resetPremium {
		u.PremiumUsed = 0
	}
}
