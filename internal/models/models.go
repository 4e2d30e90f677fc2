package models

import "time"

type BotStatus string

const (
	BotStatusCreated            BotStatus = "created"
	BotStatusReadyForDeployment BotStatus = "ready_for_deployment"
	BotStatusError              BotStatus = "error"
	BotStatusActive             BotStatus = "active"
	BotStatusInactive           BotStatus = "inactive"
)

type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// User is a platform account together with its entitlement state.
type User struct {
	ID               int64      `json:"id"`
	TelegramID       int64      `json:"telegram_id"`
	Username         string     `json:"username"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	IsPremium        bool       `json:"is_premium"`
	FreeUsed         int        `json:"free_used"`
	FreeLimit        int        `json:"free_limit"`
	PremiumUsed      int        `json:"premium_used"`
	PremiumLimit     int        `json:"premium_limit"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BotArtifact is the persisted output of one successful generation.
type BotArtifact struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code,omitempty"`
	Status      BotStatus `json:"status"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GenerationRecord tracks one generation attempt from request to outcome.
type GenerationRecord struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	BotID         *int64           `json:"bot_id"`
	Prompt        string           `json:"prompt"`
	GeneratedCode *string          `json:"generated_code,omitempty"`
	Status        GenerationStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at"`
}

// Stats is the aggregate snapshot served to the reporting surface.
type Stats struct {
	TotalUsers           int     `json:"total_users"`
	PremiumUsers         int     `json:"premium_users"`
	TotalBots            int     `json:"total_bots"`
	ActiveBots           int     `json:"active_bots"`
	RecentUsers          int     `json:"recent_users"`
	RecentBots           int     `json:"recent_bots"`
	RecentGenerations    int     `json:"recent_generations"`
	TotalGenerations     int     `json:"total_generations"`
	PendingGenerations   int     `json:"pending_generations"`
	CompletedGenerations int     `json:"completed_generations"`
	FailedGenerations    int     `json:"failed_generations"`
	MonthlyRevenue       int     `json:"monthly_revenue"`
	TotalRevenue         int     `json:"total_revenue"`
	ConversionRate       float64 `json:"conversion_rate"`
}
