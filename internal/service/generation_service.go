package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/llm"
	"github.com/digkill/botforge/internal/lock"
	"github.com/digkill/botforge/internal/metrics"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/parser"
	"github.com/digkill/botforge/internal/prompt"
	"github.com/digkill/botforge/internal/repository"
)

const defaultFinalizeTimeout = 10 * time.Second

// Bundle is the result of one successful generation.
type Bundle struct {
	Artifact     *models.BotArtifact
	GenerationID int64
	Description  string
	Dependencies []string
	Category     prompt.Category
	Files        map[string]string
	Remaining    int
}

type GenerationService struct {
	cfg         config.Config
	log         *slog.Logger
	users       UserStore
	generations GenerationStore
	llm         llm.Client
	locker      lock.Locker

	now             func() time.Time
	finalizeTimeout time.Duration
}

func NewGenerationService(cfg config.Config, log *slog.Logger, users UserStore, generations GenerationStore, client llm.Client, locker lock.Locker) *GenerationService {
	return &GenerationService{
		cfg:             cfg,
		log:             log,
		users:           users,
		generations:     generations,
		llm:             client,
		locker:          locker,
		now:             func() time.Time { return time.Now().UTC() },
		finalizeTimeout: defaultFinalizeTimeout,
	}
}

// Generate runs one request end to end. The per-user lock is held from the
// quota check until consumption is recorded.
func (s *GenerationService) Generate(ctx context.Context, userID int64, text string) (*Bundle, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalidArgument("prompt cannot be empty")
	}

	release, err := s.locker.Acquire(ctx, userLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer release()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if entitlement.Expired(user, s.now()) {
		entitlement.RevokePremium(user)
		if err := s.users.SaveEntitlement(ctx, user); err != nil {
			return nil, fmt.Errorf("demote expired premium: %w", err)
		}
		s.log.Info("premium expired", "user_id", userID)
	}

	if !entitlement.CanGenerate(user) {
		metrics.RecordGeneration(metrics.ResultQuotaExceeded)
		s.log.Info("generation rejected, quota exhausted", "user_id", userID, "premium", user.IsPremium)
		return nil, ErrQuotaExceeded
	}

	record, err := s.generations.CreatePending(ctx, userID, text, s.now())
	if err != nil {
		return nil, err
	}

	started := time.Now()
	category := prompt.Classify(text)
	raw, callErr := s.llm.Complete(ctx, llm.Request{
		System:      prompt.Compose(category),
		User:        text,
		Temperature: s.cfg.OpenAITemperature,
		MaxTokens:   s.cfg.OpenAIMaxTokens,
	})

	// the caller may be gone by now, the record still gets finalized
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.finalizeTimeout)
	defer cancel()

	if callErr != nil {
		s.fail(fctx, record.ID)
		metrics.RecordGeneration(metrics.ResultProviderError)
		s.log.Error("provider call failed", "user_id", userID, "generation_id", record.ID, "err", callErr)
		return nil, &ProviderError{Err: callErr}
	}

	parsed := parser.Parse(raw)
	pool := entitlement.ActivePool(user)
	artifact, err := s.generations.Complete(fctx, repository.Completion{
		GenerationID: record.ID,
		UserID:       userID,
		Pool:         pool,
		Name:         artifactName(s.now()),
		Description:  parsed.Description,
		Code:         parsed.Source,
		At:           s.now(),
	})
	if err != nil {
		s.fail(fctx, record.ID)
		metrics.RecordGeneration(metrics.ResultFailed)
		if errors.Is(err, repository.ErrQuotaConflict) {
			s.log.Warn("quota consumed concurrently", "user_id", userID, "generation_id", record.ID)
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("finalize generation %d: %w", record.ID, err)
	}
	entitlement.RecordConsumption(user)

	metrics.RecordGeneration(metrics.ResultCompleted)
	s.log.Info("generation completed",
		"user_id", userID,
		"generation_id", record.ID,
		"bot_id", artifact.ID,
		"category", category.String(),
		"pool", string(pool),
		"duration", time.Since(started),
	)

	return &Bundle{
		Artifact:     artifact,
		GenerationID: record.ID,
		Description:  parsed.Description,
		Dependencies: parsed.Dependencies,
		Category:     category,
		Files:        parsed.Files,
		Remaining:    entitlement.Remaining(user),
	}, nil
}

func (s *GenerationService) fail(ctx context.Context, id int64) {
	if err := s.generations.MarkFailed(ctx, id, s.now()); err != nil {
		s.log.Error("mark generation failed", "generation_id", id, "err", err)
	}
}

// SweepPending fails records left pending for longer than olderThan.
func (s *GenerationService) SweepPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	n, err := s.generations.FailPendingBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn("stale pending generations failed", "count", n)
	}
	return n, nil
}

// artifactName is Bot_<YYYYMMDD_HHMMSS>_<6 hex>.
func artifactName(at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return "Bot_" + at.Format("20060102_150405") + "_" + suffix
}
