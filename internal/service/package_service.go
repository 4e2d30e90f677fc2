package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/botforge/internal/metrics"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/packager"
)

// PackageResult describes a bundle that landed on disk.
type PackageResult struct {
	Bot       *models.BotArtifact
	Files     packager.FileSet
	Archive   []byte
	Output    packager.Output
	PublicURL string
}

type DeploymentStatus struct {
	BotID     int64            `json:"bot_id"`
	Name      string           `json:"name"`
	Status    models.BotStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"last_updated"`
}

type PackageService struct {
	log      *slog.Logger
	bots     BotStore
	writer   *packager.Writer
	uploader Uploader
}

// NewPackageService builds the packaging pipeline; uploader may be nil.
func NewPackageService(log *slog.Logger, bots BotStore, writer *packager.Writer, uploader Uploader) *PackageService {
	return &PackageService{
		log:      log,
		bots:     bots,
		writer:   writer,
		uploader: uploader,
	}
}

// Package writes the full bundle for botID. Either every file lands and the
// bot becomes ready for deployment, or the bot is flagged as error.
func (s *PackageService) Package(ctx context.Context, botID int64) (*PackageResult, error) {
	bot, err := s.bots.FindByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}

	res, err := s.build(ctx, bot)
	if err == nil && (bot.Status == models.BotStatusCreated || bot.Status == models.BotStatusError) {
		if err = s.bots.UpdateStatus(ctx, botID, models.BotStatusReadyForDeployment); err != nil {
			err = fmt.Errorf("mark ready for deployment: %w", err)
		} else {
			bot.Status = models.BotStatusReadyForDeployment
		}
	}
	if err != nil {
		metrics.RecordPackaging(false)
		s.log.Error("packaging failed", "bot_id", botID, "err", err)
		if statusErr := s.bots.UpdateStatus(context.WithoutCancel(ctx), botID, models.BotStatusError); statusErr != nil {
			s.log.Error("flag bot as error", "bot_id", botID, "err", statusErr)
		}
		bot.Status = models.BotStatusError
		return nil, &PackagingError{BotID: botID, Err: err}
	}

	metrics.RecordPackaging(true)
	s.log.Info("bot packaged", "bot_id", botID, "dir", res.Output.Dir)
	return res, nil
}

func (s *PackageService) build(ctx context.Context, bot *models.BotArtifact) (*PackageResult, error) {
	files, err := packager.Build(bot)
	if err != nil {
		return nil, err
	}
	archive, err := packager.Archive(files, bot.CreatedAt)
	if err != nil {
		return nil, err
	}
	out, err := s.writer.Write(bot.ID, files, archive)
	if err != nil {
		return nil, err
	}

	res := &PackageResult{Bot: bot, Files: files, Archive: archive, Output: out}
	if s.uploader != nil {
		key := fmt.Sprintf("bot_%d/%s.zip", bot.ID, bot.Name)
		url, err := s.uploader.Upload(ctx, key, archive, "application/zip")
		if err != nil {
			return nil, err
		}
		res.PublicURL = url
	}
	return res, nil
}

func (s *PackageService) DeploymentStatus(ctx context.Context, botID int64) (*DeploymentStatus, error) {
	bot, err := s.bots.FindByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		return nil, ErrBotNotFound
	}
	return &DeploymentStatus{
		BotID:     bot.ID,
		Name:      bot.Name,
		Status:    bot.Status,
		CreatedAt: bot.CreatedAt,
		UpdatedAt: bot.UpdatedAt,
	}, nil
}
