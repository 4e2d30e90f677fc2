package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/digkill/botforge/internal/admin"
	"github.com/digkill/botforge/internal/maintenance"
	"github.com/digkill/botforge/internal/telegram"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "botforge",
		Short:         "Telegram bot that generates deployable Telegram bots from a description",
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the chat front-end, the admin panel and the maintenance scheduler",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema and exit",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Expire premium subscriptions and fail stale generations once",
			RunE:  runSweep,
		},
	)
	return root
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.admin.SeedAdmins(ctx, a.cfg.AdminUserIDs); err != nil {
		return err
	}

	botAPI, err := tgbotapi.NewBotAPI(a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}

	scheduler, err := maintenance.New(a.cfg.MaintenanceSchedule, a.admin, a.log)
	if err != nil {
		return err
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			a.log.Error("maintenance scheduler stopped", "err", err)
		}
	}()

	adminServer := admin.NewServer(admin.Options{
		Addr:        a.cfg.AdminListenAddr,
		Username:    a.cfg.AdminUsername,
		Password:    a.cfg.AdminPassword,
		PremiumDays: a.cfg.PremiumDefaultDays,
	}, a.log, a.admin, a.ledger, a.packages, a.users, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("admin server stopped", "err", err)
		}
	}()

	bot := telegram.NewBot(a.cfg, botAPI, a.log, a.users, a.generation, a.packages)
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error("bot stopped", "err", err)
		return err
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()
	a.log.Info("schema is up to date")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := maintenance.New(a.cfg.MaintenanceSchedule, a.admin, a.log)
	if err != nil {
		return err
	}
	report, err := scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "premium expired: %d, pending failed: %d\n", report.PremiumExpired, report.PendingFailed)
	return nil
}
