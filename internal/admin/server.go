package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/botforge/internal/metrics"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/service"
)

// Admin is the administrative service the routes delegate to.
type Admin interface {
	Stats(ctx context.Context) (models.Stats, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, error)
	User(ctx context.Context, userID int64) (*models.User, error)
	SearchUser(ctx context.Context, username string) (*models.User, error)
	UserBots(ctx context.Context, userID int64, limit int) ([]models.BotArtifact, error)
	ListBots(ctx context.Context, limit, offset int) ([]models.BotArtifact, error)
	ListGenerations(ctx context.Context, limit, offset int) ([]models.GenerationRecord, error)
	ToggleBotStatus(ctx context.Context, botID int64) (*models.BotArtifact, error)
	AddAdmin(ctx context.Context, telegramID int64) (bool, error)
	RemoveAdmin(ctx context.Context, telegramID int64) (bool, error)
	ListAdmins(ctx context.Context) ([]int64, error)
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// Ledger reads and mutates user entitlements.
type Ledger interface {
	CanGenerate(ctx context.Context, userID int64) (bool, error)
	AddQuota(ctx context.Context, userID int64, freeDelta, premiumDelta int) (*models.User, error)
	GrantPremium(ctx context.Context, userID int64, days int, resetUsage bool) (*models.User, error)
	RevokePremium(ctx context.Context, userID int64) (*models.User, error)
	ResetUsage(ctx context.Context, userID int64, resetFree, resetPremium bool) (*models.User, error)
}

type Packager interface {
	Package(ctx context.Context, botID int64) (*service.PackageResult, error)
	DeploymentStatus(ctx context.Context, botID int64) (*service.DeploymentStatus, error)
}

// Recipients lists everyone a broadcast goes to.
type Recipients interface {
	ListTelegramIDs(ctx context.Context) ([]int64, error)
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Options struct {
	Addr        string
	Username    string
	Password    string
	PremiumDays int
}

type Server struct {
	opts       Options
	log        *slog.Logger
	admin      Admin
	ledger     Ledger
	packages   Packager
	recipients Recipients
	bot        Sender
	validate   *validator.Validate
	router     *chi.Mux
}

func NewServer(opts Options, log *slog.Logger, admin Admin, ledger Ledger, packages Packager, recipients Recipients, bot Sender) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		opts:       opts,
		log:        log,
		admin:      admin,
		ledger:     ledger,
		packages:   packages,
		recipients: recipients,
		bot:        bot,
		validate:   newValidator(),
		router:     r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/stats", s.handleStats)
		protected.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/search", s.handleSearchUser)
			r.Get("/{id}", s.handleGetUser)
			r.Get("/{id}/bots", s.handleUserBots)
			r.Get("/{id}/can-generate", s.handleCanGenerate)
			r.Post("/{id}/quota", s.handleAddQuota)
			r.Post("/{id}/premium", s.handleSetPremium)
			r.Delete("/{id}/premium", s.handleRevokePremium)
			r.Post("/{id}/reset-usage", s.handleResetUsage)
		})
		protected.Route("/bots", func(r chi.Router) {
			r.Get("/", s.handleListBots)
			r.Get("/{id}/status", s.handleDeploymentStatus)
			r.Post("/{id}/toggle-status", s.handleToggleBot)
			r.Post("/{id}/package", s.handlePackageBot)
		})
		protected.Get("/generations", s.handleListGenerations)
		protected.Route("/admins", func(r chi.Router) {
			r.Get("/", s.handleListAdmins)
			r.Post("/", s.handleAddAdmin)
			r.Get("/{telegram_id}", s.handleIsAdmin)
			r.Delete("/{telegram_id}", s.handleRemoveAdmin)
		})
		protected.Post("/maintenance/sweep", s.handleSweep)
		protected.Post("/broadcast", s.handleBroadcast)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.opts.Username || pass != s.opts.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="botforge"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrBotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrQuotaExceeded):
		status = http.StatusPaymentRequired
	default:
		s.log.Error("admin handler error", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

type errorBody struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

// pageParams reads limit and offset; absent values are left to the service.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	return limit, offset, nil
}
