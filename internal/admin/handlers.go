package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	users, err := s.admin.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleSearchUser(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.admin.SearchUser(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := s.admin.User(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUserBots(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	limit, _, err := pageParams(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	bots, err := s.admin.UserBots(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bots)
}

func (s *Server) handleAddQuota(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req quotaRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.ledger.AddQuota(r.Context(), id, req.Free, req.Premium)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCanGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	can, err := s.ledger.CanGenerate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "can_generate": can})
}

func (s *Server) handleSetPremium(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req premiumRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IsPremium != nil && !*req.IsPremium {
		s.revokePremium(w, r, id)
		return
	}
	days := req.Days
	if days == 0 {
		days = s.opts.PremiumDays
	}
	user, err := s.ledger.GrantPremium(r.Context(), id, days, req.ResetUsage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRevokePremium(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	s.revokePremium(w, r, id)
}

func (s *Server) revokePremium(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := s.ledger.RevokePremium(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req resetUsageRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.ledger.ResetUsage(r.Context(), id, req.Free, req.Premium)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	bots, err := s.admin.ListBots(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bots)
}

func (s *Server) handleToggleBot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	bot, err := s.admin.ToggleBotStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bot)
}

func (s *Server) handleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	status, err := s.packages.DeploymentStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

type packageResponse struct {
	BotID       int64  `json:"bot_id"`
	Status      string `json:"status"`
	Dir         string `json:"dir"`
	ArchivePath string `json:"archive_path"`
	PublicURL   string `json:"public_url,omitempty"`
	Files       int    `json:"files"`
}

func (s *Server) handlePackageBot(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := s.packages.Package(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, packageResponse{
		BotID:       res.Bot.ID,
		Status:      string(res.Bot.Status),
		Dir:         res.Output.Dir,
		ArchivePath: res.Output.ArchivePath,
		PublicURL:   res.PublicURL,
		Files:       len(res.Files),
	})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	records, err := s.admin.ListGenerations(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	ids, err := s.admin.ListAdmins(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"admins": ids})
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !s.decode(w, r, &req) {
		return
	}
	added, err := s.admin.AddAdmin(r.Context(), req.TelegramID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]any{"telegram_id": req.TelegramID, "added": added})
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "telegram_id")
	if !ok {
		return
	}
	isAdmin, err := s.admin.IsAdmin(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"telegram_id": id, "is_admin": isAdmin})
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "telegram_id")
	if !ok {
		return
	}
	removed, err := s.admin.RemoveAdmin(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "admin not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.admin.Sweep(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		s.badRequest(w, "message required")
		return
	}

	ids, err := s.recipients.ListTelegramIDs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	count := 0
	for _, id := range ids {
		if _, err := s.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
			s.log.Error("send broadcast", "telegram_id", id, "err", err)
			continue
		}
		count++
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  count,
		"total": len(ids),
	})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseID(chi.URLParam(r, name))
	if err != nil {
		s.badRequest(w, err.Error())
		return 0, false
	}
	return id, true
}
