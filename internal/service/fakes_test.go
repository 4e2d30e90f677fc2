package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/llm"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		FreeGenerations:            2,
		PremiumGenerationsPerMonth: 50,
		PremiumPrice:               299,
		PremiumDefaultDays:         30,
		OpenAITemperature:          0.7,
		OpenAIMaxTokens:            4000,
		PendingSweep:               30 * time.Minute,
	}
}

// store is an in-memory stand-in for every repository.
type store struct {
	mu          sync.Mutex
	users       map[int64]*models.User
	bots        map[int64]*models.BotArtifact
	generations map[int64]*models.GenerationRecord
	admins      map[int64]bool
	nextID      int64
	saves       int
	saveErr     error
}

func newStore() *store {
	return &store{
		users:       make(map[int64]*models.User),
		bots:        make(map[int64]*models.BotArtifact),
		generations: make(map[int64]*models.GenerationRecord),
		admins:      make(map[int64]bool),
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) addUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	cp := u
	s.users[u.ID] = &cp
	return &u
}

func (s *store) user(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *store) bot(id int64) models.BotArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bots[id]
}

func (s *store) records() []models.GenerationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GenerationRecord
	for _, g := range s.generations {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type userStore struct{ *store }

func (s userStore) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (s userStore) FindByID(_ context.Context, id int64) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (s userStore) FindByTelegramID(_ context.Context, tg int64) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.TelegramID == tg }), nil
}

func (s userStore) FindByUsername(_ context.Context, name string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == name }), nil
}

func (s userStore) Create(_ context.Context, u *models.User) (*models.User, error) {
	created := s.addUser(*u)
	*u = *created
	return u, nil
}

func (s userStore) UpdateProfile(_ context.Context, id int64, username, first, last string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.Username, u.FirstName, u.LastName = username, first, last
	return nil
}

func (s userStore) SaveEntitlement(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	cur := s.users[u.ID]
	cur.IsPremium = u.IsPremium
	cur.FreeUsed, cur.FreeLimit = u.FreeUsed, u.FreeLimit
	cur.PremiumUsed, cur.PremiumLimit = u.PremiumUsed, u.PremiumLimit
	cur.PremiumExpiresAt = u.PremiumExpiresAt
	return nil
}

func (s userStore) List(_ context.Context, limit, offset int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s userStore) ListExpiredPremium(_ context.Context, now time.Time) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if entitlement.Expired(u, now) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s userStore) ListTelegramIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, u := range s.users {
		ids = append(ids, u.TelegramID)
	}
	return ids, nil
}

type botStore struct {
	*store
	// failStatus makes UpdateStatus reject that one target status.
	failStatus models.BotStatus
}

func (s botStore) FindByID(_ context.Context, id int64) (*models.BotArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s botStore) ListByOwner(_ context.Context, owner int64, limit int) ([]models.BotArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BotArtifact
	for _, b := range s.bots {
		if b.OwnerID == owner {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s botStore) List(_ context.Context, limit, offset int) ([]models.BotArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BotArtifact
	for _, b := range s.bots {
		out = append(out, *b)
	}
	return out, nil
}

func (s botStore) UpdateStatus(_ context.Context, id int64, status models.BotStatus) error {
	if s.failStatus != "" && status == s.failStatus {
		return errors.New("status update failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[id].Status = status
	return nil
}

func (s *store) addBot(b models.BotArtifact) *models.BotArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	cp := b
	s.bots[b.ID] = &cp
	return &b
}

type generationStore struct{ *store }

func (s generationStore) CreatePending(_ context.Context, userID int64, prompt string, at time.Time) (*models.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &models.GenerationRecord{ID: s.id(), UserID: userID, Prompt: prompt, Status: models.GenerationPending, CreatedAt: at}
	s.generations[g.ID] = g
	cp := *g
	return &cp, nil
}

// Complete mirrors the SQL transaction: all three writes or none.
func (s generationStore) Complete(_ context.Context, c repository.Completion) (*models.BotArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.generations[c.GenerationID]
	if g == nil || g.Status != models.GenerationPending {
		return nil, repository.ErrNotPending
	}
	u := s.users[c.UserID]
	if c.Pool == entitlement.PoolPremium {
		if u.PremiumUsed >= u.PremiumLimit {
			return nil, repository.ErrQuotaConflict
		}
		u.PremiumUsed++
	} else {
		if u.FreeUsed >= u.FreeLimit {
			return nil, repository.ErrQuotaConflict
		}
		u.FreeUsed++
	}

	b := &models.BotArtifact{
		ID: s.id(), Name: c.Name, Description: c.Description, Code: c.Code,
		Status: models.BotStatusCreated, OwnerID: c.UserID, CreatedAt: c.At, UpdatedAt: c.At,
	}
	s.bots[b.ID] = b
	code := c.Code
	at := c.At
	g.Status = models.GenerationCompleted
	g.BotID = &b.ID
	g.GeneratedCode = &code
	g.CompletedAt = &at
	cp := *b
	return &cp, nil
}

func (s generationStore) MarkFailed(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g := s.generations[id]; g != nil && g.Status == models.GenerationPending {
		g.Status = models.GenerationFailed
		g.CompletedAt = &at
	}
	return nil
}

func (s generationStore) FailPendingBefore(_ context.Context, cutoff, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, g := range s.generations {
		if g.Status == models.GenerationPending && g.CreatedAt.Before(cutoff) {
			g.Status = models.GenerationFailed
			g.CompletedAt = &at
			n++
		}
	}
	return n, nil
}

func (s generationStore) List(_ context.Context, limit, offset int) ([]models.GenerationRecord, error) {
	return s.records(), nil
}

type adminStore struct{ *store }

func (s adminStore) Add(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admins[id] {
		return false, nil
	}
	s.admins[id] = true
	return true, nil
}

func (s adminStore) Remove(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admins[id] {
		return false, nil
	}
	delete(s.admins, id)
	return true, nil
}

func (s adminStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[id], nil
}

func (s adminStore) List(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type statsStore struct{ *store }

func (s statsStore) Counts(_ context.Context, _ time.Time) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.Stats
	st.TotalUsers = len(s.users)
	for _, u := range s.users {
		if u.IsPremium {
			st.PremiumUsers++
		}
	}
	st.TotalBots = len(s.bots)
	st.TotalGenerations = len(s.generations)
	return st, nil
}

// fakeLLM answers with reply or fails with err; hook runs before returning.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	hook  func(ctx context.Context)
	calls int
	last  llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// noLock lets every caller through, leaving serialization to the store.
type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type fakeUploader struct {
	err  error
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}
