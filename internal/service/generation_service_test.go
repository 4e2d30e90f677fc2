package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/botforge/internal/lock"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/packager"
	"github.com/digkill/botforge/internal/prompt"
)

const shopReply = "Телеграм-бот интернет-магазина с каталогом.\n" +
	"Поддерживает корзину и оформление заказа.\n" +
	"```python\n" +
	"import logging\n" +
	"print('shop')\n" +
	"```\n" +
	"```txt\n" +
	"python-telegram-bot==20.7\n" +
	"```\n"

type generationFixture struct {
	store *store
	llm   *fakeLLM
	svc   *GenerationService
}

func newGenerationFixture(t *testing.T, locker lock.Locker) *generationFixture {
	t.Helper()
	st := newStore()
	provider := &fakeLLM{reply: shopReply}
	svc := NewGenerationService(testConfig(), discardLogger(), userStore{st}, generationStore{st}, provider, locker)
	return &generationFixture{store: st, llm: provider, svc: svc}
}

func TestGenerateBlankPrompt(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeLimit: 2})

	_, err := f.svc.Generate(context.Background(), u.ID, "   \n")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Zero(t, f.llm.callCount())
}

func TestGenerateUnknownUser(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	_, err := f.svc.Generate(context.Background(), 404, "бот")
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Zero(t, f.llm.callCount())
	assert.Empty(t, f.store.records())
}

func TestGenerateQuotaSequence(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeLimit: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Generate(ctx, u.ID, "Бот для новостей")
		require.NoError(t, err)
	}
	_, err := f.svc.Generate(ctx, u.ID, "Бот для новостей")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	assert.Equal(t, 2, f.store.user(u.ID).FreeUsed)
	assert.Equal(t, 2, f.llm.callCount())
	assert.Len(t, f.store.records(), 2)
}

func TestGeneratePremiumPool(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	expires := time.Now().Add(24 * time.Hour)
	u := f.store.addUser(models.User{IsPremium: true, FreeUsed: 2, FreeLimit: 2, PremiumUsed: 4, PremiumLimit: 50, PremiumExpiresAt: &expires})

	bundle, err := f.svc.Generate(context.Background(), u.ID, "бот")
	require.NoError(t, err)
	assert.Equal(t, 45, bundle.Remaining)

	got := f.store.user(u.ID)
	assert.Equal(t, 5, got.PremiumUsed)
	assert.Equal(t, 2, got.FreeUsed)
}

func TestGenerateDemotesExpiredPremium(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	expired := time.Now().Add(-time.Hour)
	u := f.store.addUser(models.User{IsPremium: true, FreeUsed: 2, FreeLimit: 2, PremiumUsed: 1, PremiumLimit: 50, PremiumExpiresAt: &expired})

	_, err := f.svc.Generate(context.Background(), u.ID, "бот")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Zero(t, f.llm.callCount())

	got := f.store.user(u.ID)
	assert.False(t, got.IsPremium)
	assert.Nil(t, got.PremiumExpiresAt)
	assert.Equal(t, 1, got.PremiumUsed)
}

func TestGenerateProviderFailure(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	f.llm.err = errors.New("upstream 502")
	u := f.store.addUser(models.User{FreeLimit: 2})

	_, err := f.svc.Generate(context.Background(), u.ID, "бот")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), "upstream 502")

	assert.Zero(t, f.store.user(u.ID).FreeUsed)
	records := f.store.records()
	require.Len(t, records, 1)
	assert.Equal(t, models.GenerationFailed, records[0].Status)
	assert.NotNil(t, records[0].CompletedAt)
	assert.Nil(t, records[0].BotID)
}

func TestGenerateConcurrentLastUnit(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeUsed: 1, FreeLimit: 2})
	f.llm.hook = func(context.Context) { time.Sleep(20 * time.Millisecond) }

	results := runConcurrently(f.svc, u.ID, 2)

	assert.Equal(t, 1, results.ok)
	assert.Equal(t, 1, results.quota)
	assert.Equal(t, 2, f.store.user(u.ID).FreeUsed)
	assert.Equal(t, 1, f.llm.callCount())
}

func TestGenerateConcurrentWithoutLockStillSingleSuccess(t *testing.T) {
	// both requests pass the check, the conditional increment decides
	f := newGenerationFixture(t, noLock{})
	u := f.store.addUser(models.User{FreeUsed: 1, FreeLimit: 2})
	var wg sync.WaitGroup
	wg.Add(2)
	f.llm.hook = func(context.Context) {
		wg.Done()
		wg.Wait()
	}

	results := runConcurrently(f.svc, u.ID, 2)

	assert.Equal(t, 1, results.ok)
	assert.Equal(t, 1, results.quota)
	assert.Equal(t, 2, f.store.user(u.ID).FreeUsed)

	var failed int
	for _, r := range f.store.records() {
		assert.NotEqual(t, models.GenerationPending, r.Status)
		if r.Status == models.GenerationFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

type outcome struct {
	ok, quota, other int
}

func runConcurrently(svc *GenerationService, userID int64, n int) outcome {
	var (
		mu  sync.Mutex
		res outcome
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), userID, "бот поддержки")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.ok++
			case errors.Is(err, ErrQuotaExceeded):
				res.quota++
			default:
				res.other++
			}
		}()
	}
	wg.Wait()
	return res
}

func TestGenerateFinalizesAfterCallerCancels(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeLimit: 2})

	ctx, cancel := context.WithCancel(context.Background())
	f.llm.hook = func(context.Context) { cancel() }

	_, err := f.svc.Generate(ctx, u.ID, "бот")
	require.NoError(t, err)

	records := f.store.records()
	require.Len(t, records, 1)
	assert.Equal(t, models.GenerationCompleted, records[0].Status)
	assert.Equal(t, 1, f.store.user(u.ID).FreeUsed)
}

func TestSweepPending(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeLimit: 2})
	ctx := context.Background()

	old, err := generationStore{f.store}.CreatePending(ctx, u.ID, "old", time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = generationStore{f.store}.CreatePending(ctx, u.ID, "fresh", time.Now().UTC())
	require.NoError(t, err)

	n, err := f.svc.SweepPending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	for _, r := range f.store.records() {
		if r.ID == old.ID {
			assert.Equal(t, models.GenerationFailed, r.Status)
		} else {
			assert.Equal(t, models.GenerationPending, r.Status)
		}
	}
}

func TestArtifactName(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 5, 7, 0, time.UTC)
	name := artifactName(at)
	assert.Regexp(t, regexp.MustCompile(`^Bot_20261014_090507_[0-9a-f]{6}$`), name)
	assert.NotEqual(t, name, artifactName(at))
}

func TestGenerateAndPackageEndToEnd(t *testing.T) {
	f := newGenerationFixture(t, lock.NewLocal())
	u := f.store.addUser(models.User{FreeUsed: 0, FreeLimit: 2})
	const text = "Бот для интернет-магазина с каталогом товаров"

	require.Equal(t, prompt.CategoryEcommerce, prompt.Classify(text))

	bundle, err := f.svc.Generate(context.Background(), u.ID, text)
	require.NoError(t, err)
	assert.Equal(t, prompt.CategoryEcommerce, bundle.Category)
	assert.Contains(t, f.llm.last.System, "Каталог товаров")
	assert.Equal(t, text, f.llm.last.User)
	assert.InDelta(t, 0.7, f.llm.last.Temperature, 0.0001)
	assert.Equal(t, 4000, f.llm.last.MaxTokens)

	assert.Equal(t, 1, f.store.user(u.ID).FreeUsed)
	assert.Equal(t, "Телеграм-бот интернет-магазина с каталогом. Поддерживает корзину и оформление заказа.", bundle.Description)
	assert.Equal(t, []string{"python-telegram-bot==20.7"}, bundle.Dependencies)

	stored := f.store.bot(bundle.Artifact.ID)
	assert.Equal(t, models.BotStatusCreated, stored.Status)
	assert.Equal(t, "import logging\nprint('shop')", stored.Code)

	root := t.TempDir()
	pkg := NewPackageService(discardLogger(), botStore{store: f.store}, packager.NewWriter(root), nil)
	res, err := pkg.Package(context.Background(), bundle.Artifact.ID)
	require.NoError(t, err)

	entry, ok := res.Files.Get("main.py")
	require.True(t, ok)
	assert.NotEmpty(t, entry.Content)
	readme, err := os.ReadFile(filepath.Join(res.Output.Dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), bundle.Artifact.Name)
	assert.Equal(t, models.BotStatusReadyForDeployment, f.store.bot(bundle.Artifact.ID).Status)
}
