package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/botforge/internal/service"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) (service.SweepReport, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return service.SweepReport{}, errors.New("sweep without deadline")
	}
	return service.SweepReport{PremiumExpired: 1}, c.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every ten minutes", &countingSweeper{}, discard())
	assert.Error(t, err)

	_, err = New("*/5 * * * *", &countingSweeper{}, discard())
	assert.NoError(t, err)
}

func TestRunOnce(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("@every 10m", sw, discard())
	require.NoError(t, err)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.PremiumExpired)
	assert.Equal(t, int32(1), sw.calls.Load())

	sw.err = errors.New("db down")
	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestRunFiresAndStops(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("@every 1s", sw, discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
