package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AI2HU/brandlens/internal/db/memory"
	"github.com/AI2HU/brandlens/internal/models"
	"github.com/AI2HU/brandlens/internal/processing"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls []string
	fails int
}

func (f *fakeProcessor) Process(_ context.Context, brandID string, _ processing.Options) (*processing.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, brandID)
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("store unavailable")
	}
	return &processing.Outcome{Session: &models.ProcessingSession{ID: "s1", Status: models.SessionCompleted}}, nil
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, b := range []*models.Brand{
		{ID: "daily", UserID: "u1", Name: "Acme", Schedule: "0 6 * * *"},
		{ID: "hourly", UserID: "u2", Name: "Globex", Schedule: "@every 1h"},
		{ID: "manual", UserID: "u1", Name: "Initech"},
		{ID: "broken", UserID: "u1", Name: "Umbrella", Schedule: "not a cron"},
	} {
		require.NoError(t, store.CreateBrand(ctx, b))
	}
	return store
}

func TestStartRegistersScheduledBrands(t *testing.T) {
	s := New(seed(t), &fakeProcessor{})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	ids := s.Scheduled()
	sort.Strings(ids)
	assert.Equal(t, []string{"daily", "hourly"}, ids)

	next, ok := s.NextRun("daily")
	require.True(t, ok)
	assert.Equal(t, 6, next.Hour())

	_, ok = s.NextRun("manual")
	assert.False(t, ok)

	assert.Error(t, s.Start(context.Background()))
}

func TestExecuteNowRetries(t *testing.T) {
	tests := []struct {
		name    string
		fails   int
		wantErr bool
		calls   int
	}{
		{"first attempt", 0, false, 1},
		{"recovers", 2, false, 3},
		{"gives up", 5, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{fails: tt.fails}
			s := New(seed(t), proc)
			s.SetRetry(3, 0)

			err := s.ExecuteNow(context.Background(), "daily")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, proc.calls, tt.calls)
		})
	}
}

func TestReloadPicksUpNewBrands(t *testing.T) {
	store := seed(t)
	s := New(store, &fakeProcessor{})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.NoError(t, store.CreateBrand(ctx, &models.Brand{ID: "weekly", UserID: "u3", Schedule: "0 0 * * 1"}))
	require.NoError(t, s.Reload(ctx))

	assert.Len(t, s.Scheduled(), 3)
}
