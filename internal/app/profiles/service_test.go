package profiles_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-triage/internal/app/profiles"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

func TestGetReturnsDefaultWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProfileStore()
	svc := profiles.NewService(store, fixedClock)

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleEmpathetic, p.Preferences.Style)
	assert.Empty(t, p.Effectiveness)

	_, err = store.GetProfile(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))
}

func TestUpdateCreatesAndStamps(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProfileStore()
	svc := profiles.NewService(store, fixedClock)

	p, err := svc.Update(ctx, "u1", func(p *domain.UserProfile) error {
		p.Preferences.Style = domain.StyleDirect
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, t0, p.UpdatedAt)

	stored, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleDirect, stored.Preferences.Style)
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProfileStore()
	svc := profiles.NewService(store, fixedClock)

	boom := errors.New("boom")
	_, err := svc.Update(ctx, "u1", func(p *domain.UserProfile) error {
		p.Progress.TotalTurns = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetProfile(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	ctx := context.Background()
	svc := profiles.NewService(memory.NewProfileStore(), fixedClock)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, "u1", func(p *domain.UserProfile) error {
				p.Progress.TotalTurns++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, p.Progress.TotalTurns)
}
