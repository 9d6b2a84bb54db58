package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/PabloGalante/farum-triage/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := sqlite.NewStoreFromDB(db)
	require.NoError(t, err)
	return store
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetProfile(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))

	p := domain.NewUserProfile("u1", t0)
	p.Preferences.Style = domain.StyleDirect
	p.Clinical.TraumaHistory = true
	p.Effectiveness["thought_record"] = domain.EffectivenessRecord{
		Key: "thought_record", Uses: 2, Successes: 1, TotalRating: 7,
	}
	require.NoError(t, store.PutProfile(ctx, p))

	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleDirect, got.Preferences.Style)
	assert.True(t, got.Clinical.TraumaHistory)
	assert.InDelta(t, 3.5, got.Record("thought_record").AverageRating(), 1e-9)

	// Upsert replaces the body.
	p.Preferences.Style = domain.StyleSocratic
	require.NoError(t, store.PutProfile(ctx, p))
	got, err = store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StyleSocratic, got.Preferences.Style)

	require.NoError(t, store.DeleteProfile(ctx, "u1"))
	assert.True(t, errors.Is(store.DeleteProfile(ctx, "u1"), domain.ErrProfileNotFound))
}

func TestGlobalEffectivenessAccumulates(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.AddGlobalOutcome(ctx, "deep_breathing",
				domain.Outcome{Success: i%2 == 0, Rating: 4, At: t0.Add(time.Duration(i) * time.Minute)}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, store.AddGlobalOutcome(ctx, "grounding", domain.Outcome{Success: true, Rating: 5, At: t0}))

	all, err := store.GlobalEffectiveness(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	rec := all["deep_breathing"]
	assert.Equal(t, 8, rec.Uses)
	assert.Equal(t, 4, rec.Successes)
	assert.InDelta(t, 4.0, rec.AverageRating(), 1e-9)
	assert.Len(t, rec.Recent, domain.RecentOutcomeLimit)

	assert.Equal(t, 1, all["grounding"].Uses)
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, store.AppendMessage(ctx, &domain.Message{
			ID:        domain.MessageID(text),
			SessionID: "s1",
			UserID:    "u1",
			Author:    domain.RoleUser,
			Text:      text,
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.AppendMessage(ctx, &domain.Message{
		ID: "other", SessionID: "s2", Author: domain.RoleUser, Text: "x", CreatedAt: t0,
	}))

	last, err := store.GetMessagesBySession(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Text)
	assert.Equal(t, "three", last[1].Text)
	assert.True(t, last[1].CreatedAt.Equal(t0.Add(2*time.Second)))

	all, err := store.GetMessagesBySession(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, store.DeleteSessionMessages(ctx, "s1"))
	all, err = store.GetMessagesBySession(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	other, err := store.GetMessagesBySession(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestNewStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farum.db")

	store, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.PutProfile(context.Background(), domain.NewUserProfile("u1", t0)))
	require.NoError(t, store.Close())

	reopened, err := sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), got.ID)
	assert.NoError(t, reopened.Ping(context.Background()))
}
