package emulator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusconnect/campusconnect/internal/client"
	"github.com/campusconnect/campusconnect/internal/handlers"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/reconcile"
	"github.com/campusconnect/campusconnect/internal/storage"
)

func newTestEmulator(t *testing.T) (*Emulator, *storage.MemoryStorage, *reconcile.Reconciler) {
	t.Helper()
	zerolog.SetGlobalLevel(zerolog.Disabled)

	store := storage.NewMemoryStorage()
	srv := httptest.NewServer(handlers.NewRouter(handlers.NewHandler(store, nil, nil)))
	t.Cleanup(srv.Close)

	rec := reconcile.New(client.New(srv.URL+"/api"), reconcile.WithLogger(zerolog.Nop()))
	return New(rec, []string{"a@x.com", "b@x.com"}, 42), store, rec
}

func TestEmitReport(t *testing.T) {
	e, store, rec := newTestEmulator(t)

	stats, err := e.EmitReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reported)

	items, err := store.ListItems(context.Background(), models.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, []string{"a@x.com", "b@x.com"}, items[0].OwnerEmail)
	assert.Equal(t, items[0].ID, rec.Items()[0].ID)
}

func TestEmitClaim_ReportsWhenNothingIsActive(t *testing.T) {
	e, _, _ := newTestEmulator(t)

	stats, err := e.EmitClaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Reported)

	stats, err = e.EmitClaim(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Claimed)
}

func TestBurst_KeepsCacheInStepWithServer(t *testing.T) {
	e, store, rec := newTestEmulator(t)

	stats, err := e.Burst(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 20, stats.Reported+stats.Claimed+stats.Deleted)

	remote, err := store.ListItems(context.Background(), models.ItemFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, itemIDs(remote), itemIDs(rec.Items()))
}

func itemIDs(items []models.FoundItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFlow(t *testing.T) {
	e, store, rec := newTestEmulator(t)

	require.NoError(t, e.Flow(context.Background()))
	assert.Empty(t, rec.Items())

	items, err := store.ListItems(context.Background(), models.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRunContinuous_StopsWithContext(t *testing.T) {
	e, _, _ := newTestEmulator(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stats := e.RunContinuous(ctx, time.Millisecond, 5*time.Millisecond)
	assert.Positive(t, stats.Reported)
}

func TestStress_RejectsZeroRate(t *testing.T) {
	e, _, _ := newTestEmulator(t)
	_, err := e.Stress(context.Background(), time.Second, 0)
	assert.Error(t, err)
}
