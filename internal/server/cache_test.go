package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/cache"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

func newCachedServer(t *testing.T, ttl time.Duration) (*Server, http.Handler) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "slots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	s := New(st,
		dataset.NewLoader(dataset.DefaultLoaderConfig(), cache.NewMemo(cache.New[*dataset.Dataset](4, ttl))),
		processes.NewLoader(processes.DefaultParseOptions(), cache.NewMemo(cache.New[*processes.Table](4, ttl))),
		Options{Quality: metrics.DefaultQualityWeights(), Distribution: metrics.DefaultDistribution()},
	)
	return s, s.Routes()
}

func TestCache_StatsAndClear(t *testing.T) {
	_, h := newCachedServer(t, time.Hour)
	require.Equal(t, http.StatusCreated, upload(t, h, store.SlotPrimary, "cfem.csv", primaryCSV).Code)
	require.Equal(t, http.StatusOK, get(h, "/api/overview").Code)

	var stats cacheStatsResponse
	decode(t, get(h, "/api/cache"), &stats)
	require.NotNil(t, stats.Dataset)
	require.NotNil(t, stats.Processes)
	assert.Equal(t, 1, stats.Dataset.Entries)
	assert.Equal(t, int64(1), stats.Dataset.Hits)
	assert.Equal(t, 0, stats.Processes.Entries)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
	assert.JSONEq(t, `{"cleared":1}`, rec.Body.String())

	decode(t, get(h, "/api/cache"), &stats)
	assert.Equal(t, 0, stats.Dataset.Entries)
}

func TestCache_StatsWithoutCaching(t *testing.T) {
	_, h := newTestServer(t, Options{})
	assert.JSONEq(t, `{"dataset":null,"processes":null}`, get(h, "/api/cache").Body.String())
}

func TestSweep_PurgesExpiredEntries(t *testing.T) {
	s, h := newCachedServer(t, time.Millisecond)
	require.Equal(t, http.StatusCreated, upload(t, h, store.SlotPrimary, "cfem.csv", primaryCSV).Code)
	time.Sleep(5 * time.Millisecond)

	entries, slots, err := s.sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, entries)
	assert.Zero(t, slots)
	assert.Equal(t, 0, s.loader.Cache().Stats().Entries)
}

func TestSweepLoop_StopsWithContext(t *testing.T) {
	s, _ := newCachedServer(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.sweepLoop(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
}
