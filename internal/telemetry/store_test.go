package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/store"
)

func newTestStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := store.OpenArchiveDB(filepath.Join(t.TempDir(), store.ArchiveDBName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s, db
}

func TestNewSQLiteStore_NilDB(t *testing.T) {
	_, err := NewSQLiteStore(nil)
	assert.Error(t, err)
}

func TestSQLiteStore_EmptyLoad(t *testing.T) {
	s, _ := newTestStore(t)

	snap, err := s.Load(context.Background(), 10, 10)

	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Queries)
	assert.Empty(t, snap.TopTerms)
	assert.Empty(t, snap.RecentMisses)
}

func TestSQLiteStore_SaveIsIncremental(t *testing.T) {
	// Given: two deltas on different days
	s, _ := newTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	require.NoError(t, s.Save(ctx, Delta{
		Daily: map[DayBucket]DayCounts{
			{Day: "2026-01-05", Bucket: BucketP10}: {Queries: 3, ZeroResults: 1},
		},
		Terms:    map[string]int64{"invoice": 2, "acme": 1},
		Misses:   []Miss{{Query: "lease", At: day1}},
		LastSeen: day1,
	}))
	require.NoError(t, s.Save(ctx, Delta{
		Daily: map[DayBucket]DayCounts{
			{Day: "2026-01-06", Bucket: BucketP10}: {Queries: 1},
			{Day: "2026-01-06", Bucket: BucketP50}: {Queries: 2, ZeroResults: 2},
		},
		Terms:    map[string]int64{"invoice": 1},
		Misses:   []Miss{{Query: "warranty", At: day2}, {Query: "rent", At: day2}},
		LastSeen: day2,
	}))

	// When: loading the totals
	snap, err := s.Load(ctx, 1, 2)
	require.NoError(t, err)

	// Then: counts add up across saves and limits apply
	assert.Equal(t, int64(6), snap.Queries)
	assert.Equal(t, int64(3), snap.ZeroResults)
	assert.Equal(t, map[LatencyBucket]int64{BucketP10: 4, BucketP50: 2}, snap.Latency)
	assert.Equal(t, []TermCount{{Term: "invoice", Count: 3}}, snap.TopTerms)
	assert.Equal(t, []string{"rent", "warranty"}, snap.RecentMisses)
}

func TestSQLiteStore_TrimsMisses(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	misses := make([]Miss, MaxStoredMisses+20)
	for i := range misses {
		misses[i] = Miss{Query: fmt.Sprintf("q%d", i), At: time.Now()}
	}
	require.NoError(t, s.Save(ctx, Delta{Misses: misses}))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM search_misses`).Scan(&n))
	assert.Equal(t, MaxStoredMisses, n)

	snap, err := s.Load(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprintf("q%d", MaxStoredMisses+19)}, snap.RecentMisses)
}

func TestQueryMetrics_RoundTripThroughSQLite(t *testing.T) {
	// Given: searches recorded and flushed by one collector
	s, _ := newTestStore(t)
	ctx := context.Background()
	first, err := NewQueryMetrics(ctx, s, Config{})
	require.NoError(t, err)
	first.Record(QueryEvent{Query: "invoice acme", Hits: 1, Latency: time.Millisecond})
	first.Record(QueryEvent{Query: "lease", Hits: 0, Latency: time.Millisecond})
	require.NoError(t, first.Close(ctx))

	// When: a new collector opens on the same database
	second, err := NewQueryMetrics(ctx, s, Config{})
	require.NoError(t, err)
	defer func() { _ = second.Close(ctx) }()

	// Then: it starts from the stored totals
	snap := second.Snapshot()
	assert.Equal(t, int64(2), snap.Queries)
	assert.Equal(t, int64(1), snap.ZeroResults)
	assert.Equal(t, []string{"lease"}, snap.RecentMisses)
	assert.Len(t, snap.TopTerms, 3)
}
