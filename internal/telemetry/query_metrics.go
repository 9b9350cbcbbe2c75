// Package telemetry records how the archive is searched: query volume,
// latency, frequent terms and queries that matched nothing.
// Everything is kept in the archive database; nothing is reported anywhere.
package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered search.
type QueryEvent struct {
	Query   string
	Hits    int
	Latency time.Duration
	Time    time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.Hits == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		n := copy(result, b.items[b.head:])
		copy(result[n:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms splits a query into lowercase words of at least minLen
// runes. Each term appears once.
func ExtractTerms(query string, minLen int) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms []string
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < minLen {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot summarizes every search recorded in the archive.
type Snapshot struct {
	Queries      int64                   `json:"queries"`
	ZeroResults  int64                   `json:"zero_results"`
	TopTerms     []TermCount             `json:"top_terms,omitempty"`
	RecentMisses []string                `json:"recent_misses,omitempty"`
	Latency      map[LatencyBucket]int64 `json:"latency,omitempty"`
}

// ZeroResultPercentage returns the percentage of queries that matched nothing.
func (s Snapshot) ZeroResultPercentage() float64 {
	if s.Queries == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.Queries) * 100
}

// DayBucket keys the daily counters.
type DayBucket struct {
	Day    string // YYYY-MM-DD, UTC
	Bucket LatencyBucket
}

// DayCounts are the counters of one DayBucket.
type DayCounts struct {
	Queries     int64
	ZeroResults int64
}

// Miss is a query that matched nothing.
type Miss struct {
	Query string
	At    time.Time
}

// Delta is everything recorded since the last flush.
type Delta struct {
	Daily  map[DayBucket]DayCounts
	Terms  map[string]int64
	Misses []Miss
	// LastSeen is the time of the newest event in the delta.
	LastSeen time.Time
}

func newDelta() Delta {
	return Delta{
		Daily: make(map[DayBucket]DayCounts),
		Terms: make(map[string]int64),
	}
}

// Empty reports whether the delta holds nothing to save.
func (d Delta) Empty() bool {
	return len(d.Daily) == 0 && len(d.Terms) == 0 && len(d.Misses) == 0
}

// merge adds other into d. It restores a delta whose save failed.
func (d *Delta) merge(other Delta) {
	for k, v := range other.Daily {
		c := d.Daily[k]
		c.Queries += v.Queries
		c.ZeroResults += v.ZeroResults
		d.Daily[k] = c
	}
	for k, v := range other.Terms {
		d.Terms[k] += v
	}
	d.Misses = append(other.Misses, d.Misses...)
	if other.LastSeen.After(d.LastSeen) {
		d.LastSeen = other.LastSeen
	}
}

// Store persists search telemetry.
type Store interface {
	// Save adds a delta to the stored totals.
	Save(ctx context.Context, d Delta) error

	// Load returns the stored totals with up to topTerms terms and
	// misses recent misses, newest first.
	Load(ctx context.Context, topTerms, misses int) (*Snapshot, error)
}

// Config configures QueryMetrics.
type Config struct {
	TopTerms      int           // Terms reported by Snapshot (default: 10)
	TrackedTerms  int           // Terms counted in memory (default: 200)
	RecentMisses  int           // Zero-result queries kept (default: 20)
	MinTermLength int           // Shorter words are not counted (default: 3)
	FlushInterval time.Duration // Zero flushes only on Close
}

// DefaultConfig returns the defaults used by the archive.
func DefaultConfig() Config {
	return Config{
		TopTerms:      10,
		TrackedTerms:  200,
		RecentMisses:  20,
		MinTermLength: 3,
		FlushInterval: time.Minute,
	}
}

// QueryMetrics aggregates search telemetry in memory and flushes it to a
// Store. Safe for concurrent use.
type QueryMetrics struct {
	cfg   Config
	store Store

	mu          sync.Mutex
	queries     int64
	zeroResults int64
	latency     map[LatencyBucket]int64
	terms       *lru.Cache[string, int64]
	misses      *CircularBuffer[string]
	pending     Delta
	closed      bool

	stop chan struct{}
	done chan struct{}
}

// NewQueryMetrics loads the stored totals and starts the periodic flush.
// A nil store keeps metrics in memory only.
func NewQueryMetrics(ctx context.Context, store Store, cfg Config) (*QueryMetrics, error) {
	def := DefaultConfig()
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = def.TopTerms
	}
	if cfg.TrackedTerms < cfg.TopTerms {
		cfg.TrackedTerms = max(def.TrackedTerms, cfg.TopTerms)
	}
	if cfg.RecentMisses <= 0 {
		cfg.RecentMisses = def.RecentMisses
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = def.MinTermLength
	}

	terms, err := lru.New[string, int64](cfg.TrackedTerms)
	if err != nil {
		return nil, err
	}
	m := &QueryMetrics{
		cfg:     cfg,
		store:   store,
		latency: make(map[LatencyBucket]int64),
		terms:   terms,
		misses:  NewCircularBuffer[string](cfg.RecentMisses),
		pending: newDelta(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if store != nil {
		base, err := store.Load(ctx, cfg.TrackedTerms, cfg.RecentMisses)
		if err != nil {
			return nil, err
		}
		m.seed(base)
	}

	if cfg.FlushInterval > 0 && store != nil {
		go m.flushLoop()
	} else {
		close(m.done)
	}
	return m, nil
}

// seed restores stored totals. Terms are added least frequent first so the
// most frequent are the last evicted.
func (m *QueryMetrics) seed(base *Snapshot) {
	m.queries = base.Queries
	m.zeroResults = base.ZeroResults
	for b, n := range base.Latency {
		m.latency[b] = n
	}
	for i := len(base.TopTerms) - 1; i >= 0; i-- {
		m.terms.Add(base.TopTerms[i].Term, base.TopTerms[i].Count)
	}
	for i := len(base.RecentMisses) - 1; i >= 0; i-- {
		m.misses.Add(base.RecentMisses[i])
	}
}

func (m *QueryMetrics) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(context.Background()); err != nil {
				slog.Warn("failed to flush search telemetry", slog.String("error", err.Error()))
			}
		case <-m.stop:
			return
		}
	}
}

// Record captures one answered search. Blank queries are not counted.
func (m *QueryMetrics) Record(e QueryEvent) {
	if strings.TrimSpace(e.Query) == "" {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	bucket := LatencyToBucket(e.Latency)
	key := DayBucket{Day: e.Time.UTC().Format(time.DateOnly), Bucket: bucket}
	terms := ExtractTerms(e.Query, m.cfg.MinTermLength)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.queries++
	m.latency[bucket]++
	counts := m.pending.Daily[key]
	counts.Queries++

	if e.IsZeroResult() {
		m.zeroResults++
		counts.ZeroResults++
		m.misses.Add(e.Query)
		m.pending.Misses = append(m.pending.Misses, Miss{Query: e.Query, At: e.Time})
	}
	m.pending.Daily[key] = counts

	// An evicted term restarts at zero in memory; the store keeps its total.
	for _, term := range terms {
		count, _ := m.terms.Get(term)
		m.terms.Add(term, count+1)
		m.pending.Terms[term]++
	}
	if e.Time.After(m.pending.LastSeen) {
		m.pending.LastSeen = e.Time
	}
}

// Snapshot returns the totals including unflushed searches.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var top []TermCount
	for _, term := range m.terms.Keys() {
		if count, ok := m.terms.Peek(term); ok {
			top = append(top, TermCount{Term: term, Count: count})
		}
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Term < top[j].Term
	})
	if len(top) > m.cfg.TopTerms {
		top = top[:m.cfg.TopTerms]
	}

	items := m.misses.Items()
	misses := make([]string, len(items))
	for i, q := range items {
		misses[len(items)-1-i] = q
	}

	latency := make(map[LatencyBucket]int64, len(m.latency))
	for b, n := range m.latency {
		latency[b] = n
	}

	return Snapshot{
		Queries:      m.queries,
		ZeroResults:  m.zeroResults,
		TopTerms:     top,
		RecentMisses: misses,
		Latency:      latency,
	}
}

// Flush saves everything recorded since the last flush. A failed save is
// kept for the next attempt.
func (m *QueryMetrics) Flush(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	delta := m.pending
	m.pending = newDelta()
	m.mu.Unlock()

	if delta.Empty() {
		return nil
	}
	if err := m.store.Save(ctx, delta); err != nil {
		m.mu.Lock()
		m.pending.merge(delta)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the periodic flush and flushes once more. Later Record calls
// are ignored.
func (m *QueryMetrics) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	select {
	case <-m.done:
	default:
		close(m.stop)
		<-m.done
	}
	return m.Flush(ctx)
}
