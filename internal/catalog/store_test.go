package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drumkits/internal/kit"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	rows  []kit.Row
	err   error
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]kit.Row, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeFetcher) set(rows []kit.Row, err error) {
	f.mu.Lock()
	f.rows, f.err = rows, err
	f.mu.Unlock()
}

type memPersister struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMemPersister() *memPersister {
	return &memPersister{entries: make(map[string]Entry)}
}

func (p *memPersister) Load(ctx context.Context, key string) (Entry, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	return e, ok, nil
}

func (p *memPersister) Save(ctx context.Context, key string, e Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = e
	return nil
}

func (p *memPersister) Prune(ctx context.Context, prefix, keep string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k := range p.entries {
		if k != keep && strings.HasPrefix(k, prefix) {
			delete(p.entries, k)
			n++
		}
	}
	return n, nil
}

func rows(slugs ...string) []kit.Row {
	out := make([]kit.Row, 0, len(slugs))
	for i, s := range slugs {
		slug, title := s, strings.ToUpper(s)
		out = append(out, kit.Row{ID: kit.ID(string(rune('1' + i))), Slug: &slug, Title: &title})
	}
	return out
}

func newTestStore(f Fetcher, p Persister, c *clock) *Store {
	return NewStore(Config{
		Fetcher:   f,
		Persister: p,
		Logger:    zerolog.Nop(),
		Now:       c.Now,
	})
}

var stale = Options{AllowStale: true, Revalidate: true}

func TestReplaceThenReadSync(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestStore(f, nil, newClock())

	_, ok := s.CachedSync(true)
	assert.False(t, ok)

	in := []kit.Kit{{ID: "1", Slug: "a", Title: "A"}, {ID: "2", Slug: "b", Title: "B"}}
	s.Replace(context.Background(), in)

	got, ok := s.CachedSync(true)
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.Zero(t, f.calls.Load())
}

func TestCopyOnRead(t *testing.T) {
	s := newTestStore(&fakeFetcher{}, nil, newClock())
	s.Replace(context.Background(), []kit.Kit{{Slug: "a", Title: "A"}})

	got, _ := s.CachedSync(true)
	got[0].Title = "changed"

	again, _ := s.CachedSync(true)
	assert.Equal(t, "A", again[0].Title)
}

func TestAllFetchesOnceWhileFresh(t *testing.T) {
	f := &fakeFetcher{rows: rows("a", "b")}
	p := newMemPersister()
	s := newTestStore(f, p, newClock())

	kits, err := s.All(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, kits, 2)
	assert.Equal(t, "A", kits[0].Title)
	assert.Equal(t, kit.DefaultFileSize, kits[0].FileSize)

	_, err = s.All(context.Background(), Options{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())

	e, ok := p.entries[s.Key()]
	require.True(t, ok)
	assert.Len(t, e.Data, 2)
	assert.Positive(t, e.Timestamp)
}

func TestStaleWhileRevalidate(t *testing.T) {
	c := newClock()
	f := &fakeFetcher{rows: rows("a")}
	s := newTestStore(f, nil, c)

	_, err := s.All(context.Background(), Options{})
	require.NoError(t, err)

	updates, cancel := s.Subscribe()
	defer cancel()

	c.Advance(6 * time.Minute)
	f.set(rows("a", "b"), nil)

	kits, err := s.All(context.Background(), stale)
	require.NoError(t, err)
	assert.Len(t, kits, 1, "stale data is served immediately")

	select {
	case u := <-updates:
		assert.Len(t, u.Kits, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh did not publish")
	}
	assert.EqualValues(t, 2, f.calls.Load())

	got, ok := s.CachedSync(false)
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestStaleNotAllowedFetches(t *testing.T) {
	c := newClock()
	f := &fakeFetcher{rows: rows("a")}
	s := newTestStore(f, nil, c)
	_, err := s.All(context.Background(), Options{})
	require.NoError(t, err)

	c.Advance(10 * time.Minute)
	_, ok := s.CachedSync(false)
	assert.False(t, ok)
	_, ok = s.CachedSync(true)
	assert.True(t, ok)

	f.set(rows("a", "b", "c"), nil)
	kits, err := s.All(context.Background(), Options{})
	require.NoError(t, err)
	assert.Len(t, kits, 3)
}

func TestBackgroundFailureKeepsStale(t *testing.T) {
	c := newClock()
	f := &fakeFetcher{rows: rows("a")}
	s := newTestStore(f, nil, c)
	_, err := s.All(context.Background(), Options{})
	require.NoError(t, err)

	c.Advance(time.Hour)
	f.set(nil, errors.New("upstream down"))

	kits, err := s.All(context.Background(), stale)
	require.NoError(t, err)
	assert.Len(t, kits, 1)

	require.Eventually(t, func() bool {
		return f.calls.Load() == 2 && !s.Status().Refreshing
	}, 2*time.Second, 5*time.Millisecond)

	got, ok := s.CachedSync(true)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestRequiredFetchErrorPropagates(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	s := newTestStore(f, nil, newClock())

	_, err := s.All(context.Background(), stale)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestConcurrentCallsShareOneFetch(t *testing.T) {
	f := &fakeFetcher{rows: rows("a", "b"), gate: make(chan struct{})}
	s := newTestStore(f, nil, newClock())

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]kit.Kit, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kits, err := s.All(context.Background(), Options{})
			assert.NoError(t, err)
			results[i] = kits
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.EqualValues(t, 1, f.calls.Load())
	for _, r := range results {
		assert.Len(t, r, 2)
	}
}

func TestCallerCancelDoesNotAbortFetch(t *testing.T) {
	f := &fakeFetcher{rows: rows("a"), gate: make(chan struct{})}
	s := newTestStore(f, nil, newClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.All(ctx, Options{})
		done <- err
	}()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(f.gate)
	require.Eventually(t, func() bool {
		_, ok := s.CachedSync(true)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestForceRefresh(t *testing.T) {
	f := &fakeFetcher{rows: rows("a")}
	s := newTestStore(f, nil, newClock())
	_, err := s.All(context.Background(), Options{})
	require.NoError(t, err)

	f.set(rows("a", "b"), nil)
	kits, err := s.All(context.Background(), Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Len(t, kits, 2)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestPersistedEntryUsedBeforeFetch(t *testing.T) {
	c := newClock()
	p := newMemPersister()
	p.entries[Key(1)] = Entry{Timestamp: c.Now().Add(-time.Minute).UnixMilli(), Data: []kit.Kit{{Slug: "cached"}}}
	f := &fakeFetcher{rows: rows("x")}
	s := newTestStore(f, p, c)

	kits, err := s.All(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, kits, 1)
	assert.Equal(t, "cached", kits[0].Slug)
	assert.Zero(t, f.calls.Load())
}

func TestWarmPrunesOldVersions(t *testing.T) {
	c := newClock()
	p := newMemPersister()
	p.entries["drumkits:all:v0"] = Entry{Timestamp: 1, Data: []kit.Kit{}}
	p.entries["drumkits:all:legacy"] = Entry{Timestamp: 1, Data: []kit.Kit{}}
	p.entries["other:key"] = Entry{Timestamp: 1, Data: []kit.Kit{}}
	p.entries[Key(1)] = Entry{Timestamp: c.Now().UnixMilli(), Data: []kit.Kit{{Slug: "warm"}}}

	f := &fakeFetcher{}
	s := newTestStore(f, p, c)
	require.True(t, s.Warm(context.Background()))

	assert.Len(t, p.entries, 2)
	assert.Contains(t, p.entries, Key(1))
	assert.Contains(t, p.entries, "other:key")

	k, ok := s.BySlugSync("warm")
	require.True(t, ok)
	assert.Equal(t, "warm", k.Slug)
	assert.True(t, s.Status().Fresh)
}

func TestSearch(t *testing.T) {
	f := &fakeFetcher{rows: rows("lofi", "trap")}
	s := newTestStore(f, nil, newClock())

	got, err := s.Search(context.Background(), "  ", stale)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, f.calls.Load(), "blank query does no I/O")

	assert.Empty(t, s.SearchSync("trap"))

	got, err = s.Search(context.Background(), "TRA", stale)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trap", got[0].Slug)

	assert.Len(t, s.SearchSync("lo"), 1)
}

func TestBySlug(t *testing.T) {
	f := &fakeFetcher{rows: rows("a", "b")}
	s := newTestStore(f, nil, newClock())

	k, ok, err := s.BySlug(context.Background(), "b", stale)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B", k.Title)

	_, ok, err = s.BySlug(context.Background(), "zzz", stale)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeNewestWins(t *testing.T) {
	s := newTestStore(&fakeFetcher{}, nil, newClock())
	updates, cancel := s.Subscribe()

	s.Replace(context.Background(), []kit.Kit{{Slug: "one"}})
	s.Replace(context.Background(), []kit.Kit{{Slug: "one"}, {Slug: "two"}})

	u := <-updates
	assert.Len(t, u.Kits, 2)
	select {
	case <-updates:
		t.Fatal("only the newest update is kept")
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)

	s.Replace(context.Background(), nil)
}
