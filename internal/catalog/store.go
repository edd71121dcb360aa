package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"drumkits/internal/kit"
)

const (
	KeyPrefix  = "drumkits:all:"
	DefaultTTL = 5 * time.Minute
)

// Key is the persisted cache key for a cache version.
func Key(version int) string {
	if version <= 0 {
		version = 1
	}
	return fmt.Sprintf("%sv%d", KeyPrefix, version)
}

// Entry is the persisted form of the catalog. Timestamp is unix milliseconds.
type Entry struct {
	Timestamp int64     `json:"timestamp"`
	Data      []kit.Kit `json:"data"`
}

func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func (e Entry) valid() bool {
	return e.Timestamp > 0 && e.Data != nil
}

// Update is delivered to subscribers after every successful write.
type Update struct {
	Kits      []kit.Kit
	Timestamp time.Time
}

// Options controls how a read resolves. The zero value only accepts fresh
// data and fetches otherwise.
type Options struct {
	ForceRefresh bool
	AllowStale   bool
	Revalidate   bool
}

// Fetcher loads every catalog row from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) ([]kit.Row, error)
}

// Persister stores the catalog entry outside the process.
type Persister interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, e Entry) error
	// Prune removes entries whose key starts with prefix, except keep.
	Prune(ctx context.Context, prefix, keep string) (int, error)
}

type Config struct {
	Fetcher      Fetcher
	Persister    Persister
	TTL          time.Duration
	Version      int
	FetchTimeout time.Duration
	Logger       zerolog.Logger
	// Now is replaced in tests.
	Now func() time.Time
}

type Store struct {
	fetcher      Fetcher
	persister    Persister
	key          string
	ttl          time.Duration
	fetchTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time

	mu    sync.RWMutex
	kits  []kit.Kit
	stamp time.Time
	ready bool

	group      singleflight.Group
	refreshing atomic.Bool

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		fetcher:      cfg.Fetcher,
		persister:    cfg.Persister,
		key:          Key(cfg.Version),
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		log:          cfg.Logger,
		now:          cfg.Now,
		subs:         make(map[int]chan Update),
	}
}

func (s *Store) Key() string {
	return s.key
}

// Warm prunes entries left by older cache versions and loads the persisted
// entry into memory. It reports whether an entry was loaded.
func (s *Store) Warm(ctx context.Context) bool {
	if s.persister == nil {
		return false
	}
	if n, err := s.persister.Prune(ctx, KeyPrefix, s.key); err != nil {
		s.log.Warn().Err(err).Msg("prune cache entries")
	} else if n > 0 {
		s.log.Info().Int("removed", n).Msg("pruned old cache entries")
	}
	e, ok := s.loadPersisted(ctx)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return false
	}
	s.setLocked(e.Data, e.Time())
	return true
}

// All returns the whole catalog: memory first, then the persisted entry,
// then upstream.
func (s *Store) All(ctx context.Context, opts Options) ([]kit.Kit, error) {
	if !opts.ForceRefresh {
		if kits, stamp, ok := s.memory(); ok {
			if out, ok := s.serve(kits, stamp, opts); ok {
				return out, nil
			}
		}
		if e, ok := s.loadPersisted(ctx); ok {
			s.mu.Lock()
			if !s.ready || e.Time().After(s.stamp) {
				s.setLocked(e.Data, e.Time())
			}
			s.mu.Unlock()
			if out, ok := s.serve(e.Data, e.Time(), opts); ok {
				return out, nil
			}
		}
	}
	return s.fetch(ctx)
}

func (s *Store) serve(kits []kit.Kit, stamp time.Time, opts Options) ([]kit.Kit, bool) {
	fresh := s.fresh(stamp)
	if !fresh && !opts.AllowStale {
		return nil, false
	}
	if !fresh && opts.Revalidate {
		s.refreshInBackground()
	}
	return kits, true
}

// CachedSync returns the resident catalog without any I/O.
func (s *Store) CachedSync(allowStale bool) ([]kit.Kit, bool) {
	kits, stamp, ok := s.memory()
	if !ok {
		return nil, false
	}
	if !allowStale && !s.fresh(stamp) {
		return nil, false
	}
	return kits, true
}

// Search filters the catalog by a case-insensitive substring of title,
// description or slug. A blank query returns an empty result without I/O.
func (s *Store) Search(ctx context.Context, query string, opts Options) ([]kit.Kit, error) {
	if strings.TrimSpace(query) == "" {
		return []kit.Kit{}, nil
	}
	kits, err := s.All(ctx, opts)
	if err != nil {
		return nil, err
	}
	return kit.Filter(kits, query), nil
}

func (s *Store) SearchSync(query string) []kit.Kit {
	kits, _ := s.CachedSync(true)
	return kit.Filter(kits, query)
}

func (s *Store) BySlug(ctx context.Context, slug string, opts Options) (kit.Kit, bool, error) {
	if strings.TrimSpace(slug) == "" {
		return kit.Kit{}, false, nil
	}
	kits, err := s.All(ctx, opts)
	if err != nil {
		return kit.Kit{}, false, err
	}
	k, ok := kit.FindBySlug(kits, slug)
	return k, ok, nil
}

func (s *Store) BySlugSync(slug string) (kit.Kit, bool) {
	kits, _ := s.CachedSync(true)
	return kit.FindBySlug(kits, slug)
}

// Replace stores kits as the whole catalog, exactly like a successful fetch.
func (s *Store) Replace(ctx context.Context, kits []kit.Kit) {
	s.write(ctx, kits)
}

// Refresh forces an upstream fetch, sharing any fetch already in flight.
func (s *Store) Refresh(ctx context.Context) ([]kit.Kit, error) {
	return s.fetch(ctx)
}

type Status struct {
	Key        string    `json:"key"`
	Count      int       `json:"count"`
	Loaded     bool      `json:"loaded"`
	Fresh      bool      `json:"fresh"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	AgeSeconds float64   `json:"age_seconds"`
	TTLSeconds float64   `json:"ttl_seconds"`
	Refreshing bool      `json:"refreshing"`
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Key:        s.key,
		Count:      len(s.kits),
		Loaded:     s.ready,
		TTLSeconds: s.ttl.Seconds(),
		Refreshing: s.refreshing.Load(),
	}
	if s.ready {
		st.UpdatedAt = s.stamp
		st.AgeSeconds = s.now().Sub(s.stamp).Seconds()
		st.Fresh = s.fresh(s.stamp)
	}
	return st
}

func (s *Store) fresh(stamp time.Time) bool {
	return s.now().Sub(stamp) <= s.ttl
}

func (s *Store) memory() ([]kit.Kit, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, time.Time{}, false
	}
	out := make([]kit.Kit, len(s.kits))
	copy(out, s.kits)
	return out, s.stamp, true
}

func (s *Store) setLocked(kits []kit.Kit, stamp time.Time) {
	out := make([]kit.Kit, len(kits))
	copy(out, kits)
	s.kits = out
	s.stamp = stamp
	s.ready = true
}

func (s *Store) loadPersisted(ctx context.Context) (Entry, bool) {
	if s.persister == nil {
		return Entry{}, false
	}
	e, ok, err := s.persister.Load(ctx, s.key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("load cache entry")
		return Entry{}, false
	}
	if !ok || !e.valid() {
		return Entry{}, false
	}
	return e, true
}

// fetch runs at most one upstream load at a time. A caller whose context
// ends stops waiting; the load itself runs to completion.
func (s *Store) fetch(ctx context.Context) ([]kit.Kit, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("catalog: no fetcher configured")
	}
	ch := s.group.DoChan(s.key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		rows, err := s.fetcher.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		kits := kit.NormalizeAll(rows)
		s.write(fctx, kits)
		return kits, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch catalog: %w", res.Err)
		}
		kits := res.Val.([]kit.Kit)
		out := make([]kit.Kit, len(kits))
		copy(out, kits)
		return out, nil
	}
}

func (s *Store) refreshInBackground() {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.refreshing.Store(false)
		if _, err := s.fetch(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("background refresh failed")
		}
	}()
}

func (s *Store) write(ctx context.Context, kits []kit.Kit) {
	now := s.now()
	s.mu.Lock()
	s.setLocked(kits, now)
	s.mu.Unlock()

	if s.persister != nil {
		data := make([]kit.Kit, len(kits))
		copy(data, kits)
		if err := s.persister.Save(ctx, s.key, Entry{Timestamp: now.UnixMilli(), Data: data}); err != nil {
			s.log.Warn().Err(err).Str("key", s.key).Msg("save cache entry")
		}
	}
	s.broadcast(kits, now)
}
