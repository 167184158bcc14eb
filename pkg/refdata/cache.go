package refdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single remote fetch
const DefaultFetchTimeout = 30 * time.Second

// Cache memoizes reference lists per scope key.
//
// A key is fetched at most once at a time: readers arriving while a fetch is
// outstanding join it. Successful results are kept until Invalidate; failures
// are never stored, so the next read retries. The fetch itself is detached from
// the caller's context: a caller that gives up stops waiting, but joiners still
// receive the result and it is still cached.
type Cache struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group

	mu        sync.RWMutex
	entries   map[ScopeKey][]Entity
	pending   map[ScopeKey]bool
	listeners map[ScopeKey]map[int]func()
	nextID    int
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithFetchTimeout bounds each fetch; zero or less disables the bound
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for fetch events
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates an empty cache over fetcher
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:   fetcher,
		timeout:   DefaultFetchTimeout,
		logger:    slog.Default(),
		entries:   make(map[ScopeKey][]Entity),
		pending:   make(map[ScopeKey]bool),
		listeners: make(map[ScopeKey]map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns the cached list for key without fetching
func (c *Cache) Peek(key ScopeKey) ([]Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneEntities(list), true
}

// Pending reports whether a fetch for key is outstanding
func (c *Cache) Pending(key ScopeKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending[key]
}

// Get returns the list for key: from the cache, by joining an outstanding
// fetch, or by starting a new one.
func (c *Cache) Get(ctx context.Context, key ScopeKey) ([]Entity, error) {
	if key.IsZero() {
		return nil, ErrNoScope
	}
	if list, ok := c.Peek(key); ok {
		return list, nil
	}

	ch := c.group.DoChan(string(key), func() (interface{}, error) {
		return c.fetch(key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined reference fetch", "key", string(key))
		}
		return cloneEntities(res.Val.([]Entity)), nil
	}
}

// fetch runs inside the single-flight group for key
func (c *Cache) fetch(key ScopeKey) ([]Entity, error) {
	// a fetch that finished between Peek and DoChan already filled the entry
	if list, ok := c.Peek(key); ok {
		return list, nil
	}

	c.setPending(key, true)
	c.logger.Debug("fetching reference data", "key", string(key))

	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	list, err := c.fetcher.FetchReferenceList(ctx, key)
	if err != nil {
		c.setPending(key, false)
		c.logger.Warn("reference fetch failed", "key", string(key), "error", err)
		c.notify(key)
		return nil, &FetchError{Key: key, Err: err}
	}
	if list == nil {
		list = []Entity{}
	}

	c.mu.Lock()
	c.entries[key] = cloneEntities(list)
	delete(c.pending, key)
	c.mu.Unlock()

	c.logger.Debug("reference data cached", "key", string(key), "count", len(list))
	c.notify(key)
	return list, nil
}

func (c *Cache) setPending(key ScopeKey, pending bool) {
	c.mu.Lock()
	if pending {
		c.pending[key] = true
	} else {
		delete(c.pending, key)
	}
	c.mu.Unlock()
}

// Invalidate drops the cached list for key. An outstanding fetch is not
// cancelled and still fills the cache when it completes.
func (c *Cache) Invalidate(key ScopeKey) {
	c.mu.Lock()
	_, had := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if had {
		c.logger.Debug("reference data invalidated", "key", string(key))
		c.notify(key)
	}
}

// InvalidateProject drops the lists of a project and of all its flows.
// A project level entity is visible in every flow scope of the project.
func (c *Cache) InvalidateProject(projectID string) {
	c.mu.Lock()
	keys := make([]ScopeKey, 0)
	for k := range c.entries {
		if k.Project() == projectID {
			keys = append(keys, k)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.notify(k)
	}
}

// Clear drops every cached list
func (c *Cache) Clear() {
	c.mu.Lock()
	keys := make([]ScopeKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.entries = make(map[ScopeKey][]Entity)
	c.mu.Unlock()

	for _, k := range keys {
		c.notify(k)
	}
}

// Warm fetches several keys concurrently and returns the first error
func (c *Cache) Warm(ctx context.Context, keys ...ScopeKey) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			_, err := c.Get(ctx, key)
			return err
		})
	}
	return g.Wait()
}

// Subscribe registers fn to be called whenever the entry for key is filled,
// invalidated or its fetch fails. The returned function removes it.
func (c *Cache) Subscribe(key ScopeKey, fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.listeners[key] == nil {
		c.listeners[key] = make(map[int]func())
	}
	c.listeners[key][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners[key], id)
		if len(c.listeners[key]) == 0 {
			delete(c.listeners, key)
		}
		c.mu.Unlock()
	}
}

func (c *Cache) notify(key ScopeKey) {
	c.mu.RLock()
	fns := make([]func(), 0, len(c.listeners[key]))
	for _, fn := range c.listeners[key] {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
