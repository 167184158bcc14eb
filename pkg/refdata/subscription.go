package refdata

import (
	"context"
	"sync"
)

// SubscriptionState is what a picker renders
type SubscriptionState struct {
	Key   ScopeKey
	Items []Entity
	// Loading is true only while there is no cached list and a fetch is outstanding
	Loading bool
	Err     error
}

// Subscription follows the reference list of one scope at a time.
//
// Changing the scope starts a fresh loading cycle. Results that arrive for a
// scope the subscription has since left are dropped. Invalidation of the current
// scope triggers a refetch. OnChange is called, from any goroutine, after every
// state change.
type Subscription struct {
	cache    *Cache
	ctx      context.Context
	onChange func()

	mu          sync.Mutex
	key         ScopeKey
	gen         uint64
	items       []Entity
	loading     bool
	err         error
	unsubscribe func()
}

// Watch creates a subscription without a scope. Fetches it starts use ctx.
func (c *Cache) Watch(ctx context.Context, onChange func()) *Subscription {
	if onChange == nil {
		onChange = func() {}
	}
	return &Subscription{cache: c, ctx: ctx, onChange: onChange}
}

// SetScope switches the subscription to key. The zero key clears it.
func (s *Subscription) SetScope(key ScopeKey) {
	s.mu.Lock()
	if key == s.key {
		s.mu.Unlock()
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.key = key
	s.gen++
	s.items = nil
	s.err = nil
	s.loading = false
	if !key.IsZero() {
		s.unsubscribe = s.cache.Subscribe(key, s.cacheChanged)
	}
	s.mu.Unlock()

	if !key.IsZero() {
		s.load()
	}
	s.onChange()
}

// Reload reads the current scope again. After a failure this retries the fetch.
func (s *Subscription) Reload() {
	s.load()
	s.onChange()
}

// State returns a snapshot of the subscription
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubscriptionState{
		Key:     s.key,
		Items:   cloneEntities(s.items),
		Loading: s.loading && s.items == nil,
		Err:     s.err,
	}
}

// Close detaches the subscription from the cache
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.key = ""
	s.gen++
}

// load serves the current scope from the cache or starts a fetch in the background
func (s *Subscription) load() {
	s.mu.Lock()
	key, gen := s.key, s.gen
	if key.IsZero() {
		s.mu.Unlock()
		return
	}
	if items, ok := s.cache.Peek(key); ok {
		s.items, s.err, s.loading = items, nil, false
		s.mu.Unlock()
		return
	}
	s.items, s.err, s.loading = nil, nil, true
	s.mu.Unlock()

	go func() {
		items, err := s.cache.Get(s.ctx, key)
		if !s.apply(key, gen, items, err) {
			return
		}
		s.onChange()
	}()
}

// apply records a fetch result unless the subscription moved on. It reports
// whether the result was kept.
func (s *Subscription) apply(key ScopeKey, gen uint64, items []Entity, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != key || s.gen != gen {
		return false
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.items = nil
		return true
	}
	s.items, s.err = items, nil
	return true
}

func (s *Subscription) cacheChanged() {
	s.mu.Lock()
	key := s.key
	if key.IsZero() {
		s.mu.Unlock()
		return
	}

	refetch := false
	items, cached := s.cache.Peek(key)
	switch {
	case cached:
		s.items, s.err, s.loading = items, nil, false
	case s.items != nil && !s.cache.Pending(key):
		// invalidated under us
		s.gen++
		refetch = true
	default:
		// a failed or outstanding fetch is reported by the goroutine waiting on it
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if refetch {
		s.load()
	}
	s.onChange()
}
