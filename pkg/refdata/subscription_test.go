package refdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func TestSubscriptionLoadingCycle(t *testing.T) {
	f := newFakeFetcher()
	f.setList("p1", constants("a"))
	gate := f.block("p1")
	c := NewCache(f)

	sub := c.Watch(context.Background(), nil)
	defer sub.Close()

	st := sub.State()
	assert.False(t, st.Loading, "no scope is not loading")
	assert.True(t, st.Key.IsZero())

	sub.SetScope("p1")
	st = sub.State()
	assert.True(t, st.Loading)
	assert.Nil(t, st.Items)

	<-f.started
	close(gate)
	assert.Eventually(t, func() bool {
		st := sub.State()
		return !st.Loading && len(st.Items) == 1
	}, waitFor, tick)

	// leaving and returning to a cached scope needs no fetch
	sub.SetScope("")
	assert.False(t, sub.State().Loading)
	assert.Nil(t, sub.State().Items)

	sub.SetScope("p1")
	st = sub.State()
	assert.False(t, st.Loading)
	assert.Len(t, st.Items, 1)
	assert.Equal(t, 1, f.callCount("p1"))
}

func TestSubscriptionDropsLateResult(t *testing.T) {
	f := newFakeFetcher()
	f.setList("p1", constants("old"))
	f.setList("p2", constants("new1", "new2"))
	gate := f.block("p1")
	c := NewCache(f)

	sub := c.Watch(context.Background(), nil)
	defer sub.Close()

	sub.SetScope("p1")
	<-f.started
	sub.SetScope("p2")
	assert.Eventually(t, func() bool {
		return len(sub.State().Items) == 2
	}, waitFor, tick)

	close(gate)
	assert.Eventually(t, func() bool {
		_, ok := c.Peek("p1")
		return ok
	}, waitFor, tick, "the late result is still cached")

	st := sub.State()
	assert.Equal(t, ScopeKey("p2"), st.Key)
	require.Len(t, st.Items, 2)
	assert.Equal(t, "new1", st.Items[0].Name)
}

func TestSubscriptionError(t *testing.T) {
	f := newFakeFetcher()
	f.setList("p", constants("a"))
	f.setErr(errors.New("unavailable"))
	c := NewCache(f)

	changes := make(chan struct{}, 16)
	sub := c.Watch(context.Background(), func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer sub.Close()

	sub.SetScope("p")
	assert.Eventually(t, func() bool {
		return sub.State().Err != nil
	}, waitFor, tick)

	st := sub.State()
	assert.False(t, st.Loading)
	var fetchErr *FetchError
	assert.ErrorAs(t, st.Err, &fetchErr)
	_, cached := c.Peek("p")
	assert.False(t, cached)
	assert.NotEmpty(t, changes)

	f.setErr(nil)
	sub.Reload()
	assert.Eventually(t, func() bool {
		st := sub.State()
		return st.Err == nil && len(st.Items) == 1
	}, waitFor, tick)
	assert.Equal(t, 2, f.callCount("p"))
}

func TestSubscriptionRefetchesAfterInvalidate(t *testing.T) {
	f := newFakeFetcher()
	f.setList("p", constants("a"))
	c := NewCache(f)

	sub := c.Watch(context.Background(), nil)
	defer sub.Close()

	sub.SetScope("p")
	assert.Eventually(t, func() bool {
		return len(sub.State().Items) == 1
	}, waitFor, tick)

	f.setList("p", constants("a", "b"))
	c.Invalidate("p")
	assert.Eventually(t, func() bool {
		return len(sub.State().Items) == 2
	}, waitFor, tick)
	assert.Equal(t, 2, f.callCount("p"))
}

func TestSubscriptionSharesFetchWithCache(t *testing.T) {
	f := newFakeFetcher()
	f.setList("p", constants("a"))
	gate := f.block("p")
	c := NewCache(f)

	first := c.Watch(context.Background(), nil)
	defer first.Close()
	second := c.Watch(context.Background(), nil)
	defer second.Close()

	first.SetScope("p")
	<-f.started
	second.SetScope("p")
	assert.True(t, second.State().Loading)

	close(gate)
	assert.Eventually(t, func() bool {
		return len(first.State().Items) == 1 && len(second.State().Items) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, f.callCount("p"))
}
