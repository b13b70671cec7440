package trending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handsomefox/moviescope/internal/counters"
)

type stubSource struct {
	mu     sync.Mutex
	docs   []counters.Counter
	err    error
	calls  int
	limits []int
}

func (s *stubSource) TopCounters(_ context.Context, limit int) ([]counters.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return nil, s.err
	}
	return s.docs, nil
}

func movieIDs(cs []counters.Counter) []int64 {
	out := make([]int64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.MovieID)
	}
	return out
}

func TestTop3AsksForFiftyAndKeepsThree(t *testing.T) {
	src := &stubSource{docs: []counters.Counter{
		{ID: "a", MovieID: 1, Count: 9},
		{ID: "b", MovieID: 2, Count: 7},
		{ID: "c", MovieID: 1, Count: 5},
		{ID: "d", MovieID: 3, Count: 4},
		{ID: "e", MovieID: 4, Count: 2},
	}}
	a := New(src, Options{})

	top := a.Top3(context.Background())

	assert.Equal(t, []int{DefaultPageSize}, src.limits)
	assert.Equal(t, []int64{1, 2, 3}, movieIDs(top))
}

func TestTop3FewerThanThree(t *testing.T) {
	src := &stubSource{docs: []counters.Counter{{ID: "a", MovieID: 7, Count: 1}}}

	top := New(src, Options{}).Top3(context.Background())

	assert.Equal(t, []int64{7}, movieIDs(top))
}

func TestTop3StoreFailureIsEmpty(t *testing.T) {
	src := &stubSource{err: errors.New("store unreachable")}

	top := New(src, Options{}).Top3(context.Background())

	require.NotNil(t, top)
	assert.Empty(t, top)
}

func TestTop3NothingStored(t *testing.T) {
	top := New(&stubSource{}, Options{}).Top3(context.Background())

	require.NotNil(t, top)
	assert.Empty(t, top)
}

func TestCacheServesRepeatedCalls(t *testing.T) {
	src := &stubSource{docs: []counters.Counter{{ID: "a", MovieID: 1, Title: "Heat", Count: 3}}}
	a := New(src, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	first := a.Top3(ctx)
	second := a.Top3(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	a.Invalidate()
	a.Top3(ctx)
	assert.Equal(t, 2, src.calls)
}

func TestFailuresAreNotCached(t *testing.T) {
	src := &stubSource{err: errors.New("down")}
	a := New(src, Options{CacheTTL: time.Minute})
	ctx := context.Background()

	assert.Empty(t, a.Top3(ctx))

	src.mu.Lock()
	src.err = nil
	src.docs = []counters.Counter{{ID: "a", MovieID: 5, Count: 1}}
	src.mu.Unlock()

	assert.Equal(t, []int64{5}, movieIDs(a.Top3(ctx)))
}

func TestNoCacheByDefault(t *testing.T) {
	src := &stubSource{}
	a := New(src, Options{})
	ctx := context.Background()

	a.Top3(ctx)
	a.Top3(ctx)

	assert.Equal(t, 2, src.calls)
}
