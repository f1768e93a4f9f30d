package reflection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveCreatesOnFirstCall(t *testing.T) {
	store := newFakeStore(Prompt{ID: 3, Text: "What are you grateful for?"})
	r := NewResolver(store, nil, zap.NewNop().Sugar())

	d, err := r.Resolve(context.Background(), Today())
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.Prompt.ID)
	assert.Equal(t, "What are you grateful for?", d.Prompt.Text)
}

func TestResolveIsIdempotent(t *testing.T) {
	store := newFakeStore(Prompt{ID: 3, Text: "p"})
	r := NewResolver(store, nil, zap.NewNop().Sugar())

	first, err := r.Resolve(context.Background(), Today())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), Today())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveEmptyPool(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, nil, zap.NewNop().Sugar())

	_, err := r.Resolve(context.Background(), Today())
	assert.ErrorIs(t, err, ErrNoPromptsAvailable)
}

func TestResolveConcurrentCallersConverge(t *testing.T) {
	store := newFakeStore(Prompt{ID: 1, Text: "p"})
	r := NewResolver(store, nil, zap.NewNop().Sugar())
	today := Today()

	const callers = 32
	results := make([]*Daily, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), today)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
}

func TestResolveDistinctDates(t *testing.T) {
	store := newFakeStore(Prompt{ID: 1, Text: "p"})
	r := NewResolver(store, nil, zap.NewNop().Sugar())

	today := Today()
	tomorrow := today.AddDate(0, 0, 1)

	a, err := r.Resolve(context.Background(), today)
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), tomorrow)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTodayIsUTCMidnight(t *testing.T) {
	d := Today()
	assert.Equal(t, time.UTC, d.Location())
	assert.Zero(t, d.Hour())
	assert.Zero(t, d.Minute())
	assert.Zero(t, d.Second())
}
