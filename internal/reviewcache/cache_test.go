package reviewcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stayscope/stayscope-cli/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AIResult), args.Error(1)
}

func (m *mockStore) PutAIResult(ctx context.Context, result *model.AIResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func testKey() model.ResultKey {
	return model.ResultKey{
		ListingID:     "l1",
		Fingerprint:   "abc123",
		PromptVersion: "summary-v1",
		Model:         "claude-haiku-4-5-20251001",
	}
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	st := &mockStore{}
	cached := &model.AIResult{Key: testKey(), Rating: &model.RatingResult{Score: 4}}
	st.On("GetAIResult", mock.Anything, testKey()).Return(cached, nil)

	c := New(st)
	result, err := c.GetOrCompute(context.Background(), testKey(), func(ctx context.Context) (*model.AIResult, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, cached, result)
	st.AssertNotCalled(t, "PutAIResult", mock.Anything, mock.Anything)
}

func TestGetOrCompute_MissComputesAndPersists(t *testing.T) {
	st := &mockStore{}
	st.On("GetAIResult", mock.Anything, testKey()).Return(nil, nil)
	st.On("PutAIResult", mock.Anything, mock.Anything).Return(nil)

	c := New(st)
	result, err := c.GetOrCompute(context.Background(), testKey(), func(ctx context.Context) (*model.AIResult, error) {
		return &model.AIResult{Rating: &model.RatingResult{Score: 3.5}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, testKey(), result.Key)
	assert.Equal(t, 3.5, result.Rating.Score)
	st.AssertCalled(t, "PutAIResult", mock.Anything, result)
}

func TestGetOrCompute_ComputeErrorNotPersisted(t *testing.T) {
	st := &mockStore{}
	st.On("GetAIResult", mock.Anything, testKey()).Return(nil, nil)

	c := New(st)
	_, err := c.GetOrCompute(context.Background(), testKey(), func(ctx context.Context) (*model.AIResult, error) {
		return nil, eris.New("llm unavailable")
	})

	require.Error(t, err)
	st.AssertNotCalled(t, "PutAIResult", mock.Anything, mock.Anything)
}

func TestGetOrCompute_PersistFailureStillReturnsResult(t *testing.T) {
	st := &mockStore{}
	st.On("GetAIResult", mock.Anything, testKey()).Return(nil, nil)
	st.On("PutAIResult", mock.Anything, mock.Anything).Return(eris.New("disk full"))

	c := New(st)
	result, err := c.GetOrCompute(context.Background(), testKey(), func(ctx context.Context) (*model.AIResult, error) {
		return &model.AIResult{Rating: &model.RatingResult{Score: 2}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2.0, result.Rating.Score)
}

// memResultStore reflects puts on later lookups, unlike the expectation mock.
type memResultStore struct {
	mu      sync.Mutex
	entries map[model.ResultKey]*model.AIResult
}

func (s *memResultStore) GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *memResultStore) PutAIResult(ctx context.Context, result *model.AIResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[result.Key] = result
	return nil
}

func TestGetOrCompute_ConcurrentCallersShareOneComputation(t *testing.T) {
	st := &memResultStore{entries: make(map[model.ResultKey]*model.AIResult)}
	c := New(st)

	var computes atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	compute := func(ctx context.Context) (*model.AIResult, error) {
		computes.Add(1)
		once.Do(func() { close(started) })
		<-release
		return &model.AIResult{Rating: &model.RatingResult{Score: 4}}, nil
	}

	// The compute is held until every caller has reached GetOrCompute, so
	// concurrent callers join the in-flight computation; anyone arriving
	// after it completes reads the persisted entry instead.
	const callers = 8
	var entered, wg sync.WaitGroup
	entered.Add(callers)
	results := make([]*model.AIResult, callers)
	go func() {
		entered.Wait()
		<-started
		close(release)
	}()
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entered.Done()
			r, err := c.GetOrCompute(context.Background(), testKey(), compute)
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load())
	for _, r := range results {
		assert.Equal(t, 4.0, r.Rating.Score)
	}
}

func TestGetOrCompute_DistinctKeysComputeSeparately(t *testing.T) {
	st := &mockStore{}
	st.On("GetAIResult", mock.Anything, mock.Anything).Return(nil, nil)
	st.On("PutAIResult", mock.Anything, mock.Anything).Return(nil)

	c := New(st)
	var computes atomic.Int64
	compute := func(ctx context.Context) (*model.AIResult, error) {
		computes.Add(1)
		return &model.AIResult{Rating: &model.RatingResult{Score: 1}}, nil
	}

	k1 := testKey()
	k2 := testKey()
	k2.Model = "claude-sonnet-4-5-20250929"

	_, err := c.GetOrCompute(context.Background(), k1, compute)
	require.NoError(t, err)
	_, err = c.GetOrCompute(context.Background(), k2, compute)
	require.NoError(t, err)

	// A model change never reuses an entry computed under the old model.
	assert.Equal(t, int64(2), computes.Load())
}
