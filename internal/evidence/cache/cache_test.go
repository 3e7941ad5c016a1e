package cache_test

//go:generate mockgen -source=../evidence.go -destination=../mocks/mocks.go -package=mocks Adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"phoneintel/internal/evidence"
	"phoneintel/internal/evidence/cache"
	"phoneintel/internal/evidence/cache/store/memory"
	"phoneintel/internal/evidence/mocks"
)

// =============================================================================
// Cached Adapter Test Suite
// =============================================================================
// Justification for unit tests: the decorator owns cache-aside semantics
// (hit, miss, write-through, degradation on store failure) that no backend
// test can observe. The delegate is a gomock so call counts are exact.

type CachedAdapterSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	inner   *mocks.MockAdapter
	store   *memory.Store
	adapter *cache.CachedAdapter
	logger  *slog.Logger
}

func TestCachedAdapterSuite(t *testing.T) {
	suite.Run(t, new(CachedAdapterSuite))
}

func (s *CachedAdapterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.inner = mocks.NewMockAdapter(s.ctrl)
	s.inner.EXPECT().Name().Return("stub").AnyTimes()
	s.store = memory.New()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.adapter = cache.Wrap(s.inner, s.store, cache.WithTTL(time.Hour), cache.WithLogger(s.logger))
}

func (s *CachedAdapterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func sample(e164 string) []evidence.Evidence {
	return []evidence.Evidence{{
		Title:     "hit",
		URL:       "https://example.invalid",
		Snippet:   e164,
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC),
		Source:    "stub",
	}}
}

func (s *CachedAdapterSuite) TestSecondCallServedFromCache() {
	ctx := context.Background()
	s.inner.EXPECT().Check(gomock.Any(), "+16502530000", 5).Return(sample("+16502530000"), nil).Times(1)

	first, err := s.adapter.Check(ctx, "+16502530000", 5)
	s.Require().NoError(err)
	second, err := s.adapter.Check(ctx, "+16502530000", 5)
	s.Require().NoError(err)

	s.Equal(first, second, "timestamps round-trip verbatim")
	s.Equal("stub", s.adapter.Name())
}

func (s *CachedAdapterSuite) TestLimitIsPartOfTheKey() {
	ctx := context.Background()
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(sample("+1"), nil).Times(1)
	s.inner.EXPECT().Check(gomock.Any(), "+1", 3).Return(sample("+1"), nil).Times(1)

	_, err := s.adapter.Check(ctx, "+1", 5)
	s.Require().NoError(err)
	_, err = s.adapter.Check(ctx, "+1", 3)
	s.Require().NoError(err)
}

func (s *CachedAdapterSuite) TestEmptyResultIsCached() {
	ctx := context.Background()
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return([]evidence.Evidence{}, nil).Times(1)

	for i := 0; i < 2; i++ {
		items, err := s.adapter.Check(ctx, "+1", 5)
		s.Require().NoError(err)
		s.NotNil(items)
		s.Empty(items)
	}
}

func (s *CachedAdapterSuite) TestErrorsAreNotCached() {
	ctx := context.Background()
	boom := errors.New("upstream down")
	gomock.InOrder(
		s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(nil, boom),
		s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(sample("+1"), nil),
	)

	_, err := s.adapter.Check(ctx, "+1", 5)
	s.ErrorIs(err, boom)
	items, err := s.adapter.Check(ctx, "+1", 5)
	s.Require().NoError(err)
	s.Len(items, 1)
}

func (s *CachedAdapterSuite) TestZeroTTLIsPassThrough() {
	ctx := context.Background()
	adapter := cache.Wrap(s.inner, s.store, cache.WithTTL(0))
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(sample("+1"), nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := adapter.Check(ctx, "+1", 5)
		s.Require().NoError(err)
	}
	s.Zero(s.store.Len())
}

func (s *CachedAdapterSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	key := cache.Key(cache.DefaultNamespace, "stub", "+1", "5")

	for _, payload := range []string{`not json`, `[{"title":"legacy bare list"}]`, `{"v":99,"items":[]}`, `{"v":1}`} {
		s.Require().NoError(s.store.Set(ctx, key, []byte(payload), time.Hour))
		s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(sample("+1"), nil).Times(1)

		items, err := s.adapter.Check(ctx, "+1", 5)
		s.Require().NoError(err, payload)
		s.Len(items, 1)

		// the fresh result overwrote the corrupt entry
		raw, ok, err := s.store.Get(ctx, key)
		s.Require().NoError(err)
		s.Require().True(ok)
		s.Contains(string(raw), `"v":1`)
	}
}

func (s *CachedAdapterSuite) TestCorruptEntryIsDeletedEvenWhenDelegateFails() {
	ctx := context.Background()
	key := cache.Key(cache.DefaultNamespace, "stub", "+1", "5")
	s.Require().NoError(s.store.Set(ctx, key, []byte(`not json`), time.Hour))
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(nil, errors.New("upstream down")).Times(1)

	_, err := s.adapter.Check(ctx, "+1", 5)
	s.Require().Error(err)

	_, ok, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok, "unreadable entry must not survive the lookup")
}

func (s *CachedAdapterSuite) TestCancelledDelegateDoesNotWrite() {
	ctx, cancel := context.WithCancel(context.Background())
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).DoAndReturn(
		func(ctx context.Context, _ string, _ int) ([]evidence.Evidence, error) {
			cancel()
			return sample("+1"), nil
		})

	_, err := s.adapter.Check(ctx, "+1", 5)
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.store.Len())
}

func (s *CachedAdapterSuite) TestStoreFailureDegradesToPassThrough() {
	adapter := cache.Wrap(s.inner, failingStore{}, cache.WithLogger(s.logger))
	s.inner.EXPECT().Check(gomock.Any(), "+1", 5).Return(sample("+1"), nil).Times(1)

	items, err := adapter.Check(context.Background(), "+1", 5)
	s.Require().NoError(err)
	s.Len(items, 1)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk on fire")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("disk on fire")
}

func (failingStore) DeleteExpired(context.Context) (int, error) {
	return 0, errors.New("disk on fire")
}

// =============================================================================
// Key and codec
// =============================================================================

func TestKey(t *testing.T) {
	k := cache.Key("reputation", "duckduckgo", "+14155550100", "5")
	assert.True(t, strings.HasPrefix(k, "reputation:"))
	assert.Len(t, k, len("reputation:")+64)
	assert.Equal(t, k, cache.Key("reputation", "duckduckgo", "+14155550100", "5"))
	assert.NotEqual(t, k, cache.Key("reputation", "duckduckgo", "+14155550100", "6"))

	long := strings.Repeat("x", 10_000)
	assert.Len(t, cache.Key("reputation", long), len("reputation:")+64)
}

func TestCodec(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		raw, err := cache.Encode(sample("+1"))
		require.NoError(t, err)
		got, err := cache.Decode(raw, now)
		require.NoError(t, err)
		assert.Equal(t, sample("+1"), got)
	})

	t.Run("bad timestamp defaults to now", func(t *testing.T) {
		got, err := cache.Decode([]byte(`{"v":1,"items":[{"title":"t","timestamp":"yesterday"}]}`), now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, now, got[0].Timestamp)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		_, err := cache.Decode([]byte(`{"v":2,"items":[]}`), now)
		assert.ErrorIs(t, err, cache.ErrDeserialization)
	})
}

// =============================================================================
// Sweeper
// =============================================================================

func TestSweeper(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store := memory.New(memory.WithClock(clock))
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", []byte(`1`), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte(`1`), time.Hour))
	now = now.Add(time.Minute)

	sw := cache.NewSweeper(store, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	sw.Start(ctx)
	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 10*time.Millisecond)
	sw.Stop()
	sw.Stop()

	n, err := cache.NewSweeper(store, time.Hour, nil, nil).SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeperNonPositiveIntervalDoesNotStart(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, interval := range []time.Duration{0, -time.Second} {
		sw := cache.NewSweeper(memory.New(), interval, logger, nil)
		sw.Start(context.Background())
		sw.Stop()

		n, err := sw.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}
