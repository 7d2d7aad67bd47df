package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/repository"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/testutil"
)

func newTestIDService(t *testing.T, seq SequenceAllocator) *IDService {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	s := NewIDService(seq, loc)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestIDService_NextWOIDs(t *testing.T) {
	s := newTestIDService(t, newFakeSequence())
	ctx := context.Background()

	ids, err := s.NextWOIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030101", "UW25030102", "UW25030103"}, ids)

	next, err := s.NextWOIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030104"}, next)
}

func TestIDService_DayBoundaryUsesConfiguredZone(t *testing.T) {
	s := newTestIDService(t, newFakeSequence())
	// 16:30 UTC 已经是上海的第二天
	s.now = func() time.Time { return time.Date(2025, 3, 1, 16, 30, 0, 0, time.UTC) }

	ids, err := s.NextWOIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "UW25030201", ids[0])
}

func TestIDService_SequenceWidensPast99(t *testing.T) {
	seq := newFakeSequence()
	seq.values["woid:250301"] = 98
	s := newTestIDService(t, seq)

	ids, err := s.NextWOIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030199", "UW250301100", "UW250301101"}, ids)
}

func TestIDService_InvalidCount(t *testing.T) {
	s := newTestIDService(t, newFakeSequence())
	for _, n := range []int{0, -1, MaxIDsPerCall + 1} {
		_, err := s.NextWOIDs(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidCount, "n=%d", n)
	}
	_, err := s.NextZLHs(context.Background(), 0, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestIDService_NextZLH(t *testing.T) {
	s := newTestIDService(t, newFakeSequence())
	ctx := context.Background()

	first, err := s.NextZLH(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20250301083000-H0001", first)

	batch, err := s.NextZLHs(ctx, 2, fixedNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"20250301083100-H0002", "20250301083100-H0003"}, batch)
}

func TestRedisSequence_Reserve(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newTestIDService(t, NewRedisSequence(rdb))
	ctx := context.Background()

	ids, err := s.NextWOIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030101", "UW25030102"}, ids)

	ids, err = s.NextWOIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030103"}, ids)

	val, err := mr.Get("wo:seq:woid:250301")
	require.NoError(t, err)
	assert.Equal(t, "3", val)
	assert.Equal(t, sequenceKeyTTL, mr.TTL("wo:seq:woid:250301"))
}

func TestRedisSequence_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := NewRedisSequence(rdb).Reserve(context.Background(), "woid:250301", 1)
	assert.Error(t, err)
}

func TestIDService_RelationalSequence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := newTestIDService(t, repository.NewSequenceRepository(db))
	ctx := context.Background()

	a, err := s.NextWOIDs(ctx, 2)
	require.NoError(t, err)
	b, err := s.NextWOIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"UW25030101", "UW25030102"}, a)
	assert.Equal(t, []string{"UW25030103", "UW25030104"}, b)
}
