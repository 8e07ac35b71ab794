package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	clock := time.Now()
	m.nowFunc = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Second))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	clock = clock.Add(11 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry should have expired")
}

func TestMemory_SetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	acquired, err := m.SetNX(ctx, "lock:job1", []byte("owner-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = m.SetNX(ctx, "lock:job1", []byte("owner-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "second SetNX must not acquire an already-held lock")
}

func TestMemory_DeleteIfMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "ack:tok1", []byte("payload"), time.Minute))

	ok, err := m.DeleteIfMatch(ctx, "ack:tok1", []byte("wrong-payload"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.DeleteIfMatch(ctx, "ack:tok1", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Second consume of the same token must fail — this is the
	// consume-exactly-once invariant for acknowledgment tokens (spec §8).
	ok, err = m.DeleteIfMatch(ctx, "ack:tok1", []byte("payload"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Incr(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i, want := range []int64{1, 2, 3} {
		n, err := m.Incr(ctx, "counter")
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, want, n)
	}
}

func TestMemory_ZSetRanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.ZAdd(ctx, "zk", 3, "c"))
	require.NoError(t, m.ZAdd(ctx, "zk", 1, "a"))
	require.NoError(t, m.ZAdd(ctx, "zk", 2, "b"))

	asc, err := m.ZRange(ctx, "zk", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, asc)

	desc, err := m.ZRevRange(ctx, "zk", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, desc)

	byScore, err := m.ZRangeByScore(ctx, "zk", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, byScore)

	require.NoError(t, m.ZRem(ctx, "zk", "b"))
	asc, err = m.ZRange(ctx, "zk", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, asc)
}

func TestMemory_SetOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.SAdd(ctx, "sk", "x"))
	require.NoError(t, m.SAdd(ctx, "sk", "y"))

	card, err := m.SCard(ctx, "sk")
	require.NoError(t, err)
	assert.EqualValues(t, 2, card)

	members, err := m.SMembers(ctx, "sk")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, members)

	require.NoError(t, m.SRem(ctx, "sk", "x"))
	members, err = m.SMembers(ctx, "sk")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, members)
}

func TestMemory_Keys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "crisis:user-1", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "crisis:user-2", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "rate:user-1", []byte("1"), 0))

	keys, err := m.Keys(ctx, "crisis:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"crisis:user-1", "crisis:user-2"}, keys)
}
