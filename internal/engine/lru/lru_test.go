package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	h := New[int](60, 0, 0)

	require.NoError(t, h.Put(10, []byte("flow-a"), 42))

	node := h.Get([]byte("flow-a"))
	require.False(t, node.IsNull())
	assert.Equal(t, 42, node.Data())
}

func TestGetMissReturnsNull(t *testing.T) {
	h := New[int](60, 0, 0)
	node := h.Get([]byte("does-not-exist"))
	assert.True(t, node.IsNull())
}

func TestKeyTooLongRejected(t *testing.T) {
	h := New[int](60, 4, 0)
	err := h.Put(10, []byte("way-too-long-key"), 1)
	assert.ErrorIs(t, err, ErrKeyTooLong)
}

func TestStepExpiresAtTTL(t *testing.T) {
	h := New[string](60, 0, 0)
	require.NoError(t, h.Put(5, []byte("k"), "v"))

	h.Step(4)
	assert.False(t, h.HasExpired())
	assert.False(t, h.Get([]byte("k")).IsNull())

	h.Step(1)
	assert.True(t, h.HasExpired())
	assert.Equal(t, "v", h.PopExpired())
	assert.True(t, h.Get([]byte("k")).IsNull())
}

func TestPutRefreshesExistingEntryTTL(t *testing.T) {
	h := New[int](60, 0, 0)
	require.NoError(t, h.Put(2, []byte("k"), 1))
	require.NoError(t, h.Put(10, []byte("k"), 2))

	h.Step(2)
	assert.False(t, h.HasExpired(), "refreshed entry should not expire at the original TTL")

	node := h.Get([]byte("k"))
	require.False(t, node.IsNull())
	assert.Equal(t, 2, node.Data())
}

func TestStepDeltaClampedToMaxTTL(t *testing.T) {
	h := New[int](5, 0, 0)
	require.NoError(t, h.Put(4, []byte("k"), 1))

	h.Step(1000)
	assert.True(t, h.HasExpired())
	assert.Equal(t, 1, h.PopExpired())
}

func TestLenTracksLiveEntries(t *testing.T) {
	h := New[int](60, 0, 0)
	require.NoError(t, h.Put(10, []byte("a"), 1))
	require.NoError(t, h.Put(10, []byte("b"), 2))
	assert.Equal(t, 2, h.Len())

	h.Step(11)
	assert.Equal(t, 0, h.Len())
}

func TestPutEvictsSoonestExpiringWhenAtCapacity(t *testing.T) {
	h := New[string](60, 0, 2)
	require.NoError(t, h.Put(5, []byte("expires-soon"), "a"))
	require.NoError(t, h.Put(50, []byte("expires-later"), "b"))
	assert.Equal(t, 2, h.Len())

	require.NoError(t, h.Put(50, []byte("new-flow"), "c"))

	assert.Equal(t, 2, h.Len(), "table must stay at capacity")
	assert.True(t, h.Get([]byte("expires-soon")).IsNull(), "the entry closest to expiry is evicted first")
	assert.False(t, h.Get([]byte("expires-later")).IsNull())
	assert.False(t, h.Get([]byte("new-flow")).IsNull())

	require.True(t, h.HasExpired())
	assert.Equal(t, "a", h.PopExpired())
}

func TestPutRefreshingExistingKeyDoesNotEvict(t *testing.T) {
	h := New[int](60, 0, 1)
	require.NoError(t, h.Put(10, []byte("k"), 1))
	require.NoError(t, h.Put(20, []byte("k"), 2))

	assert.Equal(t, 1, h.Len())
	assert.False(t, h.HasExpired())
	assert.Equal(t, 2, h.Get([]byte("k")).Data())
}
