// Package lru implements the hash-indexed table with time-wheel eviction
// that backs the TCP flow tracker's session store. It is a generic
// container: LruHash[V] holds values of any type keyed by an opaque byte
// key with a per-entry TTL in seconds.
//
// Eviction uses a ring of maxTTL buckets indexed by expiry tick; Step walks
// the ring by delta seconds, moving crossed buckets into an expired queue.
// The tracker (single-threaded per the concurrency model) drains that
// queue and destroys the corresponding sessions.
package lru

import "errors"

// ErrKeyTooLong is returned by Put when key exceeds the table's configured
// maximum key length.
var ErrKeyTooLong = errors.New("lru: key exceeds maximum key length")

// Node is the result of a Get: IsNull signals a miss, Data returns the
// stored value on a hit.
type Node[V any] struct {
	value V
	found bool
}

// IsNull reports whether the lookup missed.
func (n Node[V]) IsNull() bool { return !n.found }

// Data returns the value found by Get. It is the zero value on a miss.
func (n Node[V]) Data() V { return n.value }

type entry[V any] struct {
	key    string
	value  V
	bucket int
}

// LruHash is a fixed-bucket table with per-entry TTL and time-wheel
// eviction. It is not safe for concurrent use; the TCP flow tracker owns
// it exclusively on the decode worker.
type LruHash[V any] struct {
	table      map[string]*entry[V]
	wheel      [][]*entry[V]
	maxTTL     int
	maxKeyLen  int
	maxEntries int
	tick       int
	expired    []V
}

// New returns a table with a maxTTL-second time wheel. maxKeyLen bounds
// accepted key sizes; 0 means unbounded. maxEntries bounds the number of
// live entries; 0 means unbounded. Once full, inserting a new key evicts
// the entry closest to expiry to make room, moving it through the same
// expired queue Step drains.
func New[V any](maxTTL int, maxKeyLen int, maxEntries int) *LruHash[V] {
	if maxTTL <= 0 {
		maxTTL = 1
	}
	return &LruHash[V]{
		table:      make(map[string]*entry[V]),
		wheel:      make([][]*entry[V], maxTTL),
		maxTTL:     maxTTL,
		maxKeyLen:  maxKeyLen,
		maxEntries: maxEntries,
	}
}

func (h *LruHash[V]) removeFromBucket(e *entry[V]) {
	bucket := h.wheel[e.bucket]
	for i, x := range bucket {
		if x == e {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket[last] = nil
			h.wheel[e.bucket] = bucket[:last]
			return
		}
	}
}

// Put inserts or refreshes key with a fresh ttl (seconds from now).
func (h *LruHash[V]) Put(ttl int, key []byte, value V) error {
	if h.maxKeyLen > 0 && len(key) > h.maxKeyLen {
		return ErrKeyTooLong
	}
	skey := string(key)

	if e, ok := h.table[skey]; ok {
		h.removeFromBucket(e)
		e.value = value
		e.bucket = h.bucketFor(ttl)
		h.wheel[e.bucket] = append(h.wheel[e.bucket], e)
		return nil
	}

	if h.maxEntries > 0 && len(h.table) >= h.maxEntries {
		h.evictSoonest()
	}

	e := &entry[V]{key: skey, value: value, bucket: h.bucketFor(ttl)}
	h.table[skey] = e
	h.wheel[e.bucket] = append(h.wheel[e.bucket], e)
	return nil
}

// evictSoonest drops the entry with the least time left before its bucket
// is reached, freeing one slot under a table full of live entries.
func (h *LruHash[V]) evictSoonest() {
	for i := 0; i < h.maxTTL; i++ {
		bucket := h.wheel[(h.tick+i)%h.maxTTL]
		if len(bucket) == 0 {
			continue
		}
		e := bucket[len(bucket)-1]
		h.expired = append(h.expired, e.value)
		delete(h.table, e.key)
		h.removeFromBucket(e)
		return
	}
}

func (h *LruHash[V]) bucketFor(ttl int) int {
	if ttl < 0 {
		ttl = 0
	}
	if ttl >= h.maxTTL {
		ttl = h.maxTTL - 1
	}
	return (h.tick + ttl) % h.maxTTL
}

// Get returns the node for key; Node.IsNull reports a miss.
func (h *LruHash[V]) Get(key []byte) Node[V] {
	e, ok := h.table[string(key)]
	if !ok {
		return Node[V]{}
	}
	return Node[V]{value: e.value, found: true}
}

// Step advances the wall clock by deltaSeconds, moving every entry whose
// residual TTL drops to zero into the expired queue.
func (h *LruHash[V]) Step(deltaSeconds int) {
	if deltaSeconds <= 0 {
		return
	}
	if deltaSeconds > h.maxTTL {
		deltaSeconds = h.maxTTL
	}
	for i := 0; i < deltaSeconds; i++ {
		h.tick = (h.tick + 1) % h.maxTTL
		bucket := h.wheel[h.tick]
		for _, e := range bucket {
			h.expired = append(h.expired, e.value)
			delete(h.table, e.key)
		}
		h.wheel[h.tick] = nil
	}
}

// HasExpired reports whether PopExpired has a value to return.
func (h *LruHash[V]) HasExpired() bool {
	return len(h.expired) > 0
}

// PopExpired removes and returns one value from the expired queue.
func (h *LruHash[V]) PopExpired() V {
	v := h.expired[0]
	h.expired = h.expired[1:]
	return v
}

// Len returns the number of live (non-expired) entries, mainly for tests.
func (h *LruHash[V]) Len() int {
	return len(h.table)
}
