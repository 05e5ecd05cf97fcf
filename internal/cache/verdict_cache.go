// ABOUTME: Bounded O(1) LRU cache mapping fingerprints to verdicts
// ABOUTME: Arena-backed intrusive list with integer handles, strict LRU eviction

package cache

import (
	"sync"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// DefaultCapacity is used when no capacity is configured.
const DefaultCapacity = 4096

// Sentinel arena slots for the recency list. head.next is the MRU entry,
// tail.prev is the LRU entry.
const (
	headIdx = 0
	tailIdx = 1
)

const noIdx = -1

// Metrics is a point-in-time snapshot of cache counters.
type Metrics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// node is one arena slot. The recency list threads nodes by index rather
// than pointer, so eviction and reuse can never leave a dangling reference.
type node struct {
	fp       types.Fingerprint
	verdict  *types.Verdict
	lastUsed time.Time
	hitCount int64
	prev     int
	next     int
}

// VerdictCache is a bounded fingerprint-to-verdict cache with strict LRU
// eviction. All operations are O(1) and serialized by a single mutex; the
// critical sections are short and never block, so a single lock is cheaper
// than sharding (which would make LRU ordering approximate).
type VerdictCache struct {
	mu       sync.Mutex
	capacity int

	index map[types.Fingerprint]int
	arena []node
	free  []int

	hits      int64
	misses    int64
	evictions int64
}

// NewVerdictCache creates a cache with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewVerdictCache(capacity int) *VerdictCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &VerdictCache{
		capacity: capacity,
		index:    make(map[types.Fingerprint]int, capacity),
		arena:    make([]node, 2, capacity+2),
	}
	c.arena[headIdx] = node{prev: noIdx, next: tailIdx}
	c.arena[tailIdx] = node{prev: headIdx, next: noIdx}
	return c
}

// Get returns the cached verdict for a fingerprint, promoting the entry to
// most-recently-used and updating hit metrics. Misses have no side effect
// beyond the miss counter.
func (c *VerdictCache) Get(fp types.Fingerprint) (*types.Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[fp]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	n := &c.arena[idx]
	n.hitCount++
	n.lastUsed = time.Now().UTC()
	c.unlink(idx)
	c.pushFront(idx)
	return n.verdict, true
}

// Put stores a verdict, replacing any existing entry for the fingerprint
// and evicting the LRU entry if the cache is at capacity. It never fails;
// at capacity it silently evicts rather than rejecting the insert.
func (c *VerdictCache) Put(fp types.Fingerprint, v *types.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.index[fp]; ok {
		// Replace in place and promote. The previous verdict value is
		// dropped, never mutated.
		n := &c.arena[idx]
		n.verdict = v
		n.lastUsed = time.Now().UTC()
		c.unlink(idx)
		c.pushFront(idx)
		return
	}

	if len(c.index) >= c.capacity {
		c.evictLRU()
	}

	idx := c.alloc()
	c.arena[idx] = node{
		fp:       fp,
		verdict:  v,
		lastUsed: time.Now().UTC(),
		prev:     noIdx,
		next:     noIdx,
	}
	c.index[fp] = idx
	c.pushFront(idx)
}

// Invalidate removes the entry for a fingerprint if present.
func (c *VerdictCache) Invalidate(fp types.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[fp]
	if !ok {
		return
	}
	c.unlink(idx)
	c.release(idx)
	delete(c.index, fp)
}

// Metrics returns a read-only snapshot of the cache counters.
func (c *VerdictCache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Metrics{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.index),
		Capacity:  c.capacity,
	}
}

// Len returns the current number of entries.
func (c *VerdictCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// evictLRU removes the least-recently-used entry. Caller holds the lock.
func (c *VerdictCache) evictLRU() {
	victim := c.arena[tailIdx].prev
	if victim == headIdx {
		return
	}
	fp := c.arena[victim].fp
	c.unlink(victim)
	c.release(victim)
	delete(c.index, fp)
	c.evictions++
}

// alloc returns a free arena slot, growing the arena if none is available.
func (c *VerdictCache) alloc() int {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	c.arena = append(c.arena, node{})
	return len(c.arena) - 1
}

// release returns a slot to the free list, clearing the verdict reference.
func (c *VerdictCache) release(idx int) {
	c.arena[idx] = node{prev: noIdx, next: noIdx}
	c.free = append(c.free, idx)
}

// unlink removes a node from the recency list.
func (c *VerdictCache) unlink(idx int) {
	n := c.arena[idx]
	c.arena[n.prev].next = n.next
	c.arena[n.next].prev = n.prev
}

// pushFront inserts a node directly after the head sentinel (MRU position).
func (c *VerdictCache) pushFront(idx int) {
	first := c.arena[headIdx].next
	c.arena[idx].prev = headIdx
	c.arena[idx].next = first
	c.arena[first].prev = idx
	c.arena[headIdx].next = idx
}
