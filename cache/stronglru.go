package cache

import (
	"fmt"
	"io"

	"github.com/rhcher/contour/stronghash"
)

// noEntry marks the absence of an entry index in bucket chains and
// LRU links.
const noEntry = ^uint32(0)

// entry is one arena slot. Entries are linked two ways: into their
// bucket's collision chain (bucketNext) and into the global LRU list
// (prev/next, most recently used at the head).
type entry[V any] struct {
	hash       stronghash.Hash
	value      V
	prev       uint32
	next       uint32
	bucketNext uint32
	used       bool
}

// Stats holds hit/miss/eviction counters for a StrongLRU.
// The table is single-owner, so plain integers suffice.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// StrongLRU is a bounded LRU hash table from stronghash.Hash to V.
//
// Lookup is O(1) via an open-addressed bucket array whose chains thread
// through a dense entry arena. Each live entry owns a stable entry
// index in [0, Capacity()); the index is assigned from a free list on
// insertion and recycled on eviction. The least recently used entry is
// evicted when an insertion finds the table full.
//
// StrongLRU is not safe for concurrent use. Its owner serializes.
type StrongLRU[V any] struct {
	name    string
	buckets []uint32 // heads of collision chains, noEntry when empty
	mask    uint32
	entries []entry[V]
	free    []uint32 // unassigned entry indexes, used as a stack
	head    uint32   // most recently used, noEntry when empty
	tail    uint32   // least recently used, noEntry when empty
	count   uint32
	onEvict func(entryIndex uint32, value *V)
	stats   Stats
}

// NewStrongLRU creates a table with the given bucket count (rounded up
// to a power of two), entry capacity, and diagnostic name.
// It panics if capacity is zero.
func NewStrongLRU[V any](bucketCount, capacity uint32, name string) *StrongLRU[V] {
	if capacity == 0 {
		panic("cache: StrongLRU capacity must be positive")
	}
	n := nextPowerOfTwo(max(bucketCount, 1))
	c := &StrongLRU[V]{
		name:    name,
		buckets: make([]uint32, n),
		mask:    n - 1,
		entries: make([]entry[V], capacity),
		free:    make([]uint32, capacity),
		head:    noEntry,
		tail:    noEntry,
	}
	for i := range c.buckets {
		c.buckets[i] = noEntry
	}
	// Hand out low indexes first: index i maps to tile i in the atlas,
	// which makes fill order predictable for inspection.
	for i := uint32(0); i < capacity; i++ {
		c.free[capacity-1-i] = i
	}
	return c
}

// nextPowerOfTwo returns the smallest power of two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}

// OnEvict installs a release hook invoked with the entry index and
// value of every entry that is evicted, replaced, removed, or cleared,
// before its index can be reused. Values owning external resources
// (GPU handles, pooled buffers) release them here.
func (c *StrongLRU[V]) OnEvict(fn func(entryIndex uint32, value *V)) {
	c.onEvict = fn
}

// Name returns the diagnostic name given at construction.
func (c *StrongLRU[V]) Name() string { return c.name }

// Len returns the number of live entries.
func (c *StrongLRU[V]) Len() int { return int(c.count) }

// Capacity returns the maximum number of live entries.
func (c *StrongLRU[V]) Capacity() int { return len(c.entries) }

// Stats returns the hit/miss/eviction counters.
func (c *StrongLRU[V]) Stats() Stats { return c.stats }

// bucketOf returns the bucket index for hash h.
func (c *StrongLRU[V]) bucketOf(h stronghash.Hash) uint32 {
	return h.Project32() & c.mask
}

// find returns the entry index for h, or noEntry.
func (c *StrongLRU[V]) find(h stronghash.Hash) uint32 {
	for idx := c.buckets[c.bucketOf(h)]; idx != noEntry; idx = c.entries[idx].bucketNext {
		if c.entries[idx].hash == h {
			return idx
		}
	}
	return noEntry
}

// Contains reports whether h is cached. It does not touch LRU order.
func (c *StrongLRU[V]) Contains(h stronghash.Hash) bool {
	return c.find(h) != noEntry
}

// Peek returns the value for h without touching LRU order, or nil.
func (c *StrongLRU[V]) Peek(h stronghash.Hash) *V {
	idx := c.find(h)
	if idx == noEntry {
		return nil
	}
	return &c.entries[idx].value
}

// Touch promotes h to most recently used if present.
func (c *StrongLRU[V]) Touch(h stronghash.Hash) {
	if idx := c.find(h); idx != noEntry {
		c.moveToFront(idx)
	}
}

// TryGet returns the value for h, promoting it to most recently used,
// or nil if h is not cached.
func (c *StrongLRU[V]) TryGet(h stronghash.Hash) *V {
	idx := c.find(h)
	if idx == noEntry {
		c.stats.Misses++
		return nil
	}
	c.moveToFront(idx)
	c.stats.Hits++
	return &c.entries[idx].value
}

// GetOrEmplace returns the value for h, constructing it on a miss.
//
// On a hit the entry is promoted and returned. On a miss the table
// assigns an entry index (evicting the LRU tail first when full, with
// the tail's value released before build can observe the freed index),
// runs build exactly once, and inserts the result at the MRU position.
// The returned pointer stays valid until the entry is evicted.
func (c *StrongLRU[V]) GetOrEmplace(h stronghash.Hash, build func(entryIndex uint32) V) *V {
	if idx := c.find(h); idx != noEntry {
		c.moveToFront(idx)
		c.stats.Hits++
		return &c.entries[idx].value
	}
	c.stats.Misses++
	idx := c.allocIndex()
	v := build(idx)
	c.insert(h, idx, v)
	return &c.entries[idx].value
}

// GetOrTryEmplace is GetOrEmplace with a build function that may
// decline by returning ok == false. On decline no entry is created and
// the reserved index returns to the free list; nil is returned.
//
// When the table is already full, the LRU tail is evicted before build
// runs, so that the freed index may be observed by the build function;
// a decline at that point does not resurrect the tail.
func (c *StrongLRU[V]) GetOrTryEmplace(h stronghash.Hash, build func(entryIndex uint32) (V, bool)) *V {
	if idx := c.find(h); idx != noEntry {
		c.moveToFront(idx)
		c.stats.Hits++
		return &c.entries[idx].value
	}
	c.stats.Misses++
	idx := c.allocIndex()
	v, ok := build(idx)
	if !ok {
		c.free = append(c.free, idx)
		return nil
	}
	c.insert(h, idx, v)
	return &c.entries[idx].value
}

// Emplace force-inserts a value for h. An existing entry for h is
// released and rebuilt in place (keeping its entry index); otherwise
// this behaves like a GetOrEmplace miss.
func (c *StrongLRU[V]) Emplace(h stronghash.Hash, build func(entryIndex uint32) V) {
	if idx := c.find(h); idx != noEntry {
		c.release(idx)
		c.entries[idx].value = build(idx)
		c.entries[idx].used = true
		c.moveToFront(idx)
		return
	}
	idx := c.allocIndex()
	v := build(idx)
	c.insert(h, idx, v)
}

// Remove drops the entry for h, releasing its value and freeing its
// entry index. Removing an absent hash is a no-op.
func (c *StrongLRU[V]) Remove(h stronghash.Hash) {
	idx := c.find(h)
	if idx == noEntry {
		return
	}
	c.unlinkBucket(idx)
	c.unlinkLRU(idx)
	c.release(idx)
	c.free = append(c.free, idx)
	c.count--
}

// Clear drops all entries, releasing every value and freeing every
// entry index. Counters are preserved.
func (c *StrongLRU[V]) Clear() {
	for idx := c.head; idx != noEntry; {
		next := c.entries[idx].next
		c.release(idx)
		idx = next
	}
	for i := range c.buckets {
		c.buckets[i] = noEntry
	}
	capacity := uint32(len(c.entries))
	c.free = c.free[:0]
	for i := uint32(0); i < capacity; i++ {
		c.free = append(c.free, capacity-1-i)
	}
	c.head = noEntry
	c.tail = noEntry
	c.count = 0
}

// Hashes returns the live hashes in most-to-least recently used order.
func (c *StrongLRU[V]) Hashes() []stronghash.Hash {
	out := make([]stronghash.Hash, 0, c.count)
	for idx := c.head; idx != noEntry; idx = c.entries[idx].next {
		out = append(out, c.entries[idx].hash)
	}
	return out
}

// Inspect writes a human-readable dump of the table's occupancy.
func (c *StrongLRU[V]) Inspect(w io.Writer) {
	fmt.Fprintf(w, "StrongLRU %q: %d/%d entries, %d buckets\n",
		c.name, c.count, len(c.entries), len(c.buckets))
	fmt.Fprintf(w, "hits %d, misses %d, evictions %d\n",
		c.stats.Hits, c.stats.Misses, c.stats.Evictions)
	var chained, maxChain int
	for _, head := range c.buckets {
		n := 0
		for idx := head; idx != noEntry; idx = c.entries[idx].bucketNext {
			n++
		}
		if n > 1 {
			chained++
		}
		if n > maxChain {
			maxChain = n
		}
	}
	fmt.Fprintf(w, "buckets with collisions %d, longest chain %d\n", chained, maxChain)
}

// allocIndex returns an unused entry index, evicting the LRU tail when
// none is free. The evicted value is released before returning.
func (c *StrongLRU[V]) allocIndex() uint32 {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	return c.evictTail()
}

// evictTail removes the least recently used entry and returns its
// now-free index.
func (c *StrongLRU[V]) evictTail() uint32 {
	idx := c.tail
	if idx == noEntry {
		panic("cache: eviction from empty StrongLRU")
	}
	c.unlinkBucket(idx)
	c.unlinkLRU(idx)
	c.release(idx)
	c.count--
	c.stats.Evictions++
	return idx
}

// insert links a freshly built entry at index idx as most recently
// used. If a recursive build filled the table in the meantime, the LRU
// tail is evicted first so the live count never exceeds capacity.
func (c *StrongLRU[V]) insert(h stronghash.Hash, idx uint32, v V) {
	if c.count >= uint32(len(c.entries)) {
		c.free = append(c.free, c.evictTail())
	}
	e := &c.entries[idx]
	e.hash = h
	e.value = v
	e.used = true
	b := c.bucketOf(h)
	e.bucketNext = c.buckets[b]
	c.buckets[b] = idx
	c.pushFront(idx)
	c.count++
}

// release runs the eviction hook and zeroes the slot's value.
func (c *StrongLRU[V]) release(idx uint32) {
	e := &c.entries[idx]
	if c.onEvict != nil && e.used {
		c.onEvict(idx, &e.value)
	}
	var zero V
	e.value = zero
	e.used = false
}

// pushFront links idx at the MRU end of the LRU list.
func (c *StrongLRU[V]) pushFront(idx uint32) {
	e := &c.entries[idx]
	e.prev = noEntry
	e.next = c.head
	if c.head != noEntry {
		c.entries[c.head].prev = idx
	}
	c.head = idx
	if c.tail == noEntry {
		c.tail = idx
	}
}

// unlinkLRU removes idx from the LRU list.
func (c *StrongLRU[V]) unlinkLRU(idx uint32) {
	e := &c.entries[idx]
	if e.prev != noEntry {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != noEntry {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = noEntry
	e.next = noEntry
}

// moveToFront promotes idx to the MRU end.
func (c *StrongLRU[V]) moveToFront(idx uint32) {
	if idx == c.head {
		return
	}
	c.unlinkLRU(idx)
	c.pushFront(idx)
}

// unlinkBucket removes idx from its bucket's collision chain.
func (c *StrongLRU[V]) unlinkBucket(idx uint32) {
	b := c.bucketOf(c.entries[idx].hash)
	cur := c.buckets[b]
	if cur == idx {
		c.buckets[b] = c.entries[idx].bucketNext
		c.entries[idx].bucketNext = noEntry
		return
	}
	for cur != noEntry {
		next := c.entries[cur].bucketNext
		if next == idx {
			c.entries[cur].bucketNext = c.entries[idx].bucketNext
			c.entries[idx].bucketNext = noEntry
			return
		}
		cur = next
	}
}
