// Package cache implements the resolver's answer cache: a single map keyed
// by a SipHash-2-4 digest of (name, type, zone), ordered for expiry by a
// min-heap over deadlines, and bounded by total byte usage rather than
// entry count.
package cache

import (
	"container/heap"
	"encoding/binary"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"

	"github.com/dnsscience/resolvd/internal/dnsmsg"
	"github.com/dnsscience/resolvd/internal/random"
)

const (
	// defaultMaxBytes bounds total cache memory; evictions fire once
	// usage would exceed this budget.
	defaultMaxBytes = 64 * 1024 * 1024

	// perEntryOverhead approximates map/heap bookkeeping cost per entry,
	// folded into the byte budget so a cache of many tiny answers can't
	// quietly balloon past the intended memory ceiling.
	perEntryOverhead = 64

	cleanupInterval = 60 * time.Second
)

// newCacheKeySecret generates a process-lifetime random key, so cache-bucket
// placement cannot be predicted or steered by an off-path attacker the way
// an unkeyed hash (FNV, CRC) could be.
func newCacheKeySecret() [16]byte {
	var secret [16]byte
	binary.BigEndian.PutUint64(secret[0:8], random.Uint64())
	binary.BigEndian.PutUint64(secret[8:16], random.Uint64())
	return secret
}

// Key identifies a cached answer by (name, type, zone of origin). Using the
// zone an answer was obtained under, not just the query name, keeps
// same-name answers learned from different delegations from colliding.
type Key struct {
	Name dnsmsg.Name
	Type dnsmsg.Type
	Zone dnsmsg.Name
}

// Hash computes the keyed SipHash-2-4 digest used as the map key.
func (k Key) Hash(secret [16]byte) uint64 {
	var buf strings.Builder
	buf.WriteString(strings.ToLower(string(k.Name)))
	buf.WriteByte(0)
	buf.WriteString(strings.ToLower(string(k.Zone)))
	buf.WriteByte(0)
	buf.WriteByte(byte(k.Type >> 8))
	buf.WriteByte(byte(k.Type))

	h := siphash.New(secret[:])
	h.Write([]byte(buf.String()))
	return h.Sum64()
}

// Entry is a cached, already wire-encoded DNS answer.
type Entry struct {
	Key   Key
	Wire  []byte // full encoded message, AD bit patched per-read
	OrigTTL uint32
	StoredAt time.Time
	Deadline time.Time // zero value means "never expires" (eternal entries, e.g. root hints or trust-anchor data)

	DNSSECValidated bool
	DNSSECBogus     bool

	Hits atomic.Uint64

	ttlOffsets []int // byte offsets of each RR's TTL field within Wire
	heapIndex  int
	hash       uint64
}

func (e *Entry) usage() int {
	return len(e.Wire) + perEntryOverhead
}

// remainingTTL returns the TTL to present to a client right now: the
// original TTL decayed by elapsed time, floored at 1 second so a
// still-valid-but-old entry is never advertised as already expired
// (RFC 1035 §7.3's "never cache with a zero or negative TTL" guidance,
// applied on the read path instead of the write path).
func (e *Entry) remainingTTL(now time.Time) uint32 {
	if e.Deadline.IsZero() {
		return e.OrigTTL
	}
	remaining := e.Deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	secs := uint32(remaining / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (e *Entry) expired(now time.Time) bool {
	return !e.Deadline.IsZero() && !now.Before(e.Deadline)
}

// entryHeap is a min-heap over Deadline, the eviction order spec.md's byte
// budget wants: drop what's closest to expiring anyway before anything
// still fresh.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	di, dj := h[i].Deadline, h[j].Deadline
	if di.IsZero() {
		return false
	}
	if dj.IsZero() {
		return true
	}
	return di.Before(dj)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

// Config configures the Cache.
type Config struct {
	MaxBytes int
}

// Cache is the resolver's single answer cache.
type Cache struct {
	mu       sync.Mutex
	entries  map[uint64]*Entry
	order    entryHeap
	maxBytes int
	curBytes int
	secret   [16]byte

	hits, misses, evictions, expirations atomic.Uint64

	stopCleanup chan struct{}
	cleanupDone sync.WaitGroup
}

// New creates a Cache.
func New(cfg Config) *Cache {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	c := &Cache{
		entries:     make(map[uint64]*Entry),
		maxBytes:    cfg.MaxBytes,
		secret:      newCacheKeySecret(),
		stopCleanup: make(chan struct{}),
	}
	c.cleanupDone.Add(1)
	go c.cleanupLoop()
	return c
}

// Get looks up key, returning a copy of the wire bytes with the AD bit set
// per wantDNSSEC and the TTL decayed to the remaining lifetime. The caller
// owns the returned slice.
func (c *Cache) Get(key Key, wantDNSSEC bool) ([]byte, *Entry, bool) {
	hash := key.Hash(c.secret)
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[hash]
	if ok && e.expired(now) {
		c.removeLocked(e)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, nil, false
	}

	c.hits.Add(1)
	e.Hits.Add(1)

	wire := make([]byte, len(e.Wire))
	copy(wire, e.Wire)

	ad := wantDNSSEC && e.DNSSECValidated && !e.DNSSECBogus
	_ = dnsmsg.PatchAD(wire, ad)

	ttl := e.remainingTTL(now)
	patchTTLs(wire, e.ttlOffsets, ttl)

	return wire, e, true
}

// Set stores wire (an already-encoded message) under key with the given
// TTL. ttl == 0 with !eternal means a negative-cache entry that expires
// essentially immediately; eternal entries (root hints, trust anchors
// cached by policy) pass eternal=true and are never evicted by deadline.
func (c *Cache) Set(key Key, wire []byte, ttl uint32, eternal bool, dnssecValidated, dnssecBogus bool) {
	hash := key.Hash(c.secret)

	offsets, _ := dnsmsg.TTLOffsets(wire)

	e := &Entry{
		Key:             key,
		Wire:            append([]byte{}, wire...),
		OrigTTL:         ttl,
		StoredAt:        time.Now(),
		DNSSECValidated: dnssecValidated,
		DNSSECBogus:     dnssecBogus,
		ttlOffsets:      offsets,
		hash:            hash,
	}
	if !eternal {
		e.Deadline = e.StoredAt.Add(time.Duration(ttl) * time.Second)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[hash]; ok {
		if old.Deadline.IsZero() {
			// old is eternal (root hints, trust anchors pinned by policy):
			// an ordinary TTL'd insert at the same key must not evict it.
			return
		}
		c.removeLocked(old)
	}

	for c.curBytes+e.usage() > c.maxBytes && len(c.order) > 0 {
		c.evictOldestLocked()
	}

	c.entries[hash] = e
	heap.Push(&c.order, e)
	c.curBytes += e.usage()
}

// Delete removes a key from the cache.
func (c *Cache) Delete(key Key) {
	hash := key.Hash(c.secret)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[hash]; ok {
		c.removeLocked(e)
	}
}

func (c *Cache) removeLocked(e *Entry) {
	delete(c.entries, e.hash)
	if e.heapIndex >= 0 && e.heapIndex < len(c.order) && c.order[e.heapIndex] == e {
		heap.Remove(&c.order, e.heapIndex)
	}
	c.curBytes -= e.usage()
}

func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	e := heap.Pop(&c.order).(*Entry)
	delete(c.entries, e.hash)
	c.curBytes -= e.usage()
	c.evictions.Add(1)
}

// Flush clears the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*Entry)
	c.order = nil
	c.curBytes = 0
}

// Stats reports cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
	BytesUsed   int
	HitRate     float64
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	size, bytesUsed := len(c.entries), c.curBytes
	c.mu.Unlock()

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        size,
		BytesUsed:   bytesUsed,
		HitRate:     hitRate,
	}
}

// Close stops the background cleanup goroutine.
func (c *Cache) Close() {
	close(c.stopCleanup)
	c.cleanupDone.Wait()
}

func (c *Cache) cleanupLoop() {
	defer c.cleanupDone.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// performCleanup pops expired entries off the front of the deadline heap;
// because the heap is ordered by deadline, it can stop at the first entry
// that hasn't expired yet instead of scanning everything.
func (c *Cache) performCleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.order) > 0 {
		e := c.order[0]
		if e.Deadline.IsZero() || !e.expired(now) {
			break
		}
		heap.Pop(&c.order)
		delete(c.entries, e.hash)
		c.curBytes -= e.usage()
		c.expirations.Add(1)
	}
}

// patchTTLs rewrites the TTL field of every RR at the given byte offsets to
// newTTL, directly on the already-encoded wire bytes.
func patchTTLs(wire []byte, offsets []int, newTTL uint32) {
	for _, off := range offsets {
		if off+4 > len(wire) {
			continue
		}
		wire[off] = byte(newTTL >> 24)
		wire[off+1] = byte(newTTL >> 16)
		wire[off+2] = byte(newTTL >> 8)
		wire[off+3] = byte(newTTL)
	}
}
