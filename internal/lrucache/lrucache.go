// Package lrucache backs transport/udp.Listener's per-conv endpoint table: a
// fixed-size ring of the most recently seen (conv, remote address string)
// pairs, so a listener can retarget output at a peer that rebinds to a new
// UDP source address without tearing down its arq.Session.
package lrucache

type node[K, V comparable] struct {
	k K
	v V
}

// Cache holds up to maxSize entries; once full, Push evicts the
// least-recently-written entry to make room for the newest one.
type Cache[K, V comparable] struct {
	nodes []node[K, V]
	index uint // points to the last written entry
}

// New allocates a Cache holding at most maxSize entries.
func New[K, V comparable](maxSize int) Cache[K, V] {
	if maxSize <= 0 {
		panic("lrucache max size must be > 0")
	}
	return Cache[K, V]{
		nodes: make([]node[K, V], 0, maxSize),
	}
}

// Get looks up the most recently written value for k, scanning backwards
// from the last write so a conv that rebinds repeatedly still resolves to
// its newest address first.
func (c *Cache[K, V]) Get(k K) (v V, ok bool) {
	// lookup starting from index and then backwards
	i := c.index
	for range len(c.nodes) {
		n := &c.nodes[i]
		if n.k == k {
			return n.v, true
		}
		if i == 0 {
			i = uint(len(c.nodes))
		}
		i--
	}
	return v, ok
}

// Push records the current address for k, evicting the oldest entry once
// the cache is at capacity.
func (c *Cache[K, V]) Push(k K, v V) {
	// write the entry immediately after the one pointed by index (with wrapping)
	if len(c.nodes) < cap(c.nodes) {
		c.nodes = append(c.nodes, node[K, V]{k, v})
		c.index = uint(len(c.nodes) - 1)
	} else {
		c.index++
		if c.index >= uint(len(c.nodes)) {
			c.index = 0
		}
		c.nodes[c.index] = node[K, V]{k, v}
	}
}
