// Package hashtable implements an open-chaining hash table with progressive
// (incremental) rehashing, so that growing the table never costs a single
// caller an O(n) pause. A Map[T] holds two generations of table: the live
// one new inserts go to, and (while migrating) the old one being drained a
// bounded number of entries at a time on every operation.
//
// The table stores a generic value T per node rather than a raw C-style
// intrusive node; this is the idiomatic Go shape of the same idea — the
// caller's type owns nothing about the table's internals, and the table
// hands back T directly on lookup instead of an offset-adjusted pointer.
package hashtable

// Node is the table's internal chain link. No Map method hands one out;
// callers only ever see the stored Value.
type Node[T any] struct {
	next  *Node[T]
	hcode uint64
	Value T
}

const (
	// DefaultMaxLoadFactor: once a table's size exceeds
	// capacity*DefaultMaxLoadFactor, a rehash starts.
	DefaultMaxLoadFactor = 8
	// DefaultRehashWork bounds both the number of node migrations and the
	// number of loop iterations (including skipped-empty-bucket
	// iterations) performed by a single bounded rehash step.
	DefaultRehashWork = 128

	initialCapacity = 4
)

type table[T any] struct {
	slots []*Node[T]
	mask  uint64
	size  int
}

func newTable[T any](capacity uint64) *table[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("hashtable: capacity must be a power of two")
	}
	return &table[T]{
		slots: make([]*Node[T], capacity),
		mask:  capacity - 1,
	}
}

func (t *table[T]) insert(n *Node[T]) {
	pos := n.hcode & t.mask
	n.next = t.slots[pos]
	t.slots[pos] = n
	t.size++
}

// ref holds the address of whichever pointer currently references the
// matching node, so detach is O(1) regardless of chain position.
type ref[T any] struct {
	tbl    *table[T]
	bucket uint64
	prev   *Node[T]
}

func (r *ref[T]) node() *Node[T] {
	if r.prev != nil {
		return r.prev.next
	}
	return r.tbl.slots[r.bucket]
}

func (r *ref[T]) detach() *Node[T] {
	n := r.node()
	if r.prev != nil {
		r.prev.next = n.next
	} else {
		r.tbl.slots[r.bucket] = n.next
	}
	n.next = nil
	r.tbl.size--
	return n
}

func (t *table[T]) lookup(hcode uint64, eq func(T) bool) *ref[T] {
	bucket := hcode & t.mask
	var prev *Node[T]
	for cur := t.slots[bucket]; cur != nil; cur = cur.next {
		if cur.hcode == hcode && eq(cur.Value) {
			return &ref[T]{tbl: t, bucket: bucket, prev: prev}
		}
		prev = cur
	}
	return nil
}

// Map is the progressively-rehashing hash map: a pair of tables plus a
// migration cursor into the older one.
type Map[T any] struct {
	primary, secondary *table[T]
	cursor             uint64

	maxLoadFactor int
	rehashWork    int
}

// Option configures a Map at construction.
type Option func(*mapConfig)

type mapConfig struct {
	maxLoadFactor int
	rehashWork    int
}

// WithMaxLoadFactor overrides DefaultMaxLoadFactor.
func WithMaxLoadFactor(f int) Option {
	return func(c *mapConfig) { c.maxLoadFactor = f }
}

// WithRehashWork overrides DefaultRehashWork.
func WithRehashWork(n int) Option {
	return func(c *mapConfig) { c.rehashWork = n }
}

// NewMap creates an empty Map. The first table is allocated lazily, on
// the first Insert.
func NewMap[T any](opts ...Option) *Map[T] {
	cfg := mapConfig{
		maxLoadFactor: DefaultMaxLoadFactor,
		rehashWork:    DefaultRehashWork,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Map[T]{
		maxLoadFactor: cfg.maxLoadFactor,
		rehashWork:    cfg.rehashWork,
	}
}

// Len returns primary.size + secondary.size, the union's logical size.
func (m *Map[T]) Len() int {
	n := 0
	if m.primary != nil {
		n += m.primary.size
	}
	if m.secondary != nil {
		n += m.secondary.size
	}
	return n
}

// Insert adds a new node under hcode. Duplicate keys are the caller's
// responsibility to avoid (via a prior Lookup); the table itself permits
// them.
func (m *Map[T]) Insert(hcode uint64, value T) {
	if m.primary == nil {
		m.primary = newTable[T](initialCapacity)
	}
	m.primary.insert(&Node[T]{hcode: hcode, Value: value})

	if m.secondary == nil && m.primary.size > (int(m.primary.mask+1))*m.maxLoadFactor {
		m.startRehashing()
	}
	m.rehashStep()
}

func (m *Map[T]) startRehashing() {
	m.secondary = m.primary
	m.primary = newTable[T](2 * (m.secondary.mask + 1))
	m.cursor = 0
}

// rehashStep migrates at most rehashWork nodes, capping total loop
// iterations (not just successful migrations) at rehashWork too — an
// iteration that only skips an empty bucket still counts against the
// budget, which is what keeps a wholly-empty secondary table from costing
// an unbounded scan in a single call.
func (m *Map[T]) rehashStep() {
	if m.secondary == nil {
		return
	}
	for iterations := 0; iterations < m.rehashWork && m.secondary.size > 0; iterations++ {
		if m.cursor >= uint64(len(m.secondary.slots)) {
			break
		}
		if m.secondary.slots[m.cursor] == nil {
			m.cursor++
			continue
		}
		r := &ref[T]{tbl: m.secondary, bucket: m.cursor}
		moved := r.detach()
		moved.next = nil
		m.primary.insert(moved)
	}
	if m.secondary.size == 0 {
		m.secondary = nil
		m.cursor = 0
	}
}

// Lookup performs a bounded rehash step, then searches primary then
// secondary, returning the first hit.
func (m *Map[T]) Lookup(hcode uint64, eq func(T) bool) (T, bool) {
	m.rehashStep()
	if m.primary != nil {
		if r := m.primary.lookup(hcode, eq); r != nil {
			return r.node().Value, true
		}
	}
	if m.secondary != nil {
		if r := m.secondary.lookup(hcode, eq); r != nil {
			return r.node().Value, true
		}
	}
	var zero T
	return zero, false
}

// Pop performs a bounded rehash step, then detaches and returns the
// matching node's value from whichever table holds it.
func (m *Map[T]) Pop(hcode uint64, eq func(T) bool) (T, bool) {
	m.rehashStep()
	if m.primary != nil {
		if r := m.primary.lookup(hcode, eq); r != nil {
			return r.detach().Value, true
		}
	}
	if m.secondary != nil {
		if r := m.secondary.lookup(hcode, eq); r != nil {
			return r.detach().Value, true
		}
	}
	var zero T
	return zero, false
}

// Each calls f for every live value in an unspecified order, stopping early
// if f returns false. It does not perform rehash work itself, so it is
// safe to call for bulk enumeration (e.g. KEYS) without perturbing the
// incremental-rehash latency bound.
func (m *Map[T]) Each(f func(T) bool) {
	for _, t := range [2]*table[T]{m.primary, m.secondary} {
		if t == nil {
			continue
		}
		for _, head := range t.slots {
			for n := head; n != nil; n = n.next {
				if !f(n.Value) {
					return
				}
			}
		}
	}
}
