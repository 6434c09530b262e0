// Package keyspace holds the server's global keyspace: a single hash map
// from key to a polymorphic Entry, exclusively owned and mutated by the
// reactor goroutine. No locking is used anywhere in this package, since
// the reactor never touches a Store from more than one goroutine.
package keyspace

import (
	"github.com/minikv/minikv/internal/hashtable"
	"github.com/minikv/minikv/internal/zset"
)

// Kind tags the dynamic type of an Entry's Value, used both for wire
// encoding and for the TYPE command.
type Kind byte

const (
	KindString Kind = iota
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is the polymorphic payload an Entry carries. Adding a new value
// type is a new implementation of this interface plus new command
// handlers — no changes to Store itself.
type Value interface {
	Kind() Kind
}

// StringValue is the plain string value type.
type StringValue string

// Kind implements Value.
func (StringValue) Kind() Kind { return KindString }

// ZSetValue wraps a sorted set as a keyspace value.
type ZSetValue struct {
	*zset.Set
}

// Kind implements Value.
func (ZSetValue) Kind() Kind { return KindZSet }

// Entry is one keyspace record: a key and its current value.
type Entry struct {
	Key   string
	Value Value
}

func keyEq(key string) func(*Entry) bool {
	return func(e *Entry) bool { return e.Key == key }
}

// Store is the global keyspace (G): one progressively-rehashing hash map
// of Entry, keyed by Key.
type Store struct {
	entries *hashtable.Map[*Entry]
}

// New creates an empty Store. opts configure the underlying hash map (see
// hashtable.Option), letting cmd/minikv expose -rehash-work for testing.
func New(opts ...hashtable.Option) *Store {
	return &Store{entries: hashtable.NewMap[*Entry](opts...)}
}

// Get returns the value stored under key, if any.
func (s *Store) Get(key string) (Value, bool) {
	e, ok := s.entries.Lookup(hashtable.HashBytes([]byte(key)), keyEq(key))
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Set stores v under key, replacing any previous value regardless of type.
func (s *Store) Set(key string, v Value) {
	hcode := hashtable.HashBytes([]byte(key))
	if e, ok := s.entries.Lookup(hcode, keyEq(key)); ok {
		e.Value = v
		return
	}
	s.entries.Insert(hcode, &Entry{Key: key, Value: v})
}

// Del removes key, reporting whether it was present.
func (s *Store) Del(key string) bool {
	_, ok := s.entries.Pop(hashtable.HashBytes([]byte(key)), keyEq(key))
	return ok
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) bool {
	_, ok := s.entries.Lookup(hashtable.HashBytes([]byte(key)), keyEq(key))
	return ok
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.entries.Len()
}

// Keys returns every live key, in unspecified order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.Len())
	s.entries.Each(func(e *Entry) bool {
		keys = append(keys, e.Key)
		return true
	})
	return keys
}

// GetOrCreateZSet returns the sorted set stored under key, creating an
// empty one if key is absent. It returns ok=false if key exists but holds
// a non-zset value.
func (s *Store) GetOrCreateZSet(key string) (*zset.Set, bool) {
	hcode := hashtable.HashBytes([]byte(key))
	if e, ok := s.entries.Lookup(hcode, keyEq(key)); ok {
		z, ok := e.Value.(ZSetValue)
		if !ok {
			return nil, false
		}
		return z.Set, true
	}
	z := zset.New()
	s.entries.Insert(hcode, &Entry{Key: key, Value: ZSetValue{z}})
	return z, true
}
