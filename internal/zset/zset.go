// Package zset implements a sorted set: every member is simultaneously
// reachable by name through a hash index and in (score, name) order
// through an AVL tree, so name lookup stays O(1) while range and rank
// queries stay O(log n).
//
// This is the Go re-expression of NanoRedis's zset.{h,cpp}: the same two
// indexes over the same shared elements, built on this module's own
// hashtable and avltree packages instead of an intrusive C struct.
package zset

import (
	"github.com/minikv/minikv/internal/avltree"
	"github.com/minikv/minikv/internal/hashtable"
)

// Member is one element of a sorted set: a name and its score.
type Member struct {
	Name  string
	Score float64
}

// node is the element type shared by both indexes. treeNode is kept in
// sync by the tree's OnReplace hook whenever deletion moves a Value to a
// different Node (see avltree.Tree).
type node struct {
	Member
	hcode    uint64
	treeNode *avltree.Node[*node]
}

// less orders nodes by (score, name), breaking ties on name bytes.
func less(a, b *node) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Name < b.Name
}

// Set is a sorted set: a pair of indexes over shared elements.
type Set struct {
	byName *hashtable.Map[*node]
	byRank *avltree.Tree[*node]
}

// New creates an empty sorted set.
func New() *Set {
	tree := avltree.New(less)
	s := &Set{
		byName: hashtable.NewMap[*node](),
		byRank: tree,
	}
	tree.OnReplace(func(v *node, n *avltree.Node[*node]) {
		v.treeNode = n
	})
	return s
}

func nameEq(name string) func(*node) bool {
	return func(n *node) bool { return n.Name == name }
}

// Len returns the number of members.
func (s *Set) Len() int {
	return s.byName.Len()
}

// Lookup returns the member named name, if present.
func (s *Set) Lookup(name string) (Member, bool) {
	n, ok := s.byName.Lookup(hashtable.HashBytes([]byte(name)), nameEq(name))
	if !ok {
		return Member{}, false
	}
	return n.Member, true
}

// Add inserts name with score, or updates its score if already present.
// It returns true if a new member was created, false if an existing one
// was updated.
func (s *Set) Add(name string, score float64) bool {
	hcode := hashtable.HashBytes([]byte(name))
	if n, ok := s.byName.Lookup(hcode, nameEq(name)); ok {
		s.update(n, score)
		return false
	}
	n := &node{Member: Member{Name: name, Score: score}, hcode: hcode}
	s.byName.Insert(hcode, n)
	n.treeNode = s.byRank.Insert(n)
	return true
}

// update repositions n in the tree if its score changed.
func (s *Set) update(n *node, score float64) {
	if n.Score == score {
		return
	}
	s.byRank.Delete(n.treeNode)
	n.Score = score
	n.treeNode = s.byRank.Insert(n)
}

// Pop removes and returns the member named name, if present.
func (s *Set) Pop(name string) (Member, bool) {
	n, ok := s.byName.Pop(hashtable.HashBytes([]byte(name)), nameEq(name))
	if !ok {
		return Member{}, false
	}
	s.byRank.Delete(n.treeNode)
	return n.Member, true
}

// Rank returns the 0-based rank of name in ascending (score, name) order.
func (s *Set) Rank(name string) (int, bool) {
	n, ok := s.byName.Lookup(hashtable.HashBytes([]byte(name)), nameEq(name))
	if !ok {
		return 0, false
	}
	return s.byRank.Rank(n.treeNode), true
}

// At returns the member at 0-based in-order rank k.
func (s *Set) At(k int) (Member, bool) {
	n := s.byRank.At(k)
	if n == nil {
		return Member{}, false
	}
	return n.Value.Member, true
}

// Range calls f for every member whose rank is in [start, stop], ascending,
// stopping early if f returns false.
func (s *Set) Range(start, stop int, f func(Member) bool) {
	if start < 0 || stop < start {
		return
	}
	n := s.Len()
	if stop >= n {
		stop = n - 1
	}
	for k := start; k <= stop; k++ {
		m, ok := s.At(k)
		if !ok {
			return
		}
		if !f(m) {
			return
		}
	}
}
