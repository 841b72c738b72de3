// Package kvstore is the derived key-value state machine a replica applies
// committed log entries into (§3's `values`). It is never written to
// directly by a client; only pkg/raft's commit path calls Apply.
package kvstore

import (
	"sync"

	"github.com/google/btree"
)

type item struct {
	key, value string
}

func (i item) Less(than btree.Item) bool {
	return i.key < than.(item).key
}

// Store holds the key -> value mapping derived from log[0..=commit_index].
// It is backed by a B-tree rather than a bare map so the debug API's
// /log and supplemental range listing can walk keys in sorted order
// without a separate sort pass on every request.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func New() *Store {
	return &Store{tree: btree.New(32)}
}

// Apply commits a single key/value pair to the state machine. It is the
// only mutator: entries are applied strictly in commit order by the
// consensus core.
func (s *Store) Apply(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{key: key, value: value})
}

// Get returns the current value for key, or "" if absent — matching the
// leader GET contract in §4.4 ("values[key] or \"\"").
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := s.tree.Get(item{key: key})
	if found == nil {
		return ""
	}
	return found.(item).value
}

// Len reports the number of distinct keys currently committed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Range returns every key in [start, end) in sorted order, or every key if
// both bounds are empty. It backs the read-only debug listing only; it is
// not part of any client RPC or the replication path.
func (s *Store) Range(start, end string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	visit := func(i btree.Item) bool {
		k := i.(item).key
		if end != "" && k >= end {
			return false
		}
		keys = append(keys, k)
		return true
	}
	if start == "" {
		s.tree.Ascend(visit)
	} else {
		s.tree.AscendGreaterOrEqual(item{key: start}, visit)
	}
	return keys
}
