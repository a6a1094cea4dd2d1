package crawler

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Set is a concurrent insert-if-absent string set. Add is linearizable: when
// several goroutines race to add the same key exactly one of them observes
// true.
type Set struct {
	seen sync.Map
	size atomic.Int64
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Add stores key if it has not been seen before and reports whether it did.
// The empty key is never stored.
func (s *Set) Add(key string) bool {
	if key == "" {
		return false
	}
	_, loaded := s.seen.LoadOrStore(key, struct{}{})
	if !loaded {
		s.size.Add(1)
	}
	return !loaded
}

// Contains reports whether key has been added.
func (s *Set) Contains(key string) bool {
	_, ok := s.seen.Load(key)
	return ok
}

// Len returns the number of stored keys.
func (s *Set) Len() int {
	return int(s.size.Load())
}

// Keys returns the stored keys in sorted order.
func (s *Set) Keys() []string {
	out := make([]string, 0, s.Len())
	s.seen.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}
