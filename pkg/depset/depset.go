// Package depset provides the dependency-name sets compared by the
// analyzer and the difference between them.
package depset

import (
	"sort"
	"sync"
)

// Reader is the read side shared by Set and SyncSet.
type Reader interface {
	Has(name string) bool
	Len() int
	Sorted() []string
}

// Set is a plain set of dependency names. It is not safe for concurrent
// mutation.
type Set map[string]struct{}

// Of builds a Set from names.
func Of(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name. Empty names are ignored.
func (s Set) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SyncSet is a mutex-guarded set that many scan workers insert into.
type SyncSet struct {
	mu    sync.RWMutex
	names Set
}

// NewSyncSet creates an empty SyncSet.
func NewSyncSet() *SyncSet {
	return &SyncSet{names: make(Set)}
}

// Add inserts name (thread-safe).
func (s *SyncSet) Add(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.names.Add(name)
	s.mu.Unlock()
}

// AddAll inserts every name under a single lock acquisition.
func (s *SyncSet) AddAll(names []string) {
	if len(names) == 0 {
		return
	}
	s.mu.Lock()
	for _, n := range names {
		s.names.Add(n)
	}
	s.mu.Unlock()
}

// Has reports whether name is in the set.
func (s *SyncSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names.Has(name)
}

// Len returns the number of names.
func (s *SyncSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Sorted returns the names in lexical order.
func (s *SyncSet) Sorted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names.Sorted()
}

// Snapshot returns a copy of the current contents.
func (s *SyncSet) Snapshot() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Set, len(s.names))
	for n := range s.names {
		out[n] = struct{}{}
	}
	return out
}

// Diff returns the names in declared that are absent from used.
func Diff(declared, used Reader) Set {
	out := make(Set)
	if declared == nil {
		return out
	}
	for _, name := range declared.Sorted() {
		if used == nil || !used.Has(name) {
			out[name] = struct{}{}
		}
	}
	return out
}
