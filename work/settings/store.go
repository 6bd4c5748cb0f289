package settings

import (
	"streamres/work/types"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store is the process-wide holder of the last-known-good settings. Every
// request that carries a decodable config segment merges its keys in; keys a
// request does not mention keep whatever value an earlier request (or
// nothing) set. Handlers work from per-request snapshots so a merge landing
// mid-request never changes behavior halfway through.
//
// The store is shared by all in-flight requests; the backing xsync map
// serializes concurrent merges per key without blocking readers.
type Store struct {
	values *xsync.MapOf[string, string]
}

// NewStore creates an empty settings store.
func NewStore() *Store {
	return &Store{
		values: xsync.NewMapOf[string, string](),
	}
}

// Merge applies a partial settings map with shallow last-write-wins
// semantics. Merging is additive: absent keys are untouched, present keys
// are overwritten. A nil or empty partial is a no-op.
func (s *Store) Merge(partial types.Settings) {
	for key, value := range partial {
		s.values.Store(key, value)
	}
}

// Snapshot returns a copy of the current settings for use within a single
// request. The copy is independent of the store; later merges do not show
// through, and mutating the copy does not write back.
func (s *Store) Snapshot() types.Settings {
	snapshot := make(types.Settings, s.values.Size())
	s.values.Range(func(key, value string) bool {
		snapshot[key] = value
		return true
	})
	return snapshot
}

// Get reads one key directly from the shared store. Prefer Snapshot inside
// request handling; Get exists for status reporting.
func (s *Store) Get(key string) (string, bool) {
	return s.values.Load(key)
}

// Len returns the number of keys currently held.
func (s *Store) Len() int {
	return s.values.Size()
}
