package store

import (
	"sync"
	"sync/atomic"
)

// OperationStats tracks lifetime operation counts for a Store, the same
// lock-free accounting pattern the teacher's shard package uses for its own
// per-shard counters.
type OperationStats struct {
	Gets    uint64
	Puts    uint64
	Deletes uint64
}

// ValueRecord is one stored value and its version (spec §3).
type ValueRecord struct {
	Value []byte
	Ver   uint32
}

// entry is one key's slot: its own lock plus the record it currently holds.
// present distinguishes "never written" from "written with ver=0", which
// ValueRecord's zero value alone cannot.
type entry struct {
	mu      sync.RWMutex
	record  ValueRecord
	present bool
}

// Store is the concurrent key->ValueRecord mapping required by spec §4.5.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   OperationStats
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Stats returns a snapshot of the store's lifetime operation counts.
func (s *Store) Stats() OperationStats {
	return OperationStats{
		Gets:    atomic.LoadUint64(&s.stats.Gets),
		Puts:    atomic.LoadUint64(&s.stats.Puts),
		Deletes: atomic.LoadUint64(&s.stats.Deletes),
	}
}

// SharedAccessor is a read-only guard returned by FindShared. Release must
// be called exactly once, on every exit path, before the caller performs
// another Store operation against the same key.
type SharedAccessor struct {
	e *entry
}

// Value returns the record held under this guard.
func (a *SharedAccessor) Value() ValueRecord {
	return a.e.record
}

// Release drops the read lock.
func (a *SharedAccessor) Release() {
	a.e.mu.RUnlock()
}

// ExclusiveAccessor is a read-modify-write guard returned by
// InsertOrGetExclusive.
type ExclusiveAccessor struct {
	e *entry
}

// Exists reports whether the key already held a value before this
// accessor was taken (as opposed to having just been created empty).
func (a *ExclusiveAccessor) Exists() bool {
	return a.e.present
}

// Value returns the record currently held under this guard. Its contents
// are meaningless when Exists reports false.
func (a *ExclusiveAccessor) Value() ValueRecord {
	return a.e.record
}

// Set replaces the record held under this guard and marks the key present.
func (a *ExclusiveAccessor) Set(v ValueRecord) {
	a.e.record = v
	a.e.present = true
}

// Release drops the write lock.
func (a *ExclusiveAccessor) Release() {
	a.e.mu.Unlock()
}

// FindShared returns a read guard for key, or ok=false if the key has never
// been written (or was erased). The caller must call Release on the
// returned accessor exactly once.
func (s *Store) FindShared(key string) (acc *SharedAccessor, ok bool) {
	s.mu.Lock()
	e, exists := s.entries[key]
	s.mu.Unlock()
	if !exists {
		return nil, false
	}

	e.mu.RLock()
	if !e.present {
		e.mu.RUnlock()
		return nil, false
	}
	return &SharedAccessor{e: e}, true
}

// InsertOrGetExclusive returns a write guard for key, creating an empty
// slot for it if this is the first reference. The caller must call Release
// on the returned accessor exactly once.
//
// A key erased concurrently with an in-flight exclusive accessor is not
// retroactively resurrected: the accessor still completes its Set/Release
// against the entry it holds, but that entry may no longer be reachable
// from the map by the time it releases. This is the same tradeoff every
// lock-striped map makes between erase and insert racing on the same key;
// spec §5 already accepts "no global order across keys" for this store.
func (s *Store) InsertOrGetExclusive(key string) *ExclusiveAccessor {
	s.mu.Lock()
	e, exists := s.entries[key]
	if !exists {
		e = &entry{}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return &ExclusiveAccessor{e: e}
}

// Erase removes key from the store. No error if the key doesn't exist.
func (s *Store) Erase(key string) {
	atomic.AddUint64(&s.stats.Deletes, 1)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Get is a convenience wrapper around FindShared for callers that just want
// a snapshot of the record, not a held lock.
func (s *Store) Get(key string) (ValueRecord, bool) {
	atomic.AddUint64(&s.stats.Gets, 1)
	acc, ok := s.FindShared(key)
	if !ok {
		return ValueRecord{}, false
	}
	defer acc.Release()
	return acc.Value(), true
}

// PutIfNewer applies the monotone-versioning rule from spec §3 ("replaces
// only on incoming.ver >= stored.ver") to a single key: it stores
// (value, ver) iff the key is unwritten or ver >= the currently stored
// version, and reports whether the incoming write was the one accepted.
func (s *Store) PutIfNewer(key string, value []byte, ver uint32) (accepted ValueRecord, wasAccepted bool) {
	atomic.AddUint64(&s.stats.Puts, 1)
	acc := s.InsertOrGetExclusive(key)
	defer acc.Release()

	if acc.Exists() && ver < acc.Value().Ver {
		return acc.Value(), false
	}

	rec := ValueRecord{Value: value, Ver: ver}
	acc.Set(rec)
	return rec, true
}

// Len returns the number of live keys. Used only for diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
