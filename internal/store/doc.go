// Package store implements Pegasus-KV's in-memory versioned store (spec
// §4.5): a concurrent mapping from key to {value, ver} with single-key
// granularity locking. Replacement is gated purely by version — the store
// itself never reasons about clients, chains, or racks, only about
// accepting or rejecting one incoming (value, ver) pair against what is
// already stored for that key (spec §3: "replaces only on incoming.ver >=
// stored.ver").
//
// Concurrency model: a top-level mutex protects only the key->entry map
// itself (creation and erasure); each entry then has its own RWMutex, so
// readers of key A never block writers of key B, and two writers of the
// same key serialize against each other. Accessors (SharedAccessor,
// ExclusiveAccessor) are scoped guards — the caller must call Release on
// every exit path, mirroring spec §4.5's "Accessors must be releasable
// before another operation is called on the same thread" and the RAII-style
// pattern called out in spec §9's design notes.
package store
