package serverapp

import (
	"sort"
	"sync"
	"time"

	"github.com/NUS-Systems-Lab/pegasus/internal/codec"
)

// Hot-key tunables (spec §3, §6).
const (
	KRSampleRate = 100
	HKThreshold  = 32
	HKEpoch      = 1 * time.Second
	MaxHKSize    = 32
)

// workerTable is one transport worker's private hot-key bookkeeping (spec
// §4.3, §5: "Hot-key per-worker tables are single-writer... single-reader").
// Only the owning worker ever calls Sample; only the reporter goroutine
// ever calls mergeAndClear. The mutex serializes the two; Sample takes it
// on every call.
type workerTable struct {
	mu           sync.Mutex
	requestCount uint64
	keyCount     map[uint32]uint32
	hkReport     map[uint32]uint32
}

func newWorkerTable() *workerTable {
	return &workerTable{
		keyCount: make(map[uint32]uint32),
		hkReport: make(map[uint32]uint32),
	}
}

// HotKeyTracker is the array-of-per-worker-tables design spec §9 calls for
// ("represent as an array indexed by worker id of concurrent maps").
type HotKeyTracker struct {
	workers []*workerTable
}

// NewHotKeyTracker allocates one table per transport worker.
func NewHotKeyTracker(numWorkers int) *HotKeyTracker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	t := &HotKeyTracker{workers: make([]*workerTable, numWorkers)}
	for i := range t.workers {
		t.workers[i] = newWorkerTable()
	}
	return t
}

// Sample records one request's key on workerID's table (spec §4.3, step 4):
// every KRSampleRate-th request updates the key's count, and once that
// count reaches HKThreshold the key is copied into the worker's report
// table.
func (t *HotKeyTracker) Sample(workerID int, keyHash uint32) {
	w := t.workers[workerID%len(t.workers)]
	w.mu.Lock()
	defer w.mu.Unlock()

	w.requestCount++
	if w.requestCount%KRSampleRate != 0 {
		return
	}
	w.keyCount[keyHash]++
	if w.keyCount[keyHash] >= HKThreshold {
		w.hkReport[keyHash] = w.keyCount[keyHash]
	}
}

// mergeAndClear merges every worker's report table into one keyhash->count
// map and clears all per-worker state (spec §4.3, reporting loop steps 1-2).
func (t *HotKeyTracker) mergeAndClear() map[uint32]uint32 {
	merged := make(map[uint32]uint32)
	for _, w := range t.workers {
		w.mu.Lock()
		for k, v := range w.hkReport {
			merged[k] += v
		}
		w.keyCount = make(map[uint32]uint32)
		w.hkReport = make(map[uint32]uint32)
		w.requestCount = 0
		w.mu.Unlock()
	}
	return merged
}

// buildReport turns a merged keyhash->count map into the top MaxHKSize
// entries in descending count order (spec §4.3 step 3, §8 "Hot-key
// reporter bound").
func buildReport(merged map[uint32]uint32) []codec.HotKeyEntry {
	entries := make([]codec.HotKeyEntry, 0, len(merged))
	for k, v := range merged {
		load := v
		if load > 0xFFFF {
			load = 0xFFFF
		}
		entries = append(entries, codec.HotKeyEntry{KeyHash: k, Load: uint16(load)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Load != entries[j].Load {
			return entries[i].Load > entries[j].Load
		}
		return entries[i].KeyHash < entries[j].KeyHash
	})
	if len(entries) > MaxHKSize {
		entries = entries[:MaxHKSize]
	}
	return entries
}
