package store

import (
	"bytes"
	"sync"
	"testing"
)

func TestGetMissingKey(t *testing.T) {
	s := New()
	if _, ok := s.Get("missing"); ok {
		t.Fatalf("expected missing key to report not found")
	}
}

func TestPutThenGet(t *testing.T) {
	s := New()
	rec, accepted := s.PutIfNewer("foo", []byte("bar"), 1)
	if !accepted {
		t.Fatalf("expected first write to be accepted")
	}
	if !bytes.Equal(rec.Value, []byte("bar")) || rec.Ver != 1 {
		t.Fatalf("unexpected accepted record: %+v", rec)
	}

	got, ok := s.Get("foo")
	if !ok {
		t.Fatalf("expected key to be present after put")
	}
	if !bytes.Equal(got.Value, []byte("bar")) || got.Ver != 1 {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

func TestVersionMonotonicity(t *testing.T) {
	s := New()
	s.PutIfNewer("foo", []byte("v1"), 5)

	// Stale write (ver < stored.ver) is a no-op.
	_, accepted := s.PutIfNewer("foo", []byte("stale"), 4)
	if accepted {
		t.Fatalf("stale write should not be accepted")
	}
	got, _ := s.Get("foo")
	if !bytes.Equal(got.Value, []byte("v1")) || got.Ver != 5 {
		t.Fatalf("stale write mutated the store: %+v", got)
	}

	// Equal version accepted (first-writer-wins is a property of ordering,
	// not of the store: later same-version writes still apply since this
	// is a single-threaded sequence here).
	rec, accepted := s.PutIfNewer("foo", []byte("v2"), 5)
	if !accepted {
		t.Fatalf("write with ver == stored.ver should be accepted")
	}
	if !bytes.Equal(rec.Value, []byte("v2")) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Higher version always wins.
	s.PutIfNewer("foo", []byte("v3"), 9)
	got, _ = s.Get("foo")
	if got.Ver != 9 || !bytes.Equal(got.Value, []byte("v3")) {
		t.Fatalf("higher version should win: %+v", got)
	}
}

func TestErase(t *testing.T) {
	s := New()
	s.PutIfNewer("foo", []byte("bar"), 1)
	s.Erase("foo")
	if _, ok := s.Get("foo"); ok {
		t.Fatalf("expected key to be gone after erase")
	}

	// Erasing an absent key is a no-op, not an error.
	s.Erase("never-existed")
}

func TestExclusiveAccessorExists(t *testing.T) {
	s := New()
	acc := s.InsertOrGetExclusive("foo")
	if acc.Exists() {
		t.Fatalf("brand new key should report Exists()==false")
	}
	acc.Set(ValueRecord{Value: []byte("v"), Ver: 1})
	acc.Release()

	acc2 := s.InsertOrGetExclusive("foo")
	if !acc2.Exists() {
		t.Fatalf("previously written key should report Exists()==true")
	}
	acc2.Release()
}

func TestConcurrentDistinctKeysDoNotBlock(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			s.PutIfNewer(key, []byte{byte(i)}, uint32(i))
		}(i)
	}
	wg.Wait()
	// No assertion beyond "did not deadlock" — the race detector and a
	// timeout from the test runner are what would catch a real bug here.
}

func TestStats(t *testing.T) {
	s := New()
	s.PutIfNewer("foo", []byte("bar"), 1)
	s.Get("foo")
	s.Get("missing")
	s.Erase("foo")

	stats := s.Stats()
	if stats.Puts != 1 || stats.Gets != 2 || stats.Deletes != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestConcurrentSameKeySerializes(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.PutIfNewer("hot", []byte{byte(i)}, uint32(i))
		}(i)
	}
	wg.Wait()

	got, ok := s.Get("hot")
	if !ok {
		t.Fatalf("expected hot key to be present")
	}
	if got.Ver != n-1 {
		t.Fatalf("expected final version to be the highest written (%d), got %d", n-1, got.Ver)
	}
}
