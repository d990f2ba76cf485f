package cache

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func newTestLRU(t *testing.T) *LRU {
	t.Helper()
	c, err := NewLRU(10, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewLRU failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestLRU_SetAndGet(t *testing.T) {
	c := newTestLRU(t)

	blob := []byte("gzip-compressed blob bytes")
	c.Set("ns/config#gz", blob, 0)

	got, found := c.Get("ns/config#gz")
	if !found {
		t.Fatal("Expected to find cached blob")
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("Expected %q, got %q", blob, got)
	}
}

func TestLRU_Miss(t *testing.T) {
	c := newTestLRU(t)
	if _, found := c.Get("ns/absent"); found {
		t.Error("Expected miss for key never stored")
	}
}

func TestLRU_DefensiveCopies(t *testing.T) {
	c := newTestLRU(t)

	src := []byte("original")
	c.Set("ns/k", src, 0)
	src[0] = 'X'

	got, found := c.Get("ns/k")
	if !found {
		t.Fatal("Expected to find cached blob")
	}
	if !bytes.Equal(got, []byte("original")) {
		t.Error("Cached value aliased the caller's slice on Set")
	}

	got[0] = 'Y'
	again, _ := c.Get("ns/k")
	if !bytes.Equal(again, []byte("original")) {
		t.Error("Cached value aliased the slice returned by Get")
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	c := newTestLRU(t)

	c.Set("ns/short", []byte("v"), 50*time.Millisecond)
	if _, found := c.Get("ns/short"); !found {
		t.Fatal("Expected entry before its TTL")
	}

	time.Sleep(100 * time.Millisecond)
	if _, found := c.Get("ns/short"); found {
		t.Error("Expected entry to expire after its TTL")
	}
}

func TestLRU_Delete(t *testing.T) {
	c := newTestLRU(t)

	c.Set("ns/k", []byte("v"), 0)
	c.Delete("ns/k")

	if _, found := c.Get("ns/k"); found {
		t.Error("Expected entry to be gone after Delete")
	}
}

func TestLRU_Clear(t *testing.T) {
	c := newTestLRU(t)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("ns/blob-%d", i), []byte("v"), 0)
	}
	c.Clear()

	for i := 0; i < 5; i++ {
		if _, found := c.Get(fmt.Sprintf("ns/blob-%d", i)); found {
			t.Errorf("Expected blob-%d to be cleared", i)
		}
	}
}

func TestLRU_Stats(t *testing.T) {
	c := newTestLRU(t)

	c.Set("ns/k", []byte("v"), 0)
	c.Get("ns/k")
	c.Get("ns/missing")

	stats := c.Stats()
	if stats.Hits < 1 {
		t.Errorf("Expected at least one hit, got %+v", stats)
	}
	if stats.Misses < 1 {
		t.Errorf("Expected at least one miss, got %+v", stats)
	}
}

func TestLRU_StaysWithinSizeBound(t *testing.T) {
	// 1 MB bound; offer it 4 MB of blobs.
	c, err := NewLRU(1, 1000, time.Minute)
	if err != nil {
		t.Fatalf("NewLRU failed: %v", err)
	}
	defer c.Close()

	payload := make([]byte, 64*1024)
	for i := 0; i < 64; i++ {
		c.Set(fmt.Sprintf("ns/bulk-%d", i), payload, 0)
	}

	retained := 0
	for i := 0; i < 64; i++ {
		if _, found := c.Get(fmt.Sprintf("ns/bulk-%d", i)); found {
			retained++
		}
	}
	// Admission is probabilistic; the bound, not the exact census, is
	// the contract.
	if retained > 20 {
		t.Errorf("Expected eviction to keep the cache near 1 MB, retained %d x 64KiB", retained)
	}
}
