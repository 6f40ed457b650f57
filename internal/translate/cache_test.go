package translate

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheKeyVariesByLanguagePair(t *testing.T) {
	base := CacheKey("hello", "english", "spanish")
	if base == CacheKey("hello", "english", "french") {
		t.Fatal("key should change with target language")
	}
	if base == CacheKey("hello", "german", "spanish") {
		t.Fatal("key should change with source language")
	}
	if base != CacheKey("hello", "english", "spanish") {
		t.Fatal("key should be deterministic")
	}
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	cache := NewMemoryCache(10, time.Minute)
	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put("k", cacheEntry{Text: "hola"})
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("expected fresh entry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected expired entry to be dropped")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry still counted, len=%d", cache.Len())
	}
}

func TestMemoryCacheEvictsOldestFirst(t *testing.T) {
	cache := NewMemoryCache(3, time.Hour)
	for i := 0; i < 4; i++ {
		cache.Put(fmt.Sprintf("k%d", i), cacheEntry{Text: fmt.Sprintf("v%d", i)})
	}
	if cache.Len() != 3 {
		t.Fatalf("len = %d, want 3", cache.Len())
	}
	if _, ok := cache.Get("k0"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if entry, ok := cache.Get("k3"); !ok || entry.Text != "v3" {
		t.Fatalf("newest entry missing: %#v ok=%v", entry, ok)
	}
}

func TestMemoryCacheOverwriteDoesNotGrow(t *testing.T) {
	cache := NewMemoryCache(2, time.Hour)
	cache.Put("k", cacheEntry{Text: "a"})
	cache.Put("k", cacheEntry{Text: "b"})
	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}
	if entry, _ := cache.Get("k"); entry.Text != "b" {
		t.Fatalf("overwrite lost: %#v", entry)
	}
}
