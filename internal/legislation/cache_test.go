package legislation

import (
	"testing"
	"time"
)

func TestFetchCache_SetGet(t *testing.T) {
	c := NewFetchCache(time.Minute)
	c.Set("k", []byte("body"))
	got, ok := c.Get("k")
	if !ok || string(got) != "body" {
		t.Errorf("Get = %q, %v", got, ok)
	}
}

func TestFetchCache_Miss(t *testing.T) {
	c := NewFetchCache(time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestFetchCache_Expiry(t *testing.T) {
	c := NewFetchCache(10 * time.Millisecond)
	c.Set("k", []byte("body"))
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be pruned on access, len=%d", c.Len())
	}
}

func TestFetchCache_Invalidate(t *testing.T) {
	c := NewFetchCache(time.Minute)
	c.Set("k", []byte("body"))
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected invalidated entry to miss")
	}
}

func TestFetchCache_Clear(t *testing.T) {
	c := NewFetchCache(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, len=%d", c.Len())
	}
}

func TestFetchCache_ZeroTTLDefaults(t *testing.T) {
	c := NewFetchCache(0)
	c.Set("k", []byte("body"))
	if _, ok := c.Get("k"); !ok {
		t.Error("cache with default TTL should hold entries")
	}
}
