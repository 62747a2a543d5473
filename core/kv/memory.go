package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

const (
	memoryCleanupInterval = time.Minute
	memoryMaxEntries      = 100000
)

type memoryEntry struct {
	val      []byte
	expires  time.Time
	lastSeen time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Memory is an in-process Cache. Expired entries are reaped lazily on access
// rather than by a background goroutine, with a hard cap on entry count.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	lastCleanup time.Time
	maxEntries  int
}

func NewMemory() *Memory {
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: memoryMaxEntries,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.maybeCleanup(now)
	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		return nil, false, nil
	}
	e.lastSeen = now
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.maybeCleanup(now)
	e := &memoryEntry{val: append([]byte(nil), val...), lastSeen: now}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		return false, nil
	}
	e.lastSeen = now
	if ttl > 0 {
		e.expires = now.Add(ttl)
	} else {
		e.expires = time.Time{}
	}
	return true, nil
}

func (m *Memory) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.maybeCleanup(now)
	var n int64 = 1
	if e, ok := m.entries[key]; ok && !e.expired(now) {
		prev, err := strconv.ParseInt(string(e.val), 10, 64)
		if err == nil {
			n = prev + 1
		}
	}
	e := &memoryEntry{val: []byte(strconv.FormatInt(n, 10)), lastSeen: now}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
	return n, nil
}

func (m *Memory) maybeCleanup(now time.Time) {
	if now.Sub(m.lastCleanup) < memoryCleanupInterval && len(m.entries) <= m.maxEntries {
		return
	}
	m.lastCleanup = now
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
	for len(m.entries) > m.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, e := range m.entries {
			if oldestKey == "" || e.lastSeen.Before(oldest) {
				oldestKey = key
				oldest = e.lastSeen
			}
		}
		if oldestKey == "" {
			break
		}
		delete(m.entries, oldestKey)
	}
}
