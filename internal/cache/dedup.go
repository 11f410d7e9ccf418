// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package cache provides the deduplication cache used by the event
// consumer. JetStream redelivers events whose acks were missed, so the
// consumer keeps an exact, bounded record of recently ingested event IDs.
// Membership answers must be exact: a probabilistic filter's false
// positives would mark unique sessions as duplicates and silently drop
// them, which is the one failure mode ingestion cannot have.
package cache

import (
	"sync"
	"time"
)

const (
	defaultCapacity = 10000
	defaultTTL      = 5 * time.Minute
)

// dedupEntry is a node in the recency list.
type dedupEntry struct {
	key       string
	prev      *dedupEntry
	next      *dedupEntry
	expiresAt time.Time
}

// ExactLRU is a thread-safe, capacity-bounded set of recently seen keys
// with TTL expiry. All operations are O(1): a hashmap gives lookups, a
// doubly-linked list with sentinels gives recency order, and the least
// recently seen key is evicted when capacity is reached.
//
// Checking and recording are separate operations. The consumer checks
// before ingesting and records only after the ingest succeeded, so a
// failed ingest stays unknown to the cache and JetStream redelivery gets
// processed instead of skipped.
//
// The zero value is not usable; construct with NewExactLRU.
type ExactLRU struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*dedupEntry

	// head.next is the most recently seen key, tail.prev the least.
	head *dedupEntry
	tail *dedupEntry
}

// NewExactLRU creates a dedup cache holding at most capacity keys, each
// for at most ttl. Non-positive arguments fall back to 10000 keys and
// 5 minutes.
func NewExactLRU(capacity int, ttl time.Duration) *ExactLRU {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &ExactLRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*dedupEntry, capacity),
		head:     &dedupEntry{},
		tail:     &dedupEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Contains reports whether key was recorded within the TTL window. It
// never modifies the cache, not even recency order, so checking a key is
// free of side effects until the caller decides to Record it.
func (c *ExactLRU) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[key]
	return ok && !time.Now().After(entry.expiresAt)
}

// Record marks key as seen now. An existing key has its TTL and recency
// refreshed; a new key may evict the least recently seen one.
func (c *ExactLRU) Record(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if entry, ok := c.items[key]; ok {
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return
	}

	entry := &dedupEntry{key: key, expiresAt: expiresAt}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// CleanupExpired removes every expired key and returns how many were
// removed. Expiry is otherwise lazy: Contains answers false for an
// expired key but leaves it in place.
func (c *ExactLRU) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	// Walk from the least recently seen end; expired keys cluster there.
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}

	return removed
}

// Len returns the number of keys currently held, expired ones included
// until the next CleanupExpired.
func (c *ExactLRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Internal methods (must be called with the write lock held)

func (c *ExactLRU) addToFront(entry *dedupEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *ExactLRU) moveToFront(entry *dedupEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *ExactLRU) removeEntry(entry *dedupEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *ExactLRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
