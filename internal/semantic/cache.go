// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package semantic

import (
	"container/list"
	"sync"
	"time"
)

// CachedAnswer is a previously validated direct-tier answer keyed by its
// query embedding.
type CachedAnswer struct {
	Query     string
	Answer    string
	Action    string
	Timestamp time.Time

	embedding []float32
	element   *list.Element
}

// AnswerCache caches validated direct-tier answers by embedding similarity,
// with LRU eviction. It is consulted only on the no-intent-match path, so
// exact catalogue matches are never served stale answers.
type AnswerCache struct {
	engine EmbeddingEngine

	similarityThreshold float64
	maxSize             int

	mu      sync.Mutex
	entries map[string]*CachedAnswer
	lru     *list.List

	hits      int64
	misses    int64
	evictions int64
}

// NewAnswerCache creates a cache. similarityThreshold defaults to 0.95 and
// maxSize to 1000 if unset.
func NewAnswerCache(engine EmbeddingEngine, similarityThreshold float64, maxSize int) *AnswerCache {
	if similarityThreshold <= 0 {
		similarityThreshold = 0.95
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &AnswerCache{
		engine:              engine,
		similarityThreshold: similarityThreshold,
		maxSize:             maxSize,
		entries:             make(map[string]*CachedAnswer),
		lru:                 list.New(),
	}
}

// Lookup returns the best cached answer whose similarity clears the
// threshold, or nil on a miss. A failed embedding counts as a miss.
func (c *AnswerCache) Lookup(query string) *CachedAnswer {
	if c == nil || !c.engine.IsEnabled() {
		return nil
	}
	queryVec, err := c.engine.Embed(query)
	if err != nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var best *CachedAnswer
	var bestScore float64
	for _, entry := range c.entries {
		score := c.engine.CosineSimilarity(queryVec, entry.embedding)
		if score >= c.similarityThreshold && score > bestScore {
			best = entry
			bestScore = score
		}
	}

	if best == nil {
		c.misses++
		return nil
	}
	c.hits++
	c.lru.MoveToFront(best.element)
	return best
}

// Store adds a validated answer, evicting the least recently used entry at
// capacity. Duplicate queries replace the previous entry.
func (c *AnswerCache) Store(query, answer, actionID string) {
	if c == nil || !c.engine.IsEnabled() {
		return
	}
	vec, err := c.engine.Embed(query)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[query]; ok {
		c.lru.Remove(prev.element)
		delete(c.entries, query)
	}
	for len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	entry := &CachedAnswer{
		Query:     query,
		Answer:    answer,
		Action:    actionID,
		Timestamp: time.Now(),
		embedding: vec,
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[query] = entry
}

func (c *AnswerCache) evictLocked() {
	oldest := c.lru.Back()
	if oldest == nil {
		return
	}
	entry := oldest.Value.(*CachedAnswer)
	delete(c.entries, entry.Query)
	c.lru.Remove(oldest)
	c.evictions++
}

// Metrics reports cache statistics for the stats endpoint.
func (c *AnswerCache) Metrics() map[string]interface{} {
	if c == nil {
		return map[string]interface{}{"enabled": false}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return map[string]interface{}{
		"enabled":   true,
		"size":      len(c.entries),
		"hits":      c.hits,
		"misses":    c.misses,
		"evictions": c.evictions,
		"hit_rate":  hitRate,
	}
}
