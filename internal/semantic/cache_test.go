// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package semantic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitOnIdenticalQuery(t *testing.T) {
	engine := newStubEngine()
	engine.vectors["roster"] = []float32{1, 0, 0}

	c := NewAnswerCache(engine, 0.95, 10)
	c.Store("roster size", "共有 317 名学生", "count_students")

	hit := c.Lookup("roster size please")
	require.NotNil(t, hit)
	assert.Equal(t, "共有 317 名学生", hit.Answer)
	assert.Equal(t, "count_students", hit.Action)
}

func TestCacheMissBelowThreshold(t *testing.T) {
	engine := newStubEngine()
	engine.vectors["roster"] = []float32{1, 0, 0}
	engine.vectors["schedule"] = []float32{0, 1, 0}

	c := NewAnswerCache(engine, 0.95, 10)
	c.Store("roster size", "共有 317 名学生", "count_students")

	assert.Nil(t, c.Lookup("open the schedule"))
}

func TestCacheLRUEviction(t *testing.T) {
	engine := newStubEngine()
	c := NewAnswerCache(engine, 0.95, 3)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("kw%d", i)
		engine.vectors[key] = []float32{float32(i + 1), float32(i * 2), 1}
		c.Store(fmt.Sprintf("query %s", key), "answer", "act")
	}

	stats := c.Metrics()
	assert.Equal(t, 3, stats["size"])
	assert.Equal(t, int64(2), stats["evictions"])
}

func TestCacheDuplicateStoreReplaces(t *testing.T) {
	engine := newStubEngine()
	engine.vectors["roster"] = []float32{1, 0, 0}

	c := NewAnswerCache(engine, 0.95, 10)
	c.Store("roster size", "old", "count_students")
	c.Store("roster size", "new", "count_students")

	hit := c.Lookup("roster size")
	require.NotNil(t, hit)
	assert.Equal(t, "new", hit.Answer)
	assert.Equal(t, 1, c.Metrics()["size"])
}

func TestCacheMetricsHitRate(t *testing.T) {
	engine := newStubEngine()
	engine.vectors["roster"] = []float32{1, 0, 0}
	engine.vectors["unrelated"] = []float32{0, 1, 0}

	c := NewAnswerCache(engine, 0.95, 10)
	c.Store("roster size", "answer", "count_students")

	require.NotNil(t, c.Lookup("roster size"))
	assert.Nil(t, c.Lookup("unrelated thing"))

	stats := c.Metrics()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.InDelta(t, 0.5, stats["hit_rate"].(float64), 0.001)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *AnswerCache
	assert.Nil(t, c.Lookup("x"))
	c.Store("x", "y", "z")
	assert.Equal(t, false, c.Metrics()["enabled"])
}
