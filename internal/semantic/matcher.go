// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package semantic matches queries against a precomputed embedding index of
// known entities and actions. It is consulted only when the exact intent
// catalogue produced no match, and returns ranked candidates rather than a
// committed decision.
package semantic

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

//go:embed defaults.yaml
var defaultIndex []byte

// EmbeddingEngine is the embedding collaborator the matcher depends on.
type EmbeddingEngine interface {
	Embed(text string) ([]float32, error)
	CosineSimilarity(a, b []float32) float64
	IsEnabled() bool
}

// Entity is one indexed entry with its precomputed embedding.
type Entity struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description" json:"description"`
	Examples    []string `yaml:"examples" json:"examples"`
	// Action, when set, allows confidence-gated promotion to the direct tier.
	Action string `yaml:"action" json:"action,omitempty"`

	embedding []float32
}

type indexFile struct {
	Entities []Entity `yaml:"entities"`
}

// Match is one ranked candidate.
type Match struct {
	EntityID   string  `json:"entity_id"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action,omitempty"`
}

// Matcher searches the entity index. Initialize precomputes embeddings; an
// uninitialized matcher reports IsEnabled() == false and the router skips it.
type Matcher struct {
	engine   EmbeddingEngine
	mu       sync.RWMutex
	entities []*Entity
	enabled  bool

	searchCount atomic.Int64
	hitCount    atomic.Int64
}

// NewMatcher creates a matcher bound to an embedding engine.
func NewMatcher(engine EmbeddingEngine) *Matcher {
	return &Matcher{engine: engine}
}

// Initialize loads the entity index from path (or the embedded default when
// path is empty) and precomputes an embedding per entity.
func (m *Matcher) Initialize(path string) error {
	if m.engine == nil || !m.engine.IsEnabled() {
		return fmt.Errorf("semantic: embedding engine not available")
	}

	data := defaultIndex
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("semantic: failed to read entity index: %w", err)
		}
		data = fileData
	}

	var file indexFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("semantic: failed to parse entity index: %w", err)
	}
	if len(file.Entities) == 0 {
		return fmt.Errorf("semantic: no entities in index")
	}

	entities := make([]*Entity, 0, len(file.Entities))
	for i := range file.Entities {
		e := &file.Entities[i]
		combined := e.Description + " " + strings.Join(e.Examples, " ")
		vec, err := m.engine.Embed(combined)
		if err != nil {
			log.Warnf("semantic: failed to embed entity %s: %v", e.ID, err)
			continue
		}
		e.embedding = vec
		entities = append(entities, e)
	}
	if len(entities) == 0 {
		return fmt.Errorf("semantic: failed to embed any entities")
	}

	m.mu.Lock()
	m.entities = entities
	m.enabled = true
	m.mu.Unlock()

	log.Infof("Semantic index ready with %d entities", len(entities))
	return nil
}

// IsEnabled reports whether the index is ready for searching.
func (m *Matcher) IsEnabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Search returns up to topK candidates ordered by descending confidence.
// Context cancellation is honored before the (CPU-bound) scan.
func (m *Matcher) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled {
		return nil, fmt.Errorf("semantic: matcher not initialized")
	}

	m.searchCount.Add(1)

	queryVec, err := m.engine.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("semantic: failed to embed query: %w", err)
	}

	matches := make([]Match, 0, len(m.entities))
	for _, e := range m.entities {
		score := m.engine.CosineSimilarity(queryVec, e.embedding)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{EntityID: e.ID, Confidence: score, Action: e.Action})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	if len(matches) > 0 {
		m.hitCount.Add(1)
	}
	return matches, nil
}

// Metrics reports index statistics for the stats endpoint.
func (m *Matcher) Metrics() map[string]interface{} {
	m.mu.RLock()
	entityCount := len(m.entities)
	enabled := m.enabled
	m.mu.RUnlock()

	searches := m.searchCount.Load()
	hits := m.hitCount.Load()
	hitRate := 0.0
	if searches > 0 {
		hitRate = float64(hits) / float64(searches)
	}
	return map[string]interface{}{
		"enabled":      enabled,
		"entity_count": entityCount,
		"search_count": searches,
		"hit_rate":     hitRate,
	}
}
