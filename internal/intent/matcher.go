// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package intent recognizes a fixed catalogue of canned query patterns and
// maps them to direct action identifiers. Matching is substring-based over a
// rank-ordered catalogue; it never calls the model and performs no I/O at
// match time.
package intent

import (
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
var defaultCatalogue []byte

// Intent is a single catalogue entry. Rank is an explicit specificity
// priority: higher ranks are tried first, so catalogue file order never
// decides a match.
type Intent struct {
	Name string `yaml:"name" json:"name"`
	// Action is the direct action identifier this intent resolves to.
	Action string `yaml:"action" json:"action"`
	// Rank orders matching; more specific phrase sets get higher ranks.
	Rank    int      `yaml:"rank" json:"rank"`
	Phrases []string `yaml:"phrases" json:"phrases"`
	// Response, when set, answers the query without executing an action.
	Response string `yaml:"response" json:"response"`
	// TokensSaved is the rough model cost a direct answer avoids.
	TokensSaved int `yaml:"tokens-saved" json:"tokens_saved"`
}

type catalogueFile struct {
	Intents []Intent `yaml:"intents"`
}

// Decision is a route decision produced by an exact intent match.
type Decision struct {
	Intent          string  `json:"intent"`
	Action          string  `json:"action"`
	Confidence      float64 `json:"confidence"`
	EstimatedTokens int     `json:"estimated_tokens"`
	CannedResponse  string  `json:"canned_response,omitempty"`
}

// Matcher matches queries against the catalogue. Safe for concurrent use;
// Reload swaps the catalogue atomically under the lock.
type Matcher struct {
	mu      sync.RWMutex
	intents []Intent // sorted by rank descending, then name for stability

	matchCount atomic.Int64
	hitCount   atomic.Int64
}

// NewMatcher creates a matcher loaded with the embedded default catalogue.
func NewMatcher() (*Matcher, error) {
	m := &Matcher{}
	if err := m.load(defaultCatalogue); err != nil {
		return nil, fmt.Errorf("intent: embedded catalogue invalid: %w", err)
	}
	return m, nil
}

// LoadFile replaces the catalogue with the contents of a YAML file.
func (m *Matcher) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("intent: failed to read catalogue: %w", err)
	}
	if err := m.load(data); err != nil {
		return fmt.Errorf("intent: failed to load catalogue %s: %w", path, err)
	}
	log.Infof("Intent catalogue loaded from %s (%d intents)", path, m.Count())
	return nil
}

func (m *Matcher) load(data []byte) error {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	if len(file.Intents) == 0 {
		return fmt.Errorf("no intents defined")
	}
	for _, in := range file.Intents {
		if in.Name == "" || len(in.Phrases) == 0 {
			return fmt.Errorf("intent %q missing name or phrases", in.Name)
		}
		if in.Action == "" && in.Response == "" {
			return fmt.Errorf("intent %q has neither action nor response", in.Name)
		}
	}

	sorted := append([]Intent(nil), file.Intents...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank > sorted[j].Rank
		}
		return sorted[i].Name < sorted[j].Name
	})

	m.mu.Lock()
	m.intents = sorted
	m.mu.Unlock()
	return nil
}

// Match returns the first catalogue entry whose phrase appears in the query,
// or nil when nothing matches. Identical input always yields an identical
// decision.
func (m *Matcher) Match(query string) *Decision {
	m.matchCount.Add(1)
	lower := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.intents {
		in := &m.intents[i]
		for _, phrase := range in.Phrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				m.hitCount.Add(1)
				return &Decision{
					Intent:          in.Name,
					Action:          in.Action,
					Confidence:      1.0, // exact catalogue match
					EstimatedTokens: in.TokensSaved,
					CannedResponse:  in.Response,
				}
			}
		}
	}
	return nil
}

// Actions returns the distinct action identifiers the catalogue references.
// Used at startup to validate the executor registry.
func (m *Matcher) Actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, in := range m.intents {
		if in.Action != "" && !seen[in.Action] {
			seen[in.Action] = true
			out = append(out, in.Action)
		}
	}
	sort.Strings(out)
	return out
}

// Count returns the number of loaded intents.
func (m *Matcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.intents)
}

// Metrics reports matcher hit statistics for the stats endpoint.
func (m *Matcher) Metrics() map[string]interface{} {
	matches := m.matchCount.Load()
	hits := m.hitCount.Load()
	hitRate := 0.0
	if matches > 0 {
		hitRate = float64(hits) / float64(matches)
	}
	return map[string]interface{}{
		"match_count":  matches,
		"hit_count":    hits,
		"hit_rate":     hitRate,
		"intent_count": m.Count(),
	}
}
