// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tools selects which callable tools to expose on a complex-tier
// model invocation. Selection is a keyword score over a static catalogue,
// filtered by role and capability flags, truncated to a hard cap.
package tools

import (
	"fmt"
	"os"
	"sort"
	"strings"

	yaml "github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"

	_ "embed"
)

//go:embed defaults.yaml
var defaultCatalogue []byte

// HardCap bounds the tool list regardless of configuration.
const HardCap = 3

// Spec describes one callable tool.
type Spec struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters"`
	Keywords    []string       `yaml:"keywords" json:"-"`
	// Elevated tools are excluded for non-elevated roles.
	Elevated bool `yaml:"elevated" json:"-"`
	// RequiresWebSearch tools are capability gated, not scored.
	RequiresWebSearch bool `yaml:"requires_web_search" json:"-"`
}

type catalogueFile struct {
	Tools []Spec `yaml:"tools"`
}

// Selector scores and filters the tool catalogue.
type Selector struct {
	specs []Spec
}

// NewSelector loads the catalogue at path, or the embedded defaults when
// path is empty.
func NewSelector(path string) (*Selector, error) {
	data := defaultCatalogue
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tool catalogue: %w", err)
		}
		data = b
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tool catalogue: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range file.Tools {
		if s.Name == "" {
			return nil, fmt.Errorf("tool catalogue: entry with empty name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("tool catalogue: duplicate tool %q", s.Name)
		}
		seen[s.Name] = true
	}
	log.Infof("tool catalogue loaded: %d tools", len(file.Tools))
	return &Selector{specs: file.Tools}, nil
}

// Select returns at most maxTools specs relevant to the query. Elevated-only
// tools are dropped for non-elevated roles. Capability-gated tools bypass
// scoring entirely: they are included exactly when their capability flag is
// set, ahead of the scored catalogue. maxTools above the hard cap is
// clamped; zero or negative disables tools.
func (s *Selector) Select(query string, elevated, allowWebSearch bool, maxTools int) []Spec {
	if maxTools <= 0 {
		return nil
	}
	if maxTools > HardCap {
		maxTools = HardCap
	}

	selected := make([]Spec, 0, maxTools)
	for _, spec := range s.specs {
		if spec.RequiresWebSearch && allowWebSearch && len(selected) < maxTools {
			selected = append(selected, spec)
		}
	}

	type scored struct {
		spec  Spec
		score int
	}
	lower := strings.ToLower(query)
	var candidates []scored
	for _, spec := range s.specs {
		if spec.RequiresWebSearch {
			continue
		}
		if spec.Elevated && !elevated {
			continue
		}
		score := 0
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{spec, score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].spec.Name < candidates[j].spec.Name
	})
	for _, c := range candidates {
		if len(selected) >= maxTools {
			break
		}
		selected = append(selected, c.spec)
	}
	return selected
}

// Names returns the catalogue's tool names in file order.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		names = append(names, spec.Name)
	}
	return names
}
