// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package prompt assembles the context bundle handed to the model for
// complex-tier queries. Assembly is budget-driven: the complexity strategy
// fixes a token ceiling and the assembler admits components in a fixed
// priority order until the ceiling would be exceeded. The query itself is
// always present and is never truncated.
package prompt

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/complexity"
	"github.com/campusmind-ai/campusmind/internal/tokens"
)

// HistoryTurn is one prior exchange in the conversation.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Component kinds, in admission priority order after the query.
const (
	ComponentQuery   = "query"
	ComponentPage    = "page_context"
	ComponentProfile = "profile"
	ComponentMemory  = "memory"
	ComponentHistory = "history"
	ComponentHint    = "hint"
)

// Component is one admitted piece of the bundle.
type Component struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// Bundle is the assembled model context.
type Bundle struct {
	Components  []Component `json:"components"`
	TotalTokens int         `json:"total_tokens"`
	Truncated   bool        `json:"truncated"`
}

// Text renders the bundle as a single prompt string, components in
// admission order, query last so the model sees it closest.
func (b Bundle) Text() string {
	var sb strings.Builder
	var query string
	for _, c := range b.Components {
		if c.Kind == ComponentQuery {
			query = c.Text
			continue
		}
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString(query)
	return sb.String()
}

// Input carries the raw material available for one assembly. Hints are
// optional low-priority leads, such as near-miss catalogue entities.
type Input struct {
	Query       string
	Profile     string
	PageContext string
	Memory      []string
	History     []HistoryTurn
	Hints       []string
}

// Assembler builds bundles under a token ceiling.
type Assembler struct {
	estimator *tokens.Estimator
}

// NewAssembler creates an assembler using the given token estimator.
func NewAssembler(est *tokens.Estimator) *Assembler {
	return &Assembler{estimator: est}
}

// Build assembles a bundle for the query under strategy's MaxTokens ceiling.
// The query is counted first and always included, even when it alone exceeds
// the ceiling. Remaining components are admitted whole, in priority order:
// page context, profile, memory entries, history turns newest-first, then
// hints. The first component that would push the total past the ceiling
// closes the bundle: it and everything of lower priority is dropped, so
// truncation always removes the lowest-priority components. Truncated is set
// only when the ceiling forced a drop, not when the strategy gated a
// component out.
func (a *Assembler) Build(strategy complexity.Strategy, in Input) Bundle {
	ceiling := strategy.MaxTokens
	if ceiling <= 0 {
		ceiling = 512
	}

	queryTokens := a.estimator.Count(in.Query)
	bundle := Bundle{
		Components:  []Component{{Kind: ComponentQuery, Text: in.Query, Tokens: queryTokens}},
		TotalTokens: queryTokens,
	}
	if queryTokens > ceiling {
		// The query is sacrosanct. Everything else is dropped.
		bundle.Truncated = in.PageContext != "" || in.Profile != "" ||
			len(in.Memory) > 0 || len(in.History) > 0 || len(in.Hints) > 0
		return bundle
	}

	full := false
	admit := func(kind, text string) {
		if full || text == "" {
			return
		}
		n := a.estimator.Count(text)
		if bundle.TotalTokens+n > ceiling {
			bundle.Truncated = true
			full = true
			return
		}
		bundle.Components = append(bundle.Components, Component{Kind: kind, Text: text, Tokens: n})
		bundle.TotalTokens += n
	}

	admit(ComponentPage, in.PageContext)
	admit(ComponentProfile, in.Profile)

	if strategy.IncludeMemory {
		for _, m := range in.Memory {
			admit(ComponentMemory, m)
		}
	}

	if strategy.IncludeHistory {
		// Newest turns first so recency survives the budget.
		for i := len(in.History) - 1; i >= 0; i-- {
			t := in.History[i]
			admit(ComponentHistory, fmt.Sprintf("%s: %s", t.Role, t.Content))
		}
	}

	if len(in.Hints) > 0 {
		admit(ComponentHint, "Possibly related: "+strings.Join(in.Hints, ", "))
	}

	if bundle.Truncated {
		log.Debugf("prompt: bundle truncated at %d/%d tokens", bundle.TotalTokens, ceiling)
	}
	return bundle
}
