// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmind-ai/campusmind/internal/complexity"
	"github.com/campusmind-ai/campusmind/internal/tokens"
)

func newAssembler() *Assembler {
	return NewAssembler(tokens.NewEstimator(tokens.MethodSimple))
}

func largeStrategy(maxTokens int) complexity.Strategy {
	return complexity.Strategy{
		Size:           complexity.SizeLarge,
		IncludeHistory: true,
		IncludeMemory:  true,
		MaxTokens:      maxTokens,
	}
}

func TestBuildQueryAlwaysIncluded(t *testing.T) {
	a := newAssembler()

	longQuery := strings.Repeat("analyze enrollment trends across all departments ", 40)
	bundle := a.Build(largeStrategy(10), Input{
		Query:       longQuery,
		PageContext: "current page: dashboard",
	})

	require.Len(t, bundle.Components, 1)
	assert.Equal(t, ComponentQuery, bundle.Components[0].Kind)
	assert.True(t, bundle.Truncated)
	assert.Greater(t, bundle.TotalTokens, 10)
}

func TestBuildNeverExceedsCeilingExceptQuery(t *testing.T) {
	a := newAssembler()
	est := tokens.NewEstimator(tokens.MethodSimple)

	in := Input{
		Query:       "compare this semester with last semester",
		PageContext: strings.Repeat("page context fragment ", 30),
		Profile:     "role: principal, campus: north",
		Memory:      []string{strings.Repeat("remembered fact ", 20), "short note"},
		History: []HistoryTurn{
			{Role: "user", Content: "学生总数"},
			{Role: "assistant", Content: "当前共有 1248 个学生。"},
		},
	}
	ceiling := est.Count(in.Query) + 30
	bundle := a.Build(largeStrategy(ceiling), in)

	assert.LessOrEqual(t, bundle.TotalTokens, ceiling)
	assert.True(t, bundle.Truncated)
}

func TestBuildTruncationDropsLowestPriorityFirst(t *testing.T) {
	a := newAssembler()
	est := tokens.NewEstimator(tokens.MethodSimple)

	in := Input{
		Query:       "compare this semester with last semester",
		PageContext: "attendance dashboard, week 12",
		Profile:     strings.Repeat("profile detail ", 40),
		Memory:      []string{"short memo"},
		History:     []HistoryTurn{{Role: "user", Content: "hi"}},
	}
	ceiling := est.Count(in.Query) + est.Count(in.PageContext) + 20
	bundle := a.Build(largeStrategy(ceiling), in)

	// The oversized profile closes the bundle. Memory and history are lower
	// priority than the profile, so neither may sneak in after it.
	kinds := make([]string, 0, len(bundle.Components))
	for _, c := range bundle.Components {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []string{ComponentQuery, ComponentPage}, kinds)
	assert.True(t, bundle.Truncated)
}

func TestBuildOversizedPageContextDropsEverythingBelow(t *testing.T) {
	a := newAssembler()
	est := tokens.NewEstimator(tokens.MethodSimple)

	in := Input{
		Query:       "compare this semester with last semester",
		PageContext: strings.Repeat("page context fragment ", 30),
		Profile:     "role: admin",
		Memory:      []string{"memo"},
		History:     []HistoryTurn{{Role: "user", Content: "hi"}},
	}
	bundle := a.Build(largeStrategy(est.Count(in.Query)+5), in)

	require.Len(t, bundle.Components, 1)
	assert.Equal(t, ComponentQuery, bundle.Components[0].Kind)
	assert.True(t, bundle.Truncated)
}

func TestBuildPriorityOrder(t *testing.T) {
	a := newAssembler()

	bundle := a.Build(largeStrategy(3000), Input{
		Query:       "why did attendance drop",
		PageContext: "viewing attendance report",
		Profile:     "role: admin",
		Memory:      []string{"prefers weekly summaries"},
		History:     []HistoryTurn{{Role: "user", Content: "show attendance"}},
	})

	kinds := make([]string, 0, len(bundle.Components))
	for _, c := range bundle.Components {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []string{ComponentQuery, ComponentPage, ComponentProfile, ComponentMemory, ComponentHistory}, kinds)
	assert.False(t, bundle.Truncated)
}

func TestBuildStrategyGatesHistoryAndMemory(t *testing.T) {
	a := newAssembler()

	small := complexity.Strategy{Size: complexity.SizeSmall, MaxTokens: 512}
	bundle := a.Build(small, Input{
		Query:   "学生总数",
		Memory:  []string{"fact"},
		History: []HistoryTurn{{Role: "user", Content: "hi"}},
	})

	for _, c := range bundle.Components {
		assert.NotEqual(t, ComponentMemory, c.Kind)
		assert.NotEqual(t, ComponentHistory, c.Kind)
	}
	// Gating by strategy is not ceiling truncation.
	assert.False(t, bundle.Truncated)
}

func TestBuildHistoryNewestFirst(t *testing.T) {
	a := newAssembler()
	est := tokens.NewEstimator(tokens.MethodSimple)

	oldTurn := HistoryTurn{Role: "user", Content: strings.Repeat("old question ", 20)}
	newTurn := HistoryTurn{Role: "user", Content: "latest question"}
	in := Input{Query: "follow up", History: []HistoryTurn{oldTurn, newTurn}}

	ceiling := est.Count(in.Query) + est.Count("user: "+newTurn.Content) + 2
	bundle := a.Build(largeStrategy(ceiling), in)

	var history []string
	for _, c := range bundle.Components {
		if c.Kind == ComponentHistory {
			history = append(history, c.Text)
		}
	}
	require.Len(t, history, 1)
	assert.Contains(t, history[0], "latest question")
	assert.True(t, bundle.Truncated)
}

func TestBuildDeterministic(t *testing.T) {
	a := newAssembler()
	in := Input{
		Query:       "分析本学期出勤率变化",
		PageContext: "attendance dashboard",
		Memory:      []string{"memo one", "memo two"},
		History:     []HistoryTurn{{Role: "user", Content: "出勤率"}},
	}

	first := a.Build(largeStrategy(3000), in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.Build(largeStrategy(3000), in))
	}
}

func TestBuildHintsAdmittedLast(t *testing.T) {
	a := newAssembler()

	bundle := a.Build(largeStrategy(3000), Input{
		Query:       "when does enrollment close",
		PageContext: "admissions page",
		Hints:       []string{"学生总数", "课程总数"},
	})

	last := bundle.Components[len(bundle.Components)-1]
	assert.Equal(t, ComponentHint, last.Kind)
	assert.Contains(t, last.Text, "学生总数")
	assert.Contains(t, last.Text, "课程总数")
	assert.False(t, bundle.Truncated)
}

func TestBundleTextPutsQueryLast(t *testing.T) {
	a := newAssembler()
	bundle := a.Build(largeStrategy(3000), Input{
		Query:       "the final question",
		PageContext: "some page",
	})

	text := bundle.Text()
	assert.True(t, strings.HasSuffix(text, "the final question"))
	assert.Contains(t, text, "some page")
}
