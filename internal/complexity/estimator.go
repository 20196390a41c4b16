// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package complexity scores an input query for difficulty and proposes a
// processing strategy. Assessment is a pure function of the query text:
// identical input always produces an identical assessment, so tier decisions
// stay reproducible.
package complexity

import (
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/tokens"
)

// Level is the discrete difficulty class.
type Level string

const (
	LevelCheap     Level = "cheap"
	LevelExpensive Level = "expensive"
)

// ContextSize classes the amount of context worth assembling.
type ContextSize string

const (
	SizeSmall  ContextSize = "small"
	SizeMedium ContextSize = "medium"
	SizeLarge  ContextSize = "large"
)

// Strategy is the recommended context-assembly plan for a query.
type Strategy struct {
	Size           ContextSize `json:"size"`
	IncludeHistory bool        `json:"include_history"`
	IncludeMemory  bool        `json:"include_memory"`
	MaxTokens      int         `json:"max_tokens"`
}

// Assessment is the estimator's output. Produced once per query, never
// mutated afterwards.
type Assessment struct {
	Score           float64  `json:"score"`
	Level           Level    `json:"level"`
	Confidence      float64  `json:"confidence"`
	EstimatedTokens int      `json:"estimated_tokens"`
	Strategy        Strategy `json:"strategy"`
}

// expensiveMarkers signal open-ended analytical work. Each hit adds weight.
var expensiveMarkers = []string{
	"analyze", "analysis", "compare", "evaluate", "summarize", "forecast",
	"trend", "recommend", "suggest", "strategy", "why", "explain",
	"分析", "对比", "评估", "总结", "预测", "趋势", "建议", "为什么", "综合", "运营",
}

// cheapMarkers signal lookup-style questions that a direct action can serve.
var cheapMarkers = []string{
	"how many", "count", "total", "number of", "list", "show", "open",
	"多少", "总数", "数量", "列表", "打开", "查看",
}

// ExpensiveThreshold is the score at or above which a query is classed
// expensive.
const ExpensiveThreshold = 0.60

// Estimator assesses query complexity. Safe for concurrent use.
type Estimator struct {
	counter *tokens.Estimator
}

// NewEstimator creates an Estimator using the given token counter for cost
// estimates.
func NewEstimator(counter *tokens.Estimator) *Estimator {
	return &Estimator{counter: counter}
}

// Assess scores the query. It never fails: an internal panic is recovered
// into a conservative expensive assessment so the pipeline is never blocked
// on estimation.
func (e *Estimator) Assess(query string) (out Assessment) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("complexity assessment panicked, assuming expensive: %v", r)
			out = conservativeAssessment()
		}
	}()
	return e.assess(query)
}

func (e *Estimator) assess(query string) Assessment {
	lower := strings.ToLower(query)
	score := 0.0

	for _, m := range expensiveMarkers {
		if strings.Contains(lower, m) {
			score += 0.25
		}
	}
	for _, m := range cheapMarkers {
		if strings.Contains(lower, m) {
			score -= 0.15
		}
	}

	// Long queries tend to need real reasoning.
	runes := utf8.RuneCountInString(query)
	switch {
	case runes > 120:
		score += 0.30
	case runes > 40:
		score += 0.15
	}

	// Multi-part requests: clause separators and conjunction chains.
	for _, sep := range []string{";", "，", "、", " and ", "并", "然后"} {
		if strings.Contains(lower, sep) {
			score += 0.10
			break
		}
	}

	score = clamp01(score)
	level := LevelCheap
	if score >= ExpensiveThreshold {
		level = LevelExpensive
	}

	// Confidence is highest at the extremes of the score range.
	confidence := clamp01(2*abs(score-0.5) + 0.3)

	queryTokens := e.counter.Count(query)
	return Assessment{
		Score:           score,
		Level:           level,
		Confidence:      confidence,
		EstimatedTokens: estimateCost(level, queryTokens),
		Strategy:        strategyFor(score),
	}
}

// strategyFor maps a score band to a context plan.
func strategyFor(score float64) Strategy {
	switch {
	case score >= ExpensiveThreshold:
		return Strategy{Size: SizeLarge, IncludeHistory: true, IncludeMemory: true, MaxTokens: 3000}
	case score >= 0.30:
		return Strategy{Size: SizeMedium, IncludeHistory: true, IncludeMemory: false, MaxTokens: 1200}
	default:
		return Strategy{Size: SizeSmall, IncludeHistory: false, IncludeMemory: false, MaxTokens: 512}
	}
}

// estimateCost approximates what a model invocation for this query would
// consume: prompt overhead plus a level-dependent completion allowance.
func estimateCost(level Level, queryTokens int) int {
	if level == LevelExpensive {
		return queryTokens + 1500
	}
	return queryTokens + 300
}

// conservativeAssessment forces the expensive tier with low confidence.
func conservativeAssessment() Assessment {
	return Assessment{
		Score:           1.0,
		Level:           LevelExpensive,
		Confidence:      0.1,
		EstimatedTokens: 2000,
		Strategy:        strategyFor(1.0),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
