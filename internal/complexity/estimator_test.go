// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campusmind-ai/campusmind/internal/tokens"
)

func newTestEstimator() *Estimator {
	return NewEstimator(tokens.NewEstimator(tokens.MethodSimple))
}

func TestAssessSimpleLookupIsCheap(t *testing.T) {
	e := newTestEstimator()
	a := e.Assess("学生总数")
	assert.Equal(t, LevelCheap, a.Level)
	assert.Equal(t, SizeSmall, a.Strategy.Size)
	assert.False(t, a.Strategy.IncludeHistory)
}

func TestAssessAnalyticalIsExpensive(t *testing.T) {
	e := newTestEstimator()
	a := e.Assess("帮我分析本季度的综合运营趋势并提出建议")
	assert.Equal(t, LevelExpensive, a.Level)
	assert.Equal(t, SizeLarge, a.Strategy.Size)
	assert.True(t, a.Strategy.IncludeHistory)
	assert.True(t, a.Strategy.IncludeMemory)
	assert.Greater(t, a.Strategy.MaxTokens, 1000)
}

func TestAssessEnglishAnalytical(t *testing.T) {
	e := newTestEstimator()
	a := e.Assess("Please analyze enrollment trends across all grades, compare them with last year, and recommend a staffing strategy for next semester")
	assert.Equal(t, LevelExpensive, a.Level)
}

func TestAssessDeterministic(t *testing.T) {
	e := newTestEstimator()
	q := "how many teachers are on staff"
	first := e.Assess(q)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.Assess(q))
	}
}

func TestAssessScoreBounds(t *testing.T) {
	e := newTestEstimator()
	for _, q := range []string{"", "hi", "学生总数", "analyze analyze analyze compare evaluate summarize forecast trend recommend"} {
		a := e.Assess(q)
		assert.GreaterOrEqual(t, a.Score, 0.0)
		assert.LessOrEqual(t, a.Score, 1.0)
		assert.GreaterOrEqual(t, a.Confidence, 0.0)
		assert.LessOrEqual(t, a.Confidence, 1.0)
	}
}

func TestConservativeAssessmentForcesExpensive(t *testing.T) {
	a := conservativeAssessment()
	assert.Equal(t, LevelExpensive, a.Level)
	assert.LessOrEqual(t, a.Confidence, 0.2)
	assert.Greater(t, a.EstimatedTokens, 0)
}

func TestEstimatedTokensScaleWithLevel(t *testing.T) {
	e := newTestEstimator()
	cheap := e.Assess("count students")
	expensive := e.Assess("analyze the overall operational trend for this quarter and recommend improvements")
	assert.Greater(t, expensive.EstimatedTokens, cheap.EstimatedTokens)
}
