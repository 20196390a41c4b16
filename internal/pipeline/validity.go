// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strings"

	"github.com/campusmind-ai/campusmind/internal/action"
)

// candidate is a tier result awaiting validation. reportedCost is the token
// accounting the producing tier attached: the matched intent's estimate for
// direct answers, the model-reported usage for complex ones.
type candidate struct {
	result       *action.Result
	reportedCost int
}

// validator applies the response validity check that triggers escalation.
type validator struct {
	invalidPhrases   []string
	minSuspectLength int
}

func newValidator(phrases []string, minSuspectLength int) *validator {
	if minSuspectLength <= 0 {
		minSuspectLength = 20
	}
	return &validator{invalidPhrases: phrases, minSuspectLength: minSuspectLength}
}

// isValid reports whether a candidate may terminate the pipeline at the
// current tier. Any failing condition forces escalation from DIRECT.
func (v *validator) isValid(c candidate) bool {
	if c.result == nil || !c.result.Success {
		return false
	}
	text := c.result.Response
	if text == "" && c.result.Render == nil {
		return false
	}
	if text != "" && strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range v.invalidPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return false
		}
	}
	// A long response with no token accounting at all means a broken
	// shortcut produced text without real processing.
	if c.reportedCost == 0 && len([]rune(text)) > v.minSuspectLength {
		return false
	}
	return true
}
