// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tokens provides deterministic token counting for context budgeting
// and savings accounting. The same estimator instance must be used for both
// so that truncation decisions and the savings metric stay consistent.
package tokens

import (
	"github.com/tiktoken-go/tokenizer"
)

// Method selects the counting strategy.
type Method string

const (
	// MethodTiktoken counts with the cl100k_base BPE codec.
	MethodTiktoken Method = "tiktoken"
	// MethodSimple approximates with words * 1.3.
	MethodSimple Method = "simple"
)

// Estimator counts tokens in text. It is safe for concurrent use and
// deterministic: identical input always yields an identical count.
type Estimator struct {
	method Method
	codec  tokenizer.Codec
}

// NewEstimator creates an Estimator using the given method. An invalid method
// or a codec load failure degrades to the simple approximation rather than
// erroring, since counting must never block the pipeline.
func NewEstimator(method Method) *Estimator {
	e := &Estimator{method: MethodSimple}
	if method == MethodTiktoken {
		if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			e.method = MethodTiktoken
			e.codec = codec
		}
	}
	return e
}

// Count returns the token count for the given text.
func (e *Estimator) Count(text string) int {
	if len(text) == 0 {
		return 0
	}
	if e.method == MethodTiktoken && e.codec != nil {
		if n, err := e.codec.Count(text); err == nil {
			return n
		}
	}
	return e.simpleEstimate(text)
}

// Method returns the counting strategy in effect.
func (e *Estimator) Method() Method {
	return e.method
}

// simpleEstimate uses a word count * 1.3 approximation. Most tokenizers
// produce roughly 1.3 tokens per word; CJK text has no spaces, so runs of
// non-ASCII runes count one word per rune instead.
func (e *Estimator) simpleEstimate(text string) int {
	wordCount := 0
	inWord := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			inWord = false
		case r > 0x2E7F: // CJK and beyond: count each rune
			wordCount++
			inWord = false
		case !inWord:
			wordCount++
			inWord = true
		}
	}
	n := int(float64(wordCount) * 1.3)
	if n == 0 {
		n = 1
	}
	return n
}
