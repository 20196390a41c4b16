// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// TokenizedInput is the model-ready form of a text.
type TokenizedInput struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// WordPieceTokenizer is a basic WordPiece tokenizer for BERT-style models.
// CJK characters are split into individual tokens, matching the multilingual
// MiniLM vocabulary convention.
type WordPieceTokenizer struct {
	vocab map[string]int64

	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// NewWordPieceTokenizer loads a vocabulary file (one token per line). An
// empty or missing path falls back to a built-in minimal vocabulary so the
// engine can still run in tests.
func NewWordPieceTokenizer(vocabPath string) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: make(map[string]int64)}

	if vocabPath == "" {
		t.initMinimalVocab()
		return t, nil
	}

	file, err := os.Open(vocabPath)
	if err != nil {
		t.initMinimalVocab()
		return t, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		t.vocab[scanner.Text()] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}

	t.bindSpecialTokens()
	return t, nil
}

func (t *WordPieceTokenizer) initMinimalVocab() {
	minimal := []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"the", "a", "an", "is", "are", "to", "of", "in", "for", "on", "with",
		"how", "many", "what", "which", "who", "where", "when", "why",
		"count", "total", "number", "list", "show", "open", "go", "page",
		"student", "students", "teacher", "teachers", "class", "classes",
		"course", "courses", "grade", "semester", "report", "status",
		"analyze", "analysis", "trend", "suggest", "help",
		"学", "生", "老", "师", "班", "级", "课", "程", "总", "数",
		"多", "少", "打", "开", "页", "面", "分", "析", "趋", "势", "建", "议",
		"##s", "##ed", "##ing", "##er", "##ly", "##tion",
	}
	for i, token := range minimal {
		t.vocab[token] = int64(i)
	}
	t.bindSpecialTokens()
}

func (t *WordPieceTokenizer) bindSpecialTokens() {
	t.clsID = t.vocab["[CLS]"]
	t.sepID = t.vocab["[SEP]"]
	t.padID = t.vocab["[PAD]"]
	t.unkID = t.vocab["[UNK]"]
}

// Tokenize converts text into model input, truncated to maxLength including
// the [CLS]/[SEP] wrappers. Tokenization is deterministic.
func (t *WordPieceTokenizer) Tokenize(text string, maxLength int) *TokenizedInput {
	words := splitWords(strings.ToLower(text))

	ids := []int64{t.clsID}
	for _, w := range words {
		ids = append(ids, t.tokenizeWord(w)...)
		if len(ids) >= maxLength-1 {
			break
		}
	}
	if len(ids) > maxLength-1 {
		ids = ids[:maxLength-1]
	}
	ids = append(ids, t.sepID)

	mask := make([]int64, len(ids))
	types := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return &TokenizedInput{InputIDs: ids, AttentionMask: mask, TokenTypeIDs: types}
}

// splitWords separates on whitespace, isolates punctuation, and splits CJK
// runs into single-character words.
func splitWords(text string) []string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsPunct(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		case unicode.Is(unicode.Han, r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

// tokenizeWord applies greedy longest-match WordPiece to a single word.
func (t *WordPieceTokenizer) tokenizeWord(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, id)
				matched = true
				break
			}
			end--
		}
		if !matched {
			ids = append(ids, t.unkID)
			start++
			continue
		}
		start = end
	}

	if len(ids) == 0 {
		return []int64{t.unkID}
	}
	return ids
}

// VocabSize returns the loaded vocabulary size.
func (t *WordPieceTokenizer) VocabSize() int {
	return len(t.vocab)
}
