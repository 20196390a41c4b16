// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package embedding provides an ONNX-based sentence embedding engine backing
// the semantic matcher and the semantic answer cache. It runs a MiniLM-class
// model and mean-pools the token states into a normalized vector.
package embedding

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// Dimension is the output dimension of the MiniLM model family.
	Dimension = 384

	// MaxSequenceLength caps tokenized input length.
	MaxSequenceLength = 256
)

// Config holds the file locations the engine needs.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// VocabPath is the path to the WordPiece vocabulary file.
	VocabPath string
	// SharedLibraryPath locates the onnxruntime shared library.
	SharedLibraryPath string
}

// Engine computes sentence embeddings. Construct with NewEngine, then call
// Initialize before Embed. A nil or uninitialized engine reports
// IsEnabled() == false and the semantic tier stays out of the pipeline.
type Engine struct {
	session   *ort.DynamicAdvancedSession
	modelPath string
	vocabPath string
	tokenizer *WordPieceTokenizer
	enabled   bool
	mu        sync.RWMutex
}

// NewEngine creates an engine for the given configuration. The ONNX session
// is not created until Initialize.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("embedding: model path is required")
	}
	return &Engine{
		modelPath: cfg.ModelPath,
		vocabPath: cfg.VocabPath,
	}, nil
}

// Initialize loads the ONNX model and vocabulary.
func (e *Engine) Initialize(sharedLibPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := os.Stat(e.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("embedding: model file not found: %s", e.modelPath)
	}

	if sharedLibPath != "" {
		ort.SetSharedLibraryPath(sharedLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("embedding: failed to initialize ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("embedding: failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		e.modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		options,
	)
	if err != nil {
		return fmt.Errorf("embedding: failed to load ONNX model: %w", err)
	}
	e.session = session

	tok, err := NewWordPieceTokenizer(e.vocabPath)
	if err != nil {
		e.session.Destroy()
		return fmt.Errorf("embedding: failed to load vocabulary: %w", err)
	}
	e.tokenizer = tok

	e.enabled = true
	log.Infof("Embedding engine ready, model %s", filepath.Base(e.modelPath))
	return nil
}

// IsEnabled reports whether the engine can serve Embed calls.
func (e *Engine) IsEnabled() bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Embed computes the normalized embedding vector for a text.
func (e *Engine) Embed(text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.enabled {
		return nil, fmt.Errorf("embedding: engine not initialized")
	}

	input := e.tokenizer.Tokenize(text, MaxSequenceLength)
	vec, err := e.runInference(input)
	if err != nil {
		return nil, fmt.Errorf("embedding: inference failed: %w", err)
	}
	return vec, nil
}

// runInference executes the model and pools the output. Caller holds the
// read lock.
func (e *Engine) runInference(input *TokenizedInput) ([]float32, error) {
	seqLen := int64(len(input.InputIDs))

	inputIDs, err := ort.NewTensor(ort.NewShape(1, seqLen), input.InputIDs)
	if err != nil {
		return nil, err
	}
	defer inputIDs.Destroy()

	attentionMask, err := ort.NewTensor(ort.NewShape(1, seqLen), input.AttentionMask)
	if err != nil {
		return nil, err
	}
	defer attentionMask.Destroy()

	tokenTypeIDs, err := ort.NewTensor(ort.NewShape(1, seqLen), input.TokenTypeIDs)
	if err != nil {
		return nil, err
	}
	defer tokenTypeIDs.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, Dimension))
	if err != nil {
		return nil, err
	}
	defer output.Destroy()

	err = e.session.Run(
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
	)
	if err != nil {
		return nil, err
	}

	return normalize(meanPool(output.GetData(), input.AttentionMask, int(seqLen))), nil
}

// meanPool averages token states over the sequence, weighted by the
// attention mask.
func meanPool(states []float32, attentionMask []int64, seqLen int) []float32 {
	pooled := make([]float32, Dimension)
	var weight float32
	for i := 0; i < seqLen; i++ {
		if attentionMask[i] != 1 {
			continue
		}
		for j := 0; j < Dimension; j++ {
			pooled[j] += states[i*Dimension+j]
		}
		weight++
	}
	if weight > 0 {
		for j := range pooled {
			pooled[j] /= weight
		}
	}
	return pooled
}

// normalize applies L2 normalization in place.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// CosineSimilarity computes the cosine similarity of two vectors.
func (e *Engine) CosineSimilarity(a, b []float32) float64 {
	return Cosine(a, b)
}

// Cosine computes cosine similarity; mismatched or empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Shutdown releases the ONNX session.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil
	}
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.enabled = false
	log.Info("Embedding engine shut down")
	return nil
}
