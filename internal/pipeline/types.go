// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline is the query-processing core: a strict two-tier router
// with single-step escalation. Cheap deterministic answers go through the
// direct tier; everything else is assembled into a budgeted prompt and sent
// to the remote model. A direct result that fails validation is re-executed
// at the complex tier exactly once.
package pipeline

import (
	"github.com/campusmind-ai/campusmind/internal/action"
)

// Tier is the processing strategy a query resolved on.
type Tier string

const (
	TierDirect  Tier = "DIRECT"
	TierComplex Tier = "COMPLEX"
)

// Capabilities are per-query feature flags granted by the calling layer.
type Capabilities struct {
	AllowTools     bool `json:"allow_tools"`
	AllowWebSearch bool `json:"allow_web_search"`
}

// Query is one unit of work. Immutable once received.
type Query struct {
	Text           string       `json:"text"`
	ConversationID string       `json:"conversation_id"`
	UserID         int          `json:"user_id"`
	Role           string       `json:"role"`
	Capabilities   Capabilities `json:"capabilities"`
}

// ErrModelUnavailable is the terminal error code for a complex-tier failure.
const ErrModelUnavailable = "model_unavailable"

// QueryResponse is what the caller always receives, success or not.
type QueryResponse struct {
	Text              string         `json:"text"`
	Tier              Tier           `json:"tier"`
	Confidence        float64        `json:"confidence"`
	TokensUsed        int            `json:"tokens_used"`
	TokensSaved       int            `json:"tokens_saved"`
	ProcessingMs      int64          `json:"processing_ms"`
	Render            *action.Render `json:"render,omitempty"`
	Auxiliary         map[string]any `json:"auxiliary,omitempty"`
	FallbackToComplex bool           `json:"fallback_to_complex,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
}
