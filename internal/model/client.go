// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model wraps the remote model collaborator for complex-tier
// execution. It speaks the OpenAI-compatible chat completion protocol, which
// covers OpenAI itself and the usual compatible gateways (DeepSeek, Qwen,
// local vLLM and the like) via a base URL override.
package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/campusmind-ai/campusmind/internal/config"
	"github.com/campusmind-ai/campusmind/internal/tools"
)

const systemPrompt = `You are CampusMind, an assistant for campus administrators.
Answer in the language of the question. When the answer should drive a UI
change, append a fenced json block with a "render" object describing the
component to show.`

// CompletionRequest is one complex-tier invocation.
type CompletionRequest struct {
	Prompt string
	// Role scopes the system instruction to the caller's privileges.
	Role      string
	Tools     []tools.Spec
	MaxTokens int
}

// Render mirrors the executor's render payload shape for model-suggested UI.
type Render struct {
	Component string         `json:"component"`
	Target    string         `json:"target,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// Completion is the model's answer.
type Completion struct {
	Content    string
	Render     *Render
	TokensUsed int
}

// Client is the remote model contract the router depends on.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// OpenAIClient implements Client over the OpenAI chat completion API.
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIClient builds a client from the model section of the config.
func NewOpenAIClient(cfg config.ModelConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete runs one chat completion. Context cancellation and deadlines are
// honored by the underlying HTTP client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	system := systemPrompt
	if req.Role != "" {
		system += "\nThe requester's role is: " + req.Role + "."
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Prompt),
		},
		MaxTokens: openai.Int(int64(c.maxTokens)),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choice list")
	}

	content := resp.Choices[0].Message.Content
	completion := &Completion{
		TokensUsed: int(resp.Usage.TotalTokens),
	}
	completion.Content, completion.Render = splitRender(content)
	log.Debugf("model: completion in %d tokens", completion.TokensUsed)
	return completion, nil
}

// buildTools converts tool specs to OpenAI function declarations.
func buildTools(specs []tools.Spec) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, t := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
		}
		if t.Parameters != nil {
			fn.Parameters = shared.FunctionParameters(t.Parameters)
		}
		result = append(result, openai.ChatCompletionToolParam{
			Type:     "function",
			Function: fn,
		})
	}
	return result
}

// splitRender extracts a trailing fenced json render payload from the
// model's answer, if present. Malformed payloads are ignored and left in
// the text.
func splitRender(content string) (string, *Render) {
	start := strings.LastIndex(content, "```json")
	if start < 0 {
		return content, nil
	}
	rest := content[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return content, nil
	}
	block := rest[:end]

	r := gjson.Get(block, "render")
	if !r.Exists() || gjson.Get(block, "render.component").String() == "" {
		return content, nil
	}
	render := &Render{
		Component: r.Get("component").String(),
		Target:    r.Get("target").String(),
	}
	if props := r.Get("props"); props.IsObject() {
		render.Props = map[string]any{}
		props.ForEach(func(key, value gjson.Result) bool {
			render.Props[key.String()] = value.Value()
			return true
		})
	}
	text := strings.TrimSpace(content[:start] + rest[end+len("```"):])
	return text, render
}
