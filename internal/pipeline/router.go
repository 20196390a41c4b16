// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/action"
	"github.com/campusmind-ai/campusmind/internal/complexity"
	"github.com/campusmind-ai/campusmind/internal/config"
	"github.com/campusmind-ai/campusmind/internal/intent"
	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/model"
	"github.com/campusmind-ai/campusmind/internal/prompt"
	"github.com/campusmind-ai/campusmind/internal/semantic"
	"github.com/campusmind-ai/campusmind/internal/tools"
)

// Collaborator contracts. The router depends on behavior, not on the
// concrete packages, so tests can substitute any of them.

// IntentMatcher is the exact-catalogue collaborator.
type IntentMatcher interface {
	Match(query string) *intent.Decision
}

// Assessor is the complexity estimation collaborator.
type Assessor interface {
	Assess(query string) complexity.Assessment
}

// SemanticSearcher is the embedding index collaborator.
type SemanticSearcher interface {
	IsEnabled() bool
	Search(ctx context.Context, query string, topK int) ([]semantic.Match, error)
}

// ActionExecutor is the direct tier collaborator.
type ActionExecutor interface {
	Execute(ctx context.Context, actionID, query string) action.Result
}

// ContextAssembler builds the complex-tier prompt bundle.
type ContextAssembler interface {
	Build(strategy complexity.Strategy, in prompt.Input) prompt.Bundle
}

// ToolSelector picks the tools exposed to a model invocation.
type ToolSelector interface {
	Select(query string, elevated, allowWebSearch bool, maxTools int) []tools.Spec
}

// ContextSource supplies per-conversation context for the assembler. Any
// method may return its zero value; a nil source means no context.
type ContextSource interface {
	History(ctx context.Context, conversationID string) []prompt.HistoryTurn
	Memory(ctx context.Context, userID int) []string
	Profile(ctx context.Context, userID int) string
	PageContext(ctx context.Context, conversationID string) string
}

// AnswerCache is the semantic answer cache consulted on the
// no-intent-match path. A nil cache disables caching.
type AnswerCache interface {
	Lookup(query string) *semantic.CachedAnswer
	Store(query, answer, actionID string)
}

// Router is the top-level orchestrator: assess, route, execute, validate,
// escalate at most once, account.
type Router struct {
	cfg       *config.Config
	assessor  Assessor
	intents   IntentMatcher
	semantics SemanticSearcher
	executor  ActionExecutor
	assembler ContextAssembler
	selector  ToolSelector
	client    model.Client
	contexts  ContextSource
	cache     AnswerCache
	counters  *metrics.Counters
	validator *validator
	rules     *ruleSet
}

// RouterOptions wires the router's collaborators.
type RouterOptions struct {
	Config    *config.Config
	Assessor  Assessor
	Intents   IntentMatcher
	Semantics SemanticSearcher
	Executor  ActionExecutor
	Assembler ContextAssembler
	Selector  ToolSelector
	Client    model.Client
	Contexts  ContextSource
	Cache     AnswerCache
	Counters  *metrics.Counters
}

// NewRouter builds a router. Override rules are compiled here; a bad rule
// fails startup rather than a request.
func NewRouter(opts RouterOptions) (*Router, error) {
	rules, err := compileRules(opts.Config.Rules)
	if err != nil {
		return nil, err
	}
	p := opts.Config.Pipeline
	return &Router{
		cfg:       opts.Config,
		assessor:  opts.Assessor,
		intents:   opts.Intents,
		semantics: opts.Semantics,
		executor:  opts.Executor,
		assembler: opts.Assembler,
		selector:  opts.Selector,
		client:    opts.Client,
		contexts:  opts.Contexts,
		cache:     opts.Cache,
		counters:  opts.Counters,
		validator: newValidator(p.InvalidPhrases, p.MinSuspectLength),
		rules:     rules,
	}, nil
}

// Process handles one query end to end. The caller always gets a response
// object; complex-tier failure is reported through ErrorCode, never as an
// error return.
func (r *Router) Process(ctx context.Context, q Query) QueryResponse {
	start := time.Now()
	logger := log.WithField("conversation", q.ConversationID)
	logger.Debugf("query received (%d runes)", len([]rune(q.Text)))

	assessment := r.assessor.Assess(q.Text)

	decision := r.intents.Match(q.Text)
	if decision != nil {
		// Exactness beats estimation: a catalogue match is final.
		resp := r.runDirect(ctx, q, assessment, decision, nil)
		return r.finish(resp, start)
	}

	if name, forced := r.rules.forcesComplex(q.Text, q.Role); forced {
		logger.Infof("override rule %q forced complex tier", name)
		resp := r.runComplex(ctx, q, assessment, withAux(nil, "override_rule", name), nil)
		return r.finish(resp, start)
	}

	if assessment.Level == complexity.LevelExpensive {
		resp := r.runComplex(ctx, q, assessment, nil, nil)
		return r.finish(resp, start)
	}

	// Cheap but unmatched: try the semantic path before paying for the model.
	resp := r.runSemantic(ctx, q, assessment)
	return r.finish(resp, start)
}

// runDirect executes the direct tier for a matched or promoted action and
// escalates on an invalid result.
func (r *Router) runDirect(ctx context.Context, q Query, assessment complexity.Assessment, decision *intent.Decision, aux map[string]any) QueryResponse {
	var result action.Result
	if decision.CannedResponse != "" {
		result = action.Result{Success: true, Response: decision.CannedResponse}
	} else {
		dctx, cancel := context.WithTimeout(ctx, r.directTimeout())
		result = r.executor.Execute(dctx, decision.Action, q.Text)
		cancel()
	}

	cost := decision.EstimatedTokens
	if cost == 0 {
		cost = assessment.EstimatedTokens
	}
	if !r.validator.isValid(candidate{result: &result, reportedCost: cost}) {
		log.WithField("action", decision.Action).Info("direct result invalid, escalating")
		r.counters.RecordEscalation()
		resp := r.runComplex(ctx, q, assessment, aux, nil)
		resp.FallbackToComplex = true
		return resp
	}

	return QueryResponse{
		Text:        result.Response,
		Tier:        TierDirect,
		Confidence:  decision.Confidence,
		TokensUsed:  0,
		TokensSaved: cost,
		Render:      result.Render,
		Auxiliary:   aux,
	}
}

// runSemantic resolves an unmatched cheap query: answer cache first, then a
// confidence-gated promotion to a direct action, otherwise the complex tier
// with the candidates forwarded as a hint.
func (r *Router) runSemantic(ctx context.Context, q Query, assessment complexity.Assessment) QueryResponse {
	if r.cache != nil {
		if hit := r.cache.Lookup(q.Text); hit != nil {
			return QueryResponse{
				Text:        hit.Answer,
				Tier:        TierDirect,
				Confidence:  1.0,
				TokensSaved: assessment.EstimatedTokens,
				Auxiliary:   withAux(nil, "cache_hit", true),
			}
		}
	}

	if r.semantics == nil || !r.semantics.IsEnabled() {
		return r.runComplex(ctx, q, assessment, nil, nil)
	}

	sctx, cancel := context.WithTimeout(ctx, r.directTimeout())
	matches, err := r.semantics.Search(sctx, q.Text, r.cfg.Pipeline.SemanticTopK)
	cancel()
	if err != nil {
		log.Warnf("semantic search failed: %v", err)
		return r.runComplex(ctx, q, assessment, nil, nil)
	}

	if len(matches) > 0 && matches[0].Action != "" &&
		matches[0].Confidence >= r.cfg.Pipeline.PromotionThreshold {
		top := matches[0]
		r.counters.RecordSemanticPromotion()
		promoted := &intent.Decision{
			Intent:          top.EntityID,
			Action:          top.Action,
			Confidence:      top.Confidence,
			EstimatedTokens: assessment.EstimatedTokens,
		}
		resp := r.runDirect(ctx, q, assessment, promoted, withAux(nil, "semantic_entity", top.EntityID))
		if resp.Tier == TierDirect && r.cache != nil && resp.Text != "" {
			r.cache.Store(q.Text, resp.Text, top.Action)
		}
		return resp
	}

	// Below the promotion bar the candidates are still worth something:
	// forward them both as auxiliary data and as a prompt hint.
	var aux map[string]any
	var hints []string
	if len(matches) > 0 {
		aux = withAux(nil, "semantic_matches", matches)
		for _, m := range matches {
			if m.EntityID != "" {
				hints = append(hints, m.EntityID)
			}
		}
	}
	return r.runComplex(ctx, q, assessment, aux, hints)
}

// runComplex assembles context, selects tools, and invokes the model. This
// tier is terminal: its result is accepted as-is, or surfaced as a
// structured failure. hints carry near-miss entity ids from the semantic
// path into the prompt.
func (r *Router) runComplex(ctx context.Context, q Query, assessment complexity.Assessment, aux map[string]any, hints []string) QueryResponse {
	in := prompt.Input{Query: q.Text, Hints: hints}
	if r.contexts != nil {
		in.Profile = r.contexts.Profile(ctx, q.UserID)
		in.PageContext = r.contexts.PageContext(ctx, q.ConversationID)
		if assessment.Strategy.IncludeMemory {
			in.Memory = r.contexts.Memory(ctx, q.UserID)
		}
		if assessment.Strategy.IncludeHistory {
			in.History = r.contexts.History(ctx, q.ConversationID)
		}
	}
	bundle := r.assembler.Build(assessment.Strategy, in)
	if bundle.Truncated {
		aux = withAux(aux, "context_truncated", true)
	}

	var selected []tools.Spec
	if q.Capabilities.AllowTools && r.selector != nil {
		selected = r.selector.Select(q.Text, r.cfg.IsElevated(q.Role),
			q.Capabilities.AllowWebSearch, r.cfg.Pipeline.MaxTools)
	}

	cctx, cancel := context.WithTimeout(ctx, r.complexTimeout())
	defer cancel()
	completion, err := r.client.Complete(cctx, model.CompletionRequest{
		Prompt:    bundle.Text(),
		Role:      q.Role,
		Tools:     selected,
		MaxTokens: r.cfg.Model.MaxTokens,
	})
	if err != nil {
		log.Errorf("complex tier failed: %v", err)
		r.counters.RecordTerminalFailure()
		return QueryResponse{
			Text:      "抱歉，服务暂时不可用，请稍后再试。",
			Tier:      TierComplex,
			ErrorCode: ErrModelUnavailable,
			Auxiliary: aux,
		}
	}

	tokensUsed := completion.TokensUsed
	if tokensUsed == 0 {
		// Accounting substitute only, never a correctness gate.
		tokensUsed = assessment.EstimatedTokens
	}
	var render *action.Render
	if completion.Render != nil {
		render = &action.Render{
			Component: completion.Render.Component,
			Target:    completion.Render.Target,
			Props:     completion.Render.Props,
		}
	}
	return QueryResponse{
		Text:       completion.Content,
		Tier:       TierComplex,
		Confidence: assessment.Confidence,
		TokensUsed: tokensUsed,
		Render:     render,
		Auxiliary:  aux,
	}
}

// finish stamps timing and folds the response into the counters. Counter
// updates happen after the response is built so accounting never delays it.
func (r *Router) finish(resp QueryResponse, start time.Time) QueryResponse {
	elapsed := time.Since(start)
	resp.ProcessingMs = elapsed.Milliseconds()

	tier := metrics.TierDirect
	if resp.Tier == TierComplex {
		tier = metrics.TierComplex
	}
	r.counters.RecordQuery(tier, resp.TokensUsed, resp.TokensSaved, elapsed)
	return resp
}

func (r *Router) directTimeout() time.Duration {
	ms := r.cfg.Pipeline.DirectTimeoutMs
	if ms <= 0 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *Router) complexTimeout() time.Duration {
	ms := r.cfg.Pipeline.ComplexTimeoutMs
	if ms <= 0 {
		ms = 30000
	}
	return time.Duration(ms) * time.Millisecond
}

func withAux(aux map[string]any, key string, value any) map[string]any {
	if aux == nil {
		aux = map[string]any{}
	}
	aux[key] = value
	return aux
}
