// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package action executes direct (cheap, deterministic) answers for matched
// intents. Every action identifier maps to exactly one handler; the registry
// is validated at startup so an unknown id fails fast instead of at request
// time. Handlers never panic the pipeline: internal failure becomes a
// Result with Success=false, which the router treats as an escalation
// trigger.
package action

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/store"
)

// Render is a UI-render instruction attached to a result.
type Render struct {
	Component string         `json:"component"`
	Target    string         `json:"target,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// Result is the outcome of executing a direct action.
type Result struct {
	Success    bool          `json:"success"`
	Response   string        `json:"response"`
	Render     *Render       `json:"render,omitempty"`
	TokensUsed int           `json:"tokens_used"`
	Latency    time.Duration `json:"latency"`
}

// handlerFunc computes one action. Implementations must be bounded: an
// indexed lookup or a templated string, nothing open-ended.
type handlerFunc func(ctx context.Context, query string) (string, *Render, error)

// Executor dispatches action identifiers to handlers.
type Executor struct {
	store    store.Store
	counters *metrics.Counters
	handlers map[string]handlerFunc
}

// NewExecutor creates an executor with the built-in handler registry.
func NewExecutor(st store.Store, counters *metrics.Counters) *Executor {
	e := &Executor{store: st, counters: counters}
	e.handlers = map[string]handlerFunc{
		"count_students":    e.countHandler(store.KindStudents, "学生"),
		"count_teachers":    e.countHandler(store.KindTeachers, "教师"),
		"count_classes":     e.countHandler(store.KindClasses, "班级"),
		"count_courses":     e.countHandler(store.KindCourses, "课程"),
		"navigate_students": navigateHandler("/admin/students", "学生管理"),
		"navigate_schedule": navigateHandler("/admin/schedule", "课程表"),
		"system_status":     e.statusHandler,
		"help":              helpHandler,
	}
	return e
}

// ValidateActions checks that every catalogue action id has a registered
// handler. Called once at startup.
func (e *Executor) ValidateActions(actionIDs []string) error {
	var missing []string
	for _, id := range actionIDs {
		if _, ok := e.handlers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("action: no handler registered for %v", missing)
	}
	return nil
}

// Execute runs the handler for actionID. It never returns an error: any
// failure, including an unknown id slipping past validation, yields
// Success=false.
func (e *Executor) Execute(ctx context.Context, actionID, query string) Result {
	start := time.Now()

	handler, ok := e.handlers[actionID]
	if !ok {
		log.Errorf("action: unknown action id %q", actionID)
		return Result{Success: false, Latency: time.Since(start)}
	}

	response, render, err := handler(ctx, query)
	if err != nil {
		log.WithField("action", actionID).Warnf("direct action failed: %v", err)
		return Result{Success: false, Latency: time.Since(start)}
	}

	return Result{
		Success:  true,
		Response: response,
		Render:   render,
		// Direct answers cost no model tokens.
		TokensUsed: 0,
		Latency:    time.Since(start),
	}
}

// countHandler builds a handler answering "how many X" via a bounded count
// query against the persistence collaborator.
func (e *Executor) countHandler(kind store.EntityKind, label string) handlerFunc {
	return func(ctx context.Context, _ string) (string, *Render, error) {
		if e.store == nil {
			return "", nil, fmt.Errorf("store unavailable")
		}
		n, err := e.store.Count(ctx, kind, nil)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("当前共有 %d 个%s。", n, label), &Render{
			Component: "stat-card",
			Props:     map[string]any{"label": label, "value": n},
		}, nil
	}
}

// navigateHandler returns a canned navigation payload.
func navigateHandler(path, label string) handlerFunc {
	return func(_ context.Context, _ string) (string, *Render, error) {
		return fmt.Sprintf("正在为您打开%s。", label), &Render{
			Component: "navigate",
			Target:    path,
		}, nil
	}
}

// statusHandler reports pipeline counters as a readable status line.
func (e *Executor) statusHandler(_ context.Context, _ string) (string, *Render, error) {
	if e.counters == nil {
		return "", nil, fmt.Errorf("counters unavailable")
	}
	snap := e.counters.GetSnapshot()
	text := fmt.Sprintf("系统运行正常：已处理 %d 条查询，直接命中率 %.0f%%，累计节省约 %d tokens。",
		snap.TotalQueries, snap.DirectHitRate*100, snap.TokensSaved)
	return text, &Render{
		Component: "status-panel",
		Props: map[string]any{
			"total_queries":   snap.TotalQueries,
			"direct_hit_rate": snap.DirectHitRate,
			"tokens_saved":    snap.TokensSaved,
		},
	}, nil
}

func helpHandler(_ context.Context, _ string) (string, *Render, error) {
	return "我可以统计学生、教师、班级和课程数量，打开常用页面，或回答更复杂的分析问题。", nil, nil
}
