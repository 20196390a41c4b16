// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics tracks process-lifetime pipeline counters: per-tier usage,
// escalations, and estimated token savings. Counters are created at process
// start, updated atomically after every query, and only reset by restart.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters is the process-wide accumulator for pipeline statistics.
// All updates go through the Record* methods; fields are never exposed
// for direct mutation.
type Counters struct {
	totalQueries       atomic.Int64
	directQueries      atomic.Int64
	complexQueries     atomic.Int64
	escalations        atomic.Int64
	semanticPromotions atomic.Int64
	terminalFailures   atomic.Int64
	tokensSaved        atomic.Int64
	tokensUsed         atomic.Int64
	totalLatencyMs     atomic.Int64

	startTime time.Time

	promOnce sync.Once
	prom     *promCollectors
}

type promCollectors struct {
	queries     *prometheus.CounterVec
	escalations prometheus.Counter
	tokensSaved prometheus.Counter
	latency     prometheus.Histogram
}

// Tier labels used for per-tier accounting.
const (
	TierDirect  = "direct"
	TierComplex = "complex"
)

// New creates a Counters instance rooted at the current time.
func New() *Counters {
	return &Counters{startTime: time.Now()}
}

// RegisterPrometheus registers prometheus collectors on the given registerer.
// Safe to call once per process; subsequent calls are no-ops.
func (c *Counters) RegisterPrometheus(reg prometheus.Registerer) {
	c.promOnce.Do(func() {
		c.prom = &promCollectors{
			queries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "assistant_queries_total",
				Help: "Total queries processed, labeled by final tier.",
			}, []string{"tier"}),
			escalations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "assistant_escalations_total",
				Help: "Direct-tier results that failed validation and re-ran at the complex tier.",
			}),
			tokensSaved: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "assistant_tokens_saved_total",
				Help: "Estimated model tokens avoided by the direct tier.",
			}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "assistant_query_duration_ms",
				Help:    "End-to-end query processing time in milliseconds.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			}),
		}
		reg.MustRegister(c.prom.queries, c.prom.escalations, c.prom.tokensSaved, c.prom.latency)
	})
}

// RecordQuery records one completed query: the final tier it resolved at,
// the tokens it consumed, the tokens it avoided, and its latency.
func (c *Counters) RecordQuery(tier string, tokensUsed, tokensSaved int, latency time.Duration) {
	c.totalQueries.Add(1)
	switch tier {
	case TierDirect:
		c.directQueries.Add(1)
	case TierComplex:
		c.complexQueries.Add(1)
	}
	if tokensUsed > 0 {
		c.tokensUsed.Add(int64(tokensUsed))
	}
	if tokensSaved > 0 {
		c.tokensSaved.Add(int64(tokensSaved))
	}
	ms := latency.Milliseconds()
	c.totalLatencyMs.Add(ms)

	if c.prom != nil {
		c.prom.queries.WithLabelValues(tier).Inc()
		if tokensSaved > 0 {
			c.prom.tokensSaved.Add(float64(tokensSaved))
		}
		c.prom.latency.Observe(float64(ms))
	}
}

// RecordEscalation increments the escalation counter by exactly one.
func (c *Counters) RecordEscalation() {
	c.escalations.Add(1)
	if c.prom != nil {
		c.prom.escalations.Inc()
	}
}

// RecordSemanticPromotion counts a confidence-gated promotion from the
// semantic matcher to a direct action.
func (c *Counters) RecordSemanticPromotion() {
	c.semanticPromotions.Add(1)
}

// RecordTerminalFailure counts a complex-tier failure surfaced to the caller.
func (c *Counters) RecordTerminalFailure() {
	c.terminalFailures.Add(1)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	TotalQueries       int64   `json:"total_queries"`
	DirectQueries      int64   `json:"direct_queries"`
	ComplexQueries     int64   `json:"complex_queries"`
	Escalations        int64   `json:"escalations"`
	SemanticPromotions int64   `json:"semantic_promotions"`
	TerminalFailures   int64   `json:"terminal_failures"`
	TokensUsed         int64   `json:"tokens_used"`
	TokensSaved        int64   `json:"tokens_saved"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
	DirectHitRate      float64 `json:"direct_hit_rate"`
	UptimeSeconds      int64   `json:"uptime_seconds"`
}

// GetSnapshot returns the current counter values. Pure read, no side effects.
func (c *Counters) GetSnapshot() Snapshot {
	total := c.totalQueries.Load()
	snap := Snapshot{
		TotalQueries:       total,
		DirectQueries:      c.directQueries.Load(),
		ComplexQueries:     c.complexQueries.Load(),
		Escalations:        c.escalations.Load(),
		SemanticPromotions: c.semanticPromotions.Load(),
		TerminalFailures:   c.terminalFailures.Load(),
		TokensUsed:         c.tokensUsed.Load(),
		TokensSaved:        c.tokensSaved.Load(),
		UptimeSeconds:      int64(time.Since(c.startTime).Seconds()),
	}
	if total > 0 {
		snap.AvgLatencyMs = float64(c.totalLatencyMs.Load()) / float64(total)
		snap.DirectHitRate = float64(snap.DirectQueries) / float64(total)
	}
	return snap
}
