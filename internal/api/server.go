// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the pipeline over HTTP: one query endpoint, a stats
// snapshot, and prometheus metrics. The caller always receives a JSON
// response object, never a raw internal error.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/pipeline"
)

// SubStats is implemented by components exposing per-component counters.
type SubStats interface {
	Metrics() map[string]interface{}
}

// Server wires the router and observability endpoints into a gin engine.
type Server struct {
	router   *pipeline.Router
	counters *metrics.Counters
	subStats map[string]SubStats
	engine   *gin.Engine
}

// NewServer builds the HTTP layer. subStats maps a component name to its
// stats provider; nil values are skipped.
func NewServer(router *pipeline.Router, counters *metrics.Counters, subStats map[string]SubStats, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		router:   router,
		counters: counters,
		subStats: subStats,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestID())

	s.engine.POST("/v1/assistant/query", s.handleQuery)
	s.engine.GET("/v1/assistant/stats", s.handleStats)
	s.engine.GET("/healthz", s.handleHealth)

	reg := prometheus.NewRegistry()
	counters.RegisterPrometheus(reg)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s
}

// Handler returns the engine for http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestID stamps every request with an id carried in logs and the
// response header.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

type queryRequest struct {
	Text           string `json:"text" binding:"required"`
	ConversationID string `json:"conversation_id"`
	UserID         int    `json:"user_id"`
	Role           string `json:"role"`
	Capabilities   struct {
		AllowTools     bool `json:"allow_tools"`
		AllowWebSearch bool `json:"allow_web_search"`
	} `json:"capabilities"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	resp := s.router.Process(c.Request.Context(), pipeline.Query{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Role:           req.Role,
		Capabilities: pipeline.Capabilities{
			AllowTools:     req.Capabilities.AllowTools,
			AllowWebSearch: req.Capabilities.AllowWebSearch,
		},
	})

	log.WithField("request_id", c.GetString("request_id")).
		Infof("query resolved tier=%s in %dms", resp.Tier, resp.ProcessingMs)

	status := http.StatusOK
	if resp.ErrorCode != "" {
		// Terminal failure still carries a full response object.
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"conversation_id": req.ConversationID,
		"response":        resp,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	components := gin.H{}
	for name, sub := range s.subStats {
		if sub == nil {
			continue
		}
		components[name] = sub.Metrics()
	}
	c.JSON(http.StatusOK, gin.H{
		"counters":   s.counters.GetSnapshot(),
		"components": components,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
