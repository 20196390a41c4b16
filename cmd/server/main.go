// Copyright 2026 The CampusMind Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main runs the CampusMind assistant server: a tiered query pipeline
// that answers cheap administrative questions deterministically and routes
// everything else to an OpenAI-compatible model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/campusmind-ai/campusmind/internal/action"
	"github.com/campusmind-ai/campusmind/internal/api"
	"github.com/campusmind-ai/campusmind/internal/complexity"
	"github.com/campusmind-ai/campusmind/internal/config"
	"github.com/campusmind-ai/campusmind/internal/embedding"
	"github.com/campusmind-ai/campusmind/internal/intent"
	"github.com/campusmind-ai/campusmind/internal/logging"
	"github.com/campusmind-ai/campusmind/internal/metrics"
	"github.com/campusmind-ai/campusmind/internal/model"
	"github.com/campusmind-ai/campusmind/internal/pipeline"
	"github.com/campusmind-ai/campusmind/internal/prompt"
	"github.com/campusmind-ai/campusmind/internal/semantic"
	"github.com/campusmind-ai/campusmind/internal/store"
	"github.com/campusmind-ai/campusmind/internal/tokens"
	"github.com/campusmind-ai/campusmind/internal/tools"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("campusmind %s (%s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warnf("closing store: %v", cerr)
		}
	}()

	counters := metrics.New()

	intents, err := intent.NewMatcher()
	if err != nil {
		return err
	}
	if path := cfg.Catalogues.IntentsPath; path != "" {
		if err := intents.LoadFile(path); err != nil {
			return err
		}
		if cfg.Catalogues.WatchIntents {
			go func() {
				if err := intents.Watch(ctx, path); err != nil {
					log.Warnf("intent catalogue watch stopped: %v", err)
				}
			}()
		}
	}

	executor := action.NewExecutor(st, counters)
	if err := executor.ValidateActions(intents.Actions()); err != nil {
		return err
	}

	selector, err := tools.NewSelector(cfg.Catalogues.ToolsPath)
	if err != nil {
		return err
	}

	semantics, cache := setupSemantic(cfg)

	est := tokens.NewEstimator(tokens.Method(cfg.Pipeline.TokenEstimator))
	router, err := pipeline.NewRouter(pipeline.RouterOptions{
		Config:    cfg,
		Assessor:  complexity.NewEstimator(est),
		Intents:   intents,
		Semantics: semantics,
		Executor:  executor,
		Assembler: prompt.NewAssembler(est),
		Selector:  selector,
		Client:    model.NewOpenAIClient(cfg.Model),
		Contexts:  nil,
		Cache:     cache,
		Counters:  counters,
	})
	if err != nil {
		return err
	}

	server := api.NewServer(router, counters, map[string]api.SubStats{
		"intent":   intents,
		"semantic": semantics,
		"cache":    cache,
	}, cfg.Debug)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("campusmind %s listening on %s", Version, addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.OpenPostgres(cfg.Store.DSN, cfg.Store.TablePrefix)
	default:
		return store.OpenSQLite(cfg.Store.DSN, cfg.Store.TablePrefix)
	}
}

// setupSemantic brings up the embedding engine, entity index, and answer
// cache. Any failure degrades the semantic tier to disabled rather than
// refusing to start; the pipeline works without it, just less cheaply.
func setupSemantic(cfg *config.Config) (*semantic.Matcher, *semantic.AnswerCache) {
	if cfg.Embedding.ModelPath == "" {
		log.Info("no embedding model configured, semantic tier disabled")
		return semantic.NewMatcher(nil), nil
	}

	engine, err := embedding.NewEngine(embedding.Config{
		ModelPath:         cfg.Embedding.ModelPath,
		VocabPath:         cfg.Embedding.VocabPath,
		SharedLibraryPath: cfg.Embedding.SharedLibraryPath,
	})
	if err != nil {
		log.Warnf("semantic tier disabled: %v", err)
		return semantic.NewMatcher(nil), nil
	}
	if err := engine.Initialize(cfg.Embedding.SharedLibraryPath); err != nil {
		log.Warnf("semantic tier disabled: %v", err)
		return semantic.NewMatcher(nil), nil
	}

	matcher := semantic.NewMatcher(engine)
	if err := matcher.Initialize(cfg.Catalogues.EntitiesPath); err != nil {
		log.Warnf("semantic tier disabled: %v", err)
		return semantic.NewMatcher(nil), nil
	}

	var cache *semantic.AnswerCache
	if cfg.Cache.Enabled {
		cache = semantic.NewAnswerCache(engine, cfg.Cache.SimilarityThreshold, cfg.Cache.MaxSize)
	}
	log.Info("semantic tier enabled")
	return matcher, cache
}
