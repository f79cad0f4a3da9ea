package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"litsieve/internal/audit"
	"litsieve/internal/config"
	"litsieve/internal/corpus"
	"litsieve/internal/invoke"
	"litsieve/internal/llm"
	"litsieve/internal/logging"
	"litsieve/internal/logstream"
	"litsieve/internal/promptcache"
	"litsieve/internal/ratelimit"
)

// pipeline bundles everything a stage command needs for one run.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *corpus.Store
	engine   *invoke.Engine
	auditLog *audit.Logger
	runID    string
}

func newPipeline(ctx *commandContext, forceFallback bool) (*pipeline, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "litsieve.log")},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	store, err := corpus.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open corpus store: %w", err)
	}

	auditLog, err := audit.Open(cfg.AuditLogPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	runID := uuid.NewString()
	engine, err := invoke.New(invoke.Options{
		Primary:       providerClient(cfg.Providers.Primary),
		Fallback:      providerClient(cfg.Providers.Fallback),
		Limiter:       ratelimit.New(providerIntervals(cfg)),
		Cache:         promptcache.NewStore(cfg.Paths.CacheDir, logger),
		Audit:         auditLog,
		Hub:           logstream.NewHub(256),
		Logger:        logger,
		RunID:         runID,
		Cooldown:      time.Duration(cfg.Retry.CooldownSeconds) * time.Second,
		ForceFallback: forceFallback,
		Threshold:     cfg.Retry.FailureThreshold,
	})
	if err != nil {
		auditLog.Close()
		store.Close()
		return nil, fmt.Errorf("build invocation engine: %w", err)
	}

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		auditLog: auditLog,
		runID:    runID,
	}, nil
}

func (p *pipeline) Close() {
	if p == nil {
		return
	}
	if p.auditLog != nil {
		if err := p.auditLog.Close(); err != nil {
			p.logger.Warn("close audit log", logging.Error(err))
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("close corpus store", logging.Error(err))
		}
	}
}

func providerClient(p config.Provider) *llm.Client {
	return llm.NewClient(llm.Config{
		Name:           p.Name,
		APIKey:         p.APIKey,
		BaseURL:        p.BaseURL,
		Model:          p.Model,
		TimeoutSeconds: p.TimeoutSeconds,
	})
}

func providerIntervals(cfg *config.Config) map[string]time.Duration {
	intervals := make(map[string]time.Duration, 2)
	for _, p := range []config.Provider{cfg.Providers.Primary, cfg.Providers.Fallback} {
		if p.MinIntervalMS > 0 {
			intervals[p.Name] = time.Duration(p.MinIntervalMS) * time.Millisecond
		}
	}
	return intervals
}
