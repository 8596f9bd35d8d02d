package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gabormeresz/profAssistant-sub000/internal/ai"
	"github.com/gabormeresz/profAssistant-sub000/internal/config"
	"github.com/gabormeresz/profAssistant-sub000/internal/evaluation"
	"github.com/gabormeresz/profAssistant-sub000/internal/iterative"
	"github.com/gabormeresz/profAssistant-sub000/internal/logging"
	"github.com/gabormeresz/profAssistant-sub000/internal/storage"
	"github.com/gabormeresz/profAssistant-sub000/internal/tools"
)

// app holds the wired components for one CLI invocation
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      storage.Store
	controller *iterative.Controller
	metrics    *iterative.PrometheusCollector
	documents  *tools.KeywordIndex
	server     *http.Server
}

// loadConfig reads the config file and applies root flag overrides
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOptional(defaultConfigFile)
	}
	if err != nil {
		return cfg, err
	}

	overrides := []struct {
		flag string
		dest *string
	}{
		{"log-level", &cfg.Log.Level},
		{"storage", &cfg.Storage.Backend},
		{"db", &cfg.Storage.Path},
		{"metrics-addr", &cfg.Metrics.Addr},
		{"provider", &cfg.Model.Provider},
		{"model", &cfg.Model.Model},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.dest, _ = cmd.Flags().GetString(o.flag)
		}
	}
	if cmd.Flags().Changed("no-wait") {
		cfg.Loop.NoWait, _ = cmd.Flags().GetBool("no-wait")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens only the checkpoint store, for read-only commands
func openStore(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(cfg.Log, os.Stderr)}
	a.store, err = storage.NewStore(cmd.Context(), cfg.Storage, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return a, nil
}

// newApp wires the full generation stack
func newApp(cmd *cobra.Command) (*app, error) {
	a, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	registry := prometheus.NewRegistry()
	metrics, err := iterative.NewPrometheusCollector(registry)
	if err != nil {
		return err
	}
	a.metrics = metrics

	model, err := ai.NewModel(cfg.AIConfig(a.logger))
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}
	scorer, err := evaluation.NewScorer(model, cfg.Loop.ApprovalThreshold, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create scorer: %w", err)
	}

	a.documents = tools.NewKeywordIndex()
	controller, err := iterative.NewController(iterative.Deps{
		Model:     model,
		Scorer:    scorer,
		Tools:     a.researchTools(),
		Documents: a.documents,
		Store:     a.store,
		Metrics:   metrics,
		Logger:    a.logger,
		MaxTokens: cfg.Model.MaxTokens,
	}, cfg.Loop)
	if err != nil {
		return err
	}
	a.controller = controller

	if cfg.Metrics.Addr != "" {
		a.serveMetrics(registry)
	}
	return nil
}

// researchTools builds the web and Wikipedia tools enabled in the config
func (a *app) researchTools() *tools.Invoker {
	tc := a.cfg.Tools
	httpCfg := tools.HTTPConfig{
		Client:     &http.Client{Timeout: tc.HTTPTimeout},
		Limiter:    tools.NewLimiter(tc.RequestsPerSecond),
		MaxResults: tc.MaxResults,
	}

	var enabled []tools.Tool
	if tc.WebSearch {
		enabled = append(enabled, tools.NewWebSearchTool(httpCfg))
	}
	if tc.Wikipedia {
		enabled = append(enabled, tools.NewWikipediaTool(httpCfg, tc.WikipediaLanguage))
	}
	return tools.NewInvoker(tc.InvokerConfig(a.metrics.RecordToolCall), a.logger, enabled...)
}

func (a *app) serveMetrics(registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	a.logger.Info("serving metrics", slog.String("addr", a.cfg.Metrics.Addr))
}

// Close releases the store and stops the metrics server
func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close checkpoint store", slog.Any("error", err))
		}
	}
}
