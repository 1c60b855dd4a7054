package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/bootstrap"
	"github.com/asksql/asksql/internal/config"
	"github.com/asksql/asksql/internal/executor"
	"github.com/asksql/asksql/internal/history"
	s3store "github.com/asksql/asksql/internal/history/s3"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/observability"
	"github.com/asksql/asksql/internal/safety"
	"github.com/asksql/asksql/internal/schema"
	"github.com/asksql/asksql/internal/store"
	"github.com/asksql/asksql/internal/store/duckdb"
	"github.com/asksql/asksql/internal/store/postgres"
	"github.com/asksql/asksql/internal/store/sqlite"
	"github.com/asksql/asksql/internal/summarize"
	"github.com/asksql/asksql/internal/synth"
	"github.com/asksql/asksql/internal/workflow"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *store.DB
	introspector *schema.Introspector
	// historyStore is nil when history is disabled.
	historyStore *s3store.Store
	service      *agent.Service
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.DB, error) {
	storeCfg := store.Config{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		QueryTimeout:    cfg.QueryTimeout,
	}
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, storeCfg)
	case config.DriverDuckDB:
		return duckdb.Open(ctx, storeCfg)
	case config.DriverPostgres:
		return postgres.Open(ctx, storeCfg)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func openHistoryStore(ctx context.Context, cfg config.ObjectStoreConfig) (*s3store.Store, error) {
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.Endpoint,
		Region:           cfg.Region,
		Bucket:           cfg.Bucket,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		UseSSL:           cfg.UseSSL,
		Prefix:           cfg.Prefix,
		AutoCreateBucket: cfg.AutoCreateBucket,
	})
}

// openApp connects the store and seeds it when configured. The generator
// and history store are only built when withAgent is set.
func openApp(ctx context.Context, cfg config.Config, logs io.Writer, withAgent bool) (*app, error) {
	logger := observability.NewLogger(cfg, logs)

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a := &app{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		introspector: schema.NewIntrospector(db, db.Dialect()),
	}

	if cfg.Store.Bootstrap {
		applied, err := bootstrap.NewSeeder(db).Ensure(ctx)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("bootstrap store: %w", err)
		}
		logger.Info("store bootstrapped", slog.Int("statements", applied))
	}

	if !withAgent {
		return a, nil
	}
	if err := a.wireAgent(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireAgent(ctx context.Context) error {
	generator, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:           a.cfg.AI.BaseURL,
		APIKey:            a.cfg.AI.APIKey,
		Model:             a.cfg.AI.Model,
		Temperature:       a.cfg.AI.Temperature,
		Timeout:           a.cfg.AI.Timeout,
		RequestsPerSecond: a.cfg.AI.RequestsPerSecond,
		Burst:             a.cfg.AI.Burst,
	})
	if err != nil {
		return fmt.Errorf("initialize text generator: %w", err)
	}

	var recorder history.Recorder = history.NopRecorder{}
	if a.cfg.History.Enabled {
		a.historyStore, err = openHistoryStore(ctx, a.cfg.ObjectStore)
		if err != nil {
			return fmt.Errorf("initialize history store: %w", err)
		}
		recorder = history.NewObjectRecorder(a.historyStore)
	}

	orchestrator := &workflow.Orchestrator{
		Schema:      a.introspector,
		Synthesizer: synth.NewSynthesizer(generator),
		Executor:    executor.NewExecutor(a.db, a.cfg.Store.MaxRows),
		Summarizer:  summarize.NewSummarizer(generator),
		Gate:        safety.Evaluate,
		Dialect:     a.db.Dialect().Name,
		Logger:      a.logger,
	}
	a.service = &agent.Service{
		Runner:   orchestrator,
		Recorder: recorder,
		Logger:   a.logger,
	}
	a.logger.Info("agent ready",
		slog.String("model", generator.Model()),
		slog.Bool("history", a.cfg.History.Enabled),
	)
	return nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
