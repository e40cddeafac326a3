package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/derive"
	"github.com/sells-group/reconcile-cli/internal/locks"
	"github.com/sells-group/reconcile-cli/internal/pipeline"
	"github.com/sells-group/reconcile-cli/internal/registry"
	"github.com/sells-group/reconcile-cli/internal/resilience"
	"github.com/sells-group/reconcile-cli/internal/source"
	"github.com/sells-group/reconcile-cli/internal/store"
	"github.com/sells-group/reconcile-cli/pkg/extractor"
	"github.com/sells-group/reconcile-cli/pkg/knowledge"
)

// env holds the initialized store, schema, lock registry, and reconciler
// shared by the run/check/publish/serve commands.
type env struct {
	Store      store.Store
	Schema     *registry.Schema
	Locks      *locks.Registry
	Reconciler *pipeline.Reconciler
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv sets up the store, schema, source adapters, and reconciler.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	schema, err := loadSchema()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	docClient := extractor.NewClient(cfg.Extractor.Key, cfg.Extractor.BaseURL,
		extractor.WithRateLimit(cfg.Extractor.RatePerSecond))
	kbClient := knowledge.NewClient(cfg.Knowledge.Key, cfg.Knowledge.BaseURL,
		knowledge.WithRateLimit(cfg.Knowledge.RatePerSecond))

	retry := resilience.FromConfig(
		cfg.Pipeline.RetryAttempts,
		cfg.Pipeline.RetryBackoffMs,
		cfg.Pipeline.RetryMaxBackoffMs,
	)
	prefetch := source.NewPrefetcher(
		source.NewDocumentAdapter(docClient),
		source.NewKnowledgeAdapter(kbClient),
		retry,
	)

	rec := pipeline.New(
		schema,
		st,
		prefetch,
		derive.NewCalculator(derive.DefaultDerivations()),
		time.Duration(cfg.Pipeline.TimeoutSecs)*time.Second,
	)

	return &env{
		Store:      st,
		Schema:     schema,
		Locks:      locks.NewRegistry(st),
		Reconciler: rec,
	}, nil
}

// loadSchema reads the schema fixture, or falls back to the built-in
// deal-resume schema.
func loadSchema() (*registry.Schema, error) {
	if cfg.Schema.Path == "" {
		zap.L().Debug("no schema fixture configured, using built-in schema")
		return registry.DefaultSchema(), nil
	}
	schema, err := registry.LoadSchemaFromFile(cfg.Schema.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "load schema %s", cfg.Schema.Path)
	}
	zap.L().Info("schema loaded",
		zap.String("path", cfg.Schema.Path),
		zap.Int("fields", schema.Len()),
	)
	return schema, nil
}
