package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/cleanse"
	"github.com/sells-group/refinery-cli/internal/grants"
	"github.com/sells-group/refinery-cli/internal/mask"
	"github.com/sells-group/refinery-cli/internal/monitoring"
	"github.com/sells-group/refinery-cli/internal/pipeline"
	"github.com/sells-group/refinery-cli/internal/store"
	"github.com/sells-group/refinery-cli/internal/tabledef"
)

// env bundles the wired components commands operate on.
type env struct {
	Store     store.Store
	Grants    grants.Store
	Defs      *tabledef.Registry
	Runner    *pipeline.Runner
	Evaluator *mask.Evaluator
	Collector *monitoring.Collector

	// grantsShared is set when the grant store rides on the version
	// store's connection; Close then skips it.
	grantsShared bool
}

func (e *env) Close() {
	if e.Grants != nil && !e.grantsShared {
		e.Grants.Close()
	}
	if e.Store != nil {
		e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGrants opens the grant store. With no explicit grants driver it
// shares the version store's connection.
func initGrants(ctx context.Context, st store.Store) (grants.Store, bool, error) {
	if cfg.Grants.Driver == "" {
		switch s := st.(type) {
		case *store.SQLiteStore:
			return grants.NewSQLiteFromDB(s.DB()), true, nil
		case *store.PostgresStore:
			return grants.NewPostgresFromPool(s.Pool()), true, nil
		}
	}

	switch cfg.Grants.Driver {
	case "sqlite":
		gs, err := grants.NewSQLite(cfg.Grants.DatabaseURL)
		return gs, false, err
	case "postgres":
		gs, err := grants.NewPostgres(ctx, cfg.Grants.DatabaseURL)
		return gs, false, err
	default:
		return nil, false, eris.Errorf("unsupported grants driver: %s", cfg.Grants.Driver)
	}
}

func initDefs() (*tabledef.Registry, error) {
	defs := tabledef.NewRegistry()
	if cfg.Tables.DefsPath != "" {
		if err := defs.LoadDir(cfg.Tables.DefsPath); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	gs, shared, err := initGrants(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	defs, err := initDefs()
	if err != nil {
		st.Close()
		return nil, err
	}

	evaluator, err := mask.NewEvaluator(gs, mask.NewRegistry(), cfg.Mask.Rules)
	if err != nil {
		st.Close()
		return nil, err
	}

	collector := monitoring.NewCollector()
	runner := pipeline.NewRunner(cleanse.DefaultBuilder(), st, collector, pipeline.Options{
		Workers: cfg.Pipeline.Workers,
	})

	return &env{
		Store:        st,
		Grants:       gs,
		Defs:         defs,
		Runner:       runner,
		Evaluator:    evaluator,
		Collector:    collector,
		grantsShared: shared,
	}, nil
}
