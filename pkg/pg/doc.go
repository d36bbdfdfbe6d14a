// Package pg provides PostgreSQL helpers for the engine's durable stores:
// a pgx pool constructor with startup retries, goose-based schema
// migrations, healthchecks and error classifiers.
//
// Usage:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    // terminate: the engine cannot run without its store
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    // schema out of date and unfixable
//	}
package pg
