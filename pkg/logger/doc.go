// Package logger builds the slog.Logger used across the engine.
//
// Output format and level are environment-driven:
//
//	var cfg logger.Config
//	config.MustLoad(&cfg)
//	log := logger.NewFromConfig(cfg, slog.String("service", "quota-engine"))
//
// or constructed directly:
//
//	log := logger.New(logger.WithFormat(logger.FormatJSON), logger.WithLevel(slog.LevelInfo))
//
// Expected business outcomes (quota denied, trial ineligible) belong at
// info or debug; error level is reserved for genuine system failures.
package logger
