// Package config loads environment-driven configuration structs.
//
// Each package that needs configuration declares a struct with `env` tags
// and loads it at startup:
//
//	type HTTPConfig struct {
//		Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
//		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg HTTPConfig
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is loaded once, best-effort, before
// the first parse. Loaded values are cached per struct type so repeated
// loads across packages see one consistent snapshot.
package config
