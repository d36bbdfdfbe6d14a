// Package redis provides the go-redis connection helper used by the
// Redis-backed counter store: a retrying Connect and a healthcheck probe.
//
// Usage:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    // terminate: counters cannot be enforced without their store
//	}
//	defer client.Close()
//
//	store := counter.NewRedisStore(client)
package redis
