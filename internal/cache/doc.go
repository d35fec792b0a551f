// Package cache stores successful responses of read-only gateway
// operations.
//
// Two backends are available:
//
//   - an in-memory LRU cache with a maximum entry count
//   - a Redis cache shared between gateway replicas
//
// Both honor a per-entry TTL. Only successful backend responses are
// stored; failures and fallbacks are never cached.
//
// # Example Usage
//
//	c, err := cache.New(&cfg.Cache, logger)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	key := cache.TopStrategiesKey(10)
//	if body, err := c.Get(ctx, key); err == nil {
//	    return body
//	}
//
// # Thread Safety
//
// All cache implementations are safe for concurrent use.
package cache
