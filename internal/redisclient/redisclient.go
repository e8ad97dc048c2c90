// Package redisclient builds the single go-redis client shared by
// asynq's transport, the rule index, and the automation engine's
// time-condition cache. The teacher imported both go-redis v8 and v9
// for no functional reason; this collapses onto v9 everywhere.
package redisclient

import "github.com/redis/go-redis/v9"

// New builds a redis.Client for addr.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}
