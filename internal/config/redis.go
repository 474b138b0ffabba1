package config

// Redis backs the post cache and the rate limiter.  An unreachable server
// at startup is logged by callers; each cache or limiter call then fails
// open until the server comes back.

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from the environment:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand, used when host/port are not both set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS (true/1/yes/on)
func RedisOptions() *redis.Options {
    addr := os.Getenv("REDIS_ADDR")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    opts := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient builds a client from RedisOptions and pings the server
// with a short timeout.  The client is returned even when the ping fails:
// go-redis reconnects on its own and the cache degrades per operation, so
// the error is only for the startup log.
func NewRedisClient() (*redis.Client, error) {
    client := redis.NewClient(RedisOptions())
    // Bounded ping so a missing server does not delay startup.
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    return client, client.Ping(ctx).Err()
}
