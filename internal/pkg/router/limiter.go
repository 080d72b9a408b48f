package router

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/healhub/healhub-auth/internal/pkg/cache"
)

// NewLimiterStorage derives a Redis-backed limiter store from the cache
// connection. Counters live in database 1 so they never collide with cache
// keys and survive a process restart.
func NewLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := ""

	if client := cache.GetClient(); client != nil {
		opts := client.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		password = opts.Password
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
