package redis

import (
	// Go Internal Packages
	"context"
	"strings"

	// External Packages
	"github.com/redis/go-redis/v9"
)

// Connect connects to redis and pings it. uri is either a host:port address
// or a redis:// URL; an explicit password overrides the one in the URL.
func Connect(ctx context.Context, uri, password string) (*redis.Client, error) {
	opts := &redis.Options{Addr: uri}
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	if password != "" {
		opts.Password = password
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
