package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/maktab-uz/maktab/core"
)

// Redis is a core.Cache backed by a Redis server, expiry is handled server-side.
type Redis struct {
	cli *redis.Client
}

var _ core.Cache = (*Redis)(nil) // interface compliance check

func NewRedis(cli *redis.Client) *Redis {
	return &Redis{cli: cli}
}

// OpenRedis connects to the server configured in conf and waits for it to answer.
func OpenRedis(ctx context.Context, conf core.RedisConfig) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: conf.Addr, Password: conf.Password, DB: conf.DB})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return NewRedis(cli), nil
}

func (c *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := c.cli.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", core.ErrCacheMiss
	}
	if err != nil {
		return "", errors.Wrapf(err, "getting %q", key)
	}
	return val, nil
}

// Set stores value under key. A ttl <= 0 keeps the entry until deleted.
func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return errors.Wrapf(c.cli.Set(ctx, key, value, ttl).Err(), "setting %q", key)
}

func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.cli.Del(ctx, keys...).Err(), "deleting keys")
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.cli.Close()
}
