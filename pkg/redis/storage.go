package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RemoteStorage keeps the counter on a redis server.
type RemoteStorage struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRemoteStorage(client *redis.Client, logger *logrus.Logger) *RemoteStorage {
	return &RemoteStorage{
		client: client,
		logger: logger,
	}
}

// NewClient builds a redis client from a redis:// or rediss:// url. A non
// empty password overrides the one embedded in the url, a non zero timeout
// applies to dialing, reads and writes.
func NewClient(url, password string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	if password != "" {
		opts.Password = password
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}

	return redis.NewClient(opts), nil
}

func (s RemoteStorage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.WithContext(ctx).Exists(key).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis storage exists failure")
	}

	return n > 0, nil
}

func (s RemoteStorage) Set(ctx context.Context, key string, value int64) error {
	err := s.client.WithContext(ctx).Set(key, value, 0).Err()
	if err != nil {
		return errors.Wrap(err, "redis storage set failure")
	}

	return nil
}

func (s RemoteStorage) SetNX(ctx context.Context, key string, value int64) (bool, error) {
	ok, err := s.client.WithContext(ctx).SetNX(key, value, 0).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis storage setnx failure")
	}

	return ok, nil
}

func (s RemoteStorage) Get(ctx context.Context, key string) (interface{}, error) {
	v, err := s.client.WithContext(ctx).Get(key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis storage get failure")
	}

	return v, nil
}

func (s RemoteStorage) Incr(ctx context.Context, key string) (interface{}, error) {
	v, err := s.client.WithContext(ctx).Incr(key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis storage incr failure")
	}

	return v, nil
}

func (s RemoteStorage) IncrBy(ctx context.Context, key string, n int64) (interface{}, error) {
	v, err := s.client.WithContext(ctx).IncrBy(key, n).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis storage incrby failure")
	}

	return v, nil
}

// Ping checks the connection to the redis server.
func (s RemoteStorage) Ping(ctx context.Context) error {
	if err := s.client.WithContext(ctx).Ping().Err(); err != nil {
		return errors.Wrap(err, "redis storage ping failure")
	}

	s.logger.Debug("redis storage reachable")
	return nil
}
