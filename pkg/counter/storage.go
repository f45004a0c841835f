package counter

import "context"

// CounterStorage is the remote key-value store holding the counter.
// Get, Incr and IncrBy return the raw store reply; only Decode interprets it.
// Get returns a nil reply when the key does not exist.
type CounterStorage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value int64) error
	// SetNX writes value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value int64) (bool, error)
	Get(ctx context.Context, key string) (interface{}, error)
	Incr(ctx context.Context, key string) (interface{}, error)
	IncrBy(ctx context.Context, key string, n int64) (interface{}, error)
}
