package configs

import "time"

type Config struct {
	GrpcAddr  string
	HttpAddr  string
	DebugAddr string
	Store     StoreConfig
	Counter   CounterConfig
	SiteFile  string
	LogLevel  string
}

// StoreConfig addresses the key-value store. The URL scheme picks the
// backend: redis:// and rediss:// speak the redis protocol, http:// and
// https:// the REST API.
type StoreConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Retries int
}

type CounterConfig struct {
	Key   string
	Floor int64
}
