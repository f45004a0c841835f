package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/samueltorres/lolcounter/pkg/configs"
	"github.com/samueltorres/lolcounter/pkg/counter"
	"github.com/samueltorres/lolcounter/pkg/file"
	"github.com/samueltorres/lolcounter/pkg/redis"
	"github.com/samueltorres/lolcounter/pkg/rest"
	"github.com/samueltorres/lolcounter/pkg/site"
	"github.com/samueltorres/lolcounter/pkg/transport/grpc"
	"github.com/samueltorres/lolcounter/pkg/transport/http"
	"github.com/sirupsen/logrus"
)

// store is a counter storage that can also report its reachability.
type store interface {
	counter.CounterStorage
	grpc.Pinger
}

func main() {
	config := parseConfig()
	logger := createLogger(config)

	// metrics
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		version.NewCollector("lolcounter"),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	counterConfig := counter.Config{
		URL:   config.Store.URL,
		Token: config.Store.Token,
		Key:   config.Counter.Key,
		Floor: config.Counter.Floor,
	}

	var storage store
	if counterConfig.Configured() {
		var err error
		storage, err = createCounterStorage(config, logger)
		if err != nil {
			logger.Fatalf("could not create counter storage: %v", err)
		}
	} else {
		logger.Warn("counter store credentials not found, serving the floor value")
	}

	siteService, err := createSiteService(config, logger)
	if err != nil {
		logger.Fatalf("could not create site service: %v", err)
	}

	counterService := counter.NewCounterService(storage, counterConfig, logger, metrics)

	if counterService.EnsureInitialized(context.Background()) {
		logger.WithField("count", counterService.Get(context.Background())).Info("counter ready")
	}

	cancel := make(chan struct{})

	var g run.Group
	{
		healthServer := grpc.NewServer(
			storage,
			logger,
			metrics,
			grpc.WithListen(config.GrpcAddr))

		g.Add(func() error {
			return healthServer.RunChecks(cancel)
		}, func(error) {})

		g.Add(func() error {
			return healthServer.Start()
		}, func(error) {
			healthServer.Stop()
		})
	}
	{
		counterHTTPServer := http.New(
			counterService,
			siteService,
			logger,
			metrics,
			http.WithListen(config.HttpAddr))

		g.Add(func() error {
			return counterHTTPServer.Start()
		}, func(err error) {
			counterHTTPServer.Stop(err)
		})
	}
	{
		debugServer := http.NewDebugServer(config.DebugAddr, metrics, logger)

		g.Add(func() error {
			return debugServer.Start()
		}, func(err error) {
			debugServer.Stop(err)
		})
	}
	{
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancel:
				return nil
			}
		}, func(error) {
			close(cancel)
		})
	}

	logger.Info("exit ", g.Run())
}

func parseConfig() configs.Config {
	fs := flag.NewFlagSet("lolcounter", flag.ExitOnError)
	var (
		grpcAddress  = fs.String("grpc-addr", ":8081", "grpc health address")
		httpAddress  = fs.String("http-addr", ":8080", "http address")
		debugAddress = fs.String("debug-addr", ":8083", "debug address for metrics and healthcheck")
		storeURL     = fs.String("kv-rest-api-url", "", "counter store url (https://, redis:// or rediss://)")
		storeToken   = fs.String("kv-rest-api-token", "", "counter store access token")
		storeTimeout = fs.Duration("store-timeout", 3*time.Second, "counter store request timeout")
		storeRetries = fs.Int("store-retries", 2, "counter store request retries")
		counterKey   = fs.String("counter-key", counter.DefaultKey, "counter store key")
		counterFloor = fs.Int64("counter-floor", counter.DefaultFloor, "minimum counter value")
		siteFile     = fs.String("site-file", "", "site settings file, built-in settings when empty")
		logLevel     = fs.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix()); err != nil {
		fmt.Fprintf(os.Stderr, "could not parse configuration: %v\n", err)
		os.Exit(1)
	}

	var config configs.Config
	{
		config.GrpcAddr = *grpcAddress
		config.HttpAddr = *httpAddress
		config.DebugAddr = *debugAddress
		config.Store.URL = *storeURL
		config.Store.Token = *storeToken
		config.Store.Timeout = *storeTimeout
		config.Store.Retries = *storeRetries
		config.Counter.Key = *counterKey
		config.Counter.Floor = *counterFloor
		config.SiteFile = *siteFile
		config.LogLevel = *logLevel
	}

	return config
}

func createLogger(config configs.Config) *logrus.Logger {
	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.ErrorLevel
	}

	logger.Infof("setting log level to %v", level)
	logger.SetLevel(level)

	return logger
}

func createCounterStorage(config configs.Config, logger *logrus.Logger) (store, error) {
	u, err := url.Parse(config.Store.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		redisClient, err := redis.NewClient(config.Store.URL, config.Store.Token, config.Store.Timeout)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.Store.Timeout)
		defer cancel()

		storage := redis.NewRemoteStorage(redisClient, logger)
		if err := storage.Ping(ctx); err != nil {
			logger.WithError(err).Warn("could not connect to redis, counter will serve the floor until it is reachable")
		}
		return storage, nil

	case "http", "https":
		return rest.NewRemoteStorage(
			config.Store.URL,
			config.Store.Token,
			rest.Options{
				Timeout:  config.Store.Timeout,
				RetryMax: config.Store.Retries,
			},
			logger), nil

	default:
		return nil, fmt.Errorf("unsupported store url scheme %q", u.Scheme)
	}
}

func createSiteService(config configs.Config, logger *logrus.Logger) (site.SettingsService, error) {
	if config.SiteFile == "" {
		return site.NewStaticSettings(site.Defaults()), nil
	}

	siteService, err := file.NewSiteService(config.SiteFile, logger)
	if err != nil {
		return nil, err
	}
	siteService.Watch()

	return siteService, nil
}
