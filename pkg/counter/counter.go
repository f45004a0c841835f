package counter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultFloor is the highest value the counter is known to have reached
// before the current deployment.
const DefaultFloor int64 = 170000

// DefaultKey is the store key holding the counter.
const DefaultKey = "lol_counter"

// Config holds the counter settings fixed at deployment time.
type Config struct {
	// URL and Token address the remote store. With either one missing the
	// service runs in degraded mode and never touches the store.
	URL   string
	Token string

	Key   string
	Floor int64
}

// Configured reports whether the store endpoint and credential are both present.
func (c Config) Configured() bool {
	return c.URL != "" && c.Token != ""
}

type counterMetrics struct {
	operations  *prometheus.CounterVec
	corrections *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

func newCounterMetrics(r prometheus.Registerer) *counterMetrics {
	var m counterMetrics

	m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counter_operations_total",
		Help: "Total counter operations by outcome",
	}, []string{"operation", "outcome"})

	m.corrections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counter_corrections_total",
		Help: "Total corrective writes of the floor value",
	}, []string{"reason"})

	m.storeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "counter_store_errors_total",
		Help: "Total failed store commands",
	}, []string{"command"})

	r.MustRegister(m.operations, m.corrections, m.storeErrors)
	return &m
}

// CounterService serves the shared event counter. It keeps no state of its
// own: every value lives in the storage and increments rely on the storage's
// atomic INCR/INCRBY.
//
// Values below the floor are treated as corrupt and written back as the floor.
// A legitimate reset below the floor is indistinguishable from corruption and
// gets clamped the same way.
type CounterService struct {
	storage CounterStorage
	config  Config
	logger  *logrus.Logger
	metrics *counterMetrics
}

// NewCounterService creates a new counter service. storage may be nil when
// config is not Configured.
func NewCounterService(
	storage CounterStorage,
	config Config,
	logger *logrus.Logger,
	registerer prometheus.Registerer) *CounterService {

	if config.Key == "" {
		config.Key = DefaultKey
	}

	return &CounterService{
		storage: storage,
		config:  config,
		logger:  logger,
		metrics: newCounterMetrics(registerer),
	}
}

// Floor returns the configured minimum counter value.
func (cs *CounterService) Floor() int64 {
	return cs.config.Floor
}

// Degraded reports whether the service runs without a store.
func (cs *CounterService) Degraded() bool {
	return !cs.config.Configured() || cs.storage == nil
}

// EnsureInitialized creates the counter with the floor value when the key is
// absent. An existing key is never overwritten: the initializing write is a
// SET NX, so an increment landing between EXISTS and the write survives. It
// returns false when the store is not configured or not reachable.
func (cs *CounterService) EnsureInitialized(ctx context.Context) bool {
	if cs.Degraded() {
		cs.logger.Debug("counter store not configured, using floor")
		return false
	}
	ctx = context.WithoutCancel(ctx)

	exists, err := cs.storage.Exists(ctx, cs.config.Key)
	if err != nil {
		cs.storeError("exists", err)
		return false
	}
	if exists {
		return true
	}

	created, err := cs.storage.SetNX(ctx, cs.config.Key, cs.config.Floor)
	if err != nil {
		cs.storeError("setnx", err)
		return false
	}
	if created {
		cs.logger.WithField("floor", cs.config.Floor).Info("counter did not exist, initialized")
	}
	return true
}

// Get returns the current counter value, never less than the floor.
func (cs *CounterService) Get(ctx context.Context) int64 {
	return cs.run(ctx, "get", func(ctx context.Context) (interface{}, error) {
		return cs.storage.Get(ctx, cs.config.Key)
	})
}

// Increment adds one to the counter and returns the new value.
func (cs *CounterService) Increment(ctx context.Context) int64 {
	return cs.run(ctx, "incr", func(ctx context.Context) (interface{}, error) {
		return cs.storage.Incr(ctx, cs.config.Key)
	})
}

// IncrementBy adds amount to the counter and returns the new value. A
// non-positive amount leaves the counter alone and behaves like Get.
func (cs *CounterService) IncrementBy(ctx context.Context, amount int64) int64 {
	if amount <= 0 {
		return cs.Get(ctx)
	}

	return cs.run(ctx, "incrby", func(ctx context.Context) (interface{}, error) {
		return cs.storage.IncrBy(ctx, cs.config.Key, amount)
	})
}

// run executes a single store command with initialization, decoding and
// floor enforcement around it.
func (cs *CounterService) run(ctx context.Context, command string, do func(context.Context) (interface{}, error)) int64 {
	if !cs.EnsureInitialized(ctx) {
		cs.metrics.operations.WithLabelValues(command, "fallback").Inc()
		return cs.config.Floor
	}
	ctx = context.WithoutCancel(ctx)

	raw, err := do(ctx)
	if err != nil {
		cs.storeError(command, err)
		cs.metrics.operations.WithLabelValues(command, "fallback").Inc()
		return cs.config.Floor
	}

	value, ok := Decode(raw)
	if !ok {
		cs.logger.WithFields(logrus.Fields{
			"command": command,
			"reply":   raw,
		}).Warn("could not decode counter value, correcting to floor")
		return cs.correct(ctx, command, "undecodable")
	}

	if value < cs.config.Floor {
		cs.logger.WithFields(logrus.Fields{
			"command": command,
			"value":   value,
			"floor":   cs.config.Floor,
		}).Warn("counter value below floor, correcting")
		return cs.correct(ctx, command, "below_floor")
	}

	cs.metrics.operations.WithLabelValues(command, "ok").Inc()
	return value
}

func (cs *CounterService) correct(ctx context.Context, command, reason string) int64 {
	cs.metrics.corrections.WithLabelValues(reason).Inc()
	cs.metrics.operations.WithLabelValues(command, "corrected").Inc()

	if err := cs.storage.Set(ctx, cs.config.Key, cs.config.Floor); err != nil {
		cs.storeError("set", err)
	}
	return cs.config.Floor
}

func (cs *CounterService) storeError(command string, err error) {
	cs.metrics.storeErrors.WithLabelValues(command).Inc()
	cs.logger.WithError(err).WithField("command", command).Error("counter store command failed")
}
