// Package coordinator decouples local mutations from their persistence calls.
//
// Stores apply a mutation to memory first and then hand the matching call to
// Dispatch, which runs it on its own goroutine with a per-call timeout. The
// outcome is only logged and counted: nothing is retried and nothing is
// written back into store state.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/logger"
)

// Actions
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionReorder = "reorder"
)

// Operation describes one persistence call for logs and metrics.
type Operation struct {
	Action    string
	Entity    string
	EntityID  uuid.UUID
	ProjectID uuid.UUID
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s %s", o.Action, o.Entity, o.EntityID)
}

type Config struct {
	CallTimeout time.Duration
}

// Metrics are the coordinator's Prometheus collectors
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	dropped  prometheus.Counter
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aeon_persistence_calls_total",
				Help: "Background persistence calls by entity, action and outcome",
			},
			[]string{"entity", "action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aeon_persistence_call_duration_seconds",
				Help:    "Background persistence call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "action"},
		),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aeon_persistence_calls_in_flight",
			Help: "Persistence calls currently running",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeon_persistence_calls_dropped_total",
			Help: "Calls dispatched after the coordinator was closed",
		}),
	}
	reg.MustRegister(m.calls, m.duration, m.inflight, m.dropped)
	return m
}

// Coordinator runs persistence calls in the background
type Coordinator struct {
	cfg     Config
	logger  *logger.Logger
	metrics *Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a coordinator. metrics may be nil.
func New(cfg Config, log *logger.Logger, metrics *Metrics) *Coordinator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Coordinator{
		cfg:     cfg,
		logger:  log.WithComponent("coordinator"),
		metrics: metrics,
	}
}

// Dispatch starts fn and returns immediately. Only the values of ctx are kept;
// the caller going away does not cancel the call.
func (c *Coordinator) Dispatch(ctx context.Context, op Operation, fn func(context.Context) error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warnw("Coordinator closed, dropping persistence call", "op", op.String())
		if c.metrics != nil {
			c.metrics.dropped.Inc()
		}
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), op, fn)
	return true
}

func (c *Coordinator) run(ctx context.Context, op Operation, fn func(context.Context) error) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.inflight.Inc()
		defer c.metrics.inflight.Dec()
	}

	start := time.Now()
	err := call(ctx, fn)
	elapsed := time.Since(start)

	kind := entities.Classify(err)
	c.logger.LogPersistenceCall(op.Action, op.Entity, op.EntityID.String(), elapsed, string(kind), err)

	if c.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(kind)
		}
		c.metrics.calls.WithLabelValues(op.Entity, op.Action, outcome).Inc()
		c.metrics.duration.WithLabelValues(op.Entity, op.Action).Observe(elapsed.Seconds())
	}
}

func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: persistence call panicked: %v", entities.ErrTransport, p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every dispatched call has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops accepting calls and waits for the in-flight ones or ctx.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for persistence calls: %w", ctx.Err())
	}
}
