// Package broadcast fans board and timeline snapshots out through Redis.
// Each snapshot is published on a per-project channel and kept under a key
// with a TTL so late subscribers can fetch the latest state.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

var ErrNoSnapshot = errors.New("broadcast: no snapshot stored")

type Config struct {
	ChannelPrefix string
	TTL           time.Duration
	QueueSize     int
}

// Envelope is the wire format of a published snapshot
type Envelope struct {
	ProjectID   uuid.UUID          `json:"project_id"`
	Kind        ports.SnapshotKind `json:"kind"`
	Version     uint64             `json:"version"`
	PublishedAt time.Time          `json:"published_at"`
	Snapshot    json.RawMessage    `json:"snapshot"`
}

type message struct {
	projectID uuid.UUID
	kind      ports.SnapshotKind
	version   uint64
	snapshot  any
}

// Publisher implements ports.SnapshotPublisher. Publish only enqueues; a
// single worker writes to Redis in enqueue order.
type Publisher struct {
	rdb    *redis.Client
	cfg    Config
	logger *logger.Logger
	now    func() time.Time

	published *prometheus.CounterVec
	dropped   prometheus.Counter

	mu     sync.RWMutex
	closed bool
	queue  chan message
	done   chan struct{}
}

func NewPublisher(rdb *redis.Client, cfg Config, log *logger.Logger, reg prometheus.Registerer) *Publisher {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "aeon"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	p := &Publisher{
		rdb:    rdb,
		cfg:    cfg,
		logger: log.WithComponent("broadcast"),
		now:    time.Now,
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aeon_snapshots_published_total",
			Help: "Snapshots written to Redis by kind and outcome",
		}, []string{"kind", "outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aeon_snapshots_dropped_total",
			Help: "Snapshots dropped because the publish queue was full",
		}),
		queue: make(chan message, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	if reg != nil {
		reg.MustRegister(p.published, p.dropped)
	}
	go p.run()
	return p
}

// Publish enqueues a snapshot. It never blocks; when the queue is full the
// snapshot is dropped since a newer one will follow.
func (p *Publisher) Publish(projectID uuid.UUID, kind ports.SnapshotKind, version uint64, snapshot any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- message{projectID: projectID, kind: kind, version: version, snapshot: snapshot}:
	default:
		p.dropped.Inc()
		p.logger.Warnw("Snapshot queue full, dropping", "project_id", projectID, "kind", kind, "version", version)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := p.write(ctx, msg)
		cancel()
		if err != nil {
			p.published.WithLabelValues(string(msg.kind), "error").Inc()
			p.logger.Errorw("Failed to publish snapshot", "project_id", msg.projectID, "kind", msg.kind, "version", msg.version, "error", err)
			continue
		}
		p.published.WithLabelValues(string(msg.kind), "ok").Inc()
	}
}

func (p *Publisher) write(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg.snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data, err := json.Marshal(Envelope{
		ProjectID:   msg.projectID,
		Kind:        msg.kind,
		Version:     msg.version,
		PublishedAt: p.now().UTC(),
		Snapshot:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.Set(ctx, p.key(msg.projectID, msg.kind), data, p.cfg.TTL)
	pipe.Publish(ctx, p.Channel(msg.projectID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

// Latest returns the last snapshot stored for a project view
func (p *Publisher) Latest(ctx context.Context, projectID uuid.UUID, kind ports.SnapshotKind) (*Envelope, error) {
	raw, err := p.rdb.Get(ctx, p.key(projectID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &env, nil
}

// Channel is the pub/sub channel carrying every snapshot of projectID
func (p *Publisher) Channel(projectID uuid.UUID) string {
	return p.cfg.ChannelPrefix + ":project:" + projectID.String()
}

func (p *Publisher) key(projectID uuid.UUID, kind ports.SnapshotKind) string {
	return p.cfg.ChannelPrefix + ":snapshot:" + projectID.String() + ":" + string(kind)
}

// Close stops accepting snapshots and waits until the queue is drained or ctx ends
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining snapshot queue: %w", ctx.Err())
	}
}
