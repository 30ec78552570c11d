package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

func newPublisher(t *testing.T, cfg Config) (*Publisher, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rc.Close() })
	return NewPublisher(rc, cfg, logger.Nop(), prometheus.NewRegistry()), rc, m
}

func TestPublishStoresLatestAndNotifiesSubscribers(t *testing.T) {
	p, rc, m := newPublisher(t, Config{ChannelPrefix: "test", TTL: time.Minute})
	ctx := context.Background()
	projectID := uuid.New()

	sub := rc.Subscribe(ctx, p.Channel(projectID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p.Publish(projectID, ports.SnapshotBoard, 1, map[string]int{"cards": 1})
	p.Publish(projectID, ports.SnapshotBoard, 2, map[string]int{"cards": 2})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	env, err := p.Latest(ctx, projectID, ports.SnapshotBoard)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if env.Version != 2 || env.Kind != ports.SnapshotBoard || env.ProjectID != projectID {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var body map[string]int
	if err := json.Unmarshal(env.Snapshot, &body); err != nil || body["cards"] != 2 {
		t.Fatalf("unexpected body %s (%v)", env.Snapshot, err)
	}
	if ttl := m.TTL("test:snapshot:" + projectID.String() + ":board"); ttl != time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	ch := sub.Channel()
	for want := uint64(1); want <= 2; want++ {
		select {
		case msg := <-ch:
			var got Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
				t.Fatalf("decode message: %v", err)
			}
			if got.Version != want {
				t.Fatalf("expected version %d, got %d", want, got.Version)
			}
		case <-time.After(time.Second):
			t.Fatalf("no message for version %d", want)
		}
	}
}

func TestLatestWithoutSnapshot(t *testing.T) {
	p, _, _ := newPublisher(t, Config{})
	defer p.Close(context.Background())

	_, err := p.Latest(context.Background(), uuid.New(), ports.SnapshotTimeline)
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestPublishAfterCloseIsIgnored(t *testing.T) {
	p, _, _ := newPublisher(t, Config{})
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	projectID := uuid.New()
	p.Publish(projectID, ports.SnapshotTimeline, 1, struct{}{})

	if _, err := p.Latest(context.Background(), projectID, ports.SnapshotTimeline); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}
