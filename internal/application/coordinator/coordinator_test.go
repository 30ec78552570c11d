package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aeonplan/core/internal/domain/entities"
	"github.com/aeonplan/core/internal/infrastructure/logger"
	"github.com/aeonplan/core/internal/ports"
)

func newCoordinator(t *testing.T, timeout time.Duration) (*Coordinator, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(Config{CallTimeout: timeout}, logger.Nop(), metrics), metrics
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	c, _ := newCoordinator(t, time.Second)
	release := make(chan struct{})
	var finished atomic.Bool

	start := time.Now()
	c.Dispatch(context.Background(), Operation{Action: ActionUpdate, Entity: "board_task"}, func(ctx context.Context) error {
		<-release
		finished.Store(true)
		return nil
	})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("Dispatch waited for the call")
	}
	if finished.Load() {
		t.Fatal("call finished before release")
	}

	close(release)
	c.Wait()
	if !finished.Load() {
		t.Fatal("call did not run")
	}
}

func TestFailuresAreCountedNotRetried(t *testing.T) {
	c, metrics := newCoordinator(t, time.Second)
	var calls atomic.Int32

	c.Dispatch(context.Background(), Operation{Action: ActionReorder, Entity: "board_task"}, func(ctx context.Context) error {
		calls.Add(1)
		return entities.ErrUnauthorized
	})
	c.Dispatch(context.Background(), Operation{Action: ActionCreate, Entity: "row"}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	c.Wait()

	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if got := testutil.ToFloat64(metrics.calls.WithLabelValues("board_task", ActionReorder, string(entities.KindUnauthorized))); got != 1 {
		t.Fatalf("expected one unauthorized failure, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.calls.WithLabelValues("row", ActionCreate, "ok")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
}

func TestCallTimeoutAndDetachedContext(t *testing.T) {
	c, metrics := newCoordinator(t, 20*time.Millisecond)
	actor := uuid.New()

	parent, cancel := context.WithCancel(ports.WithActor(context.Background(), actor))
	var sawActor atomic.Bool
	c.Dispatch(parent, Operation{Action: ActionDelete, Entity: "timeline_task"}, func(ctx context.Context) error {
		if id, ok := ports.ActorFrom(ctx); ok && id == actor {
			sawActor.Store(true)
		}
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	c.Wait()

	if !sawActor.Load() {
		t.Fatal("actor was not carried into the call")
	}
	if got := testutil.ToFloat64(metrics.calls.WithLabelValues("timeline_task", ActionDelete, string(entities.KindTransport))); got != 1 {
		t.Fatalf("expected the deadline to be counted as transport failure, got %v", got)
	}
}

func TestPanicIsContained(t *testing.T) {
	c, metrics := newCoordinator(t, time.Second)
	c.Dispatch(context.Background(), Operation{Action: ActionUpdate, Entity: "row"}, func(ctx context.Context) error {
		panic("boom")
	})
	c.Wait()
	if got := testutil.ToFloat64(metrics.calls.WithLabelValues("row", ActionUpdate, string(entities.KindTransport))); got != 1 {
		t.Fatalf("expected panic to be recorded as failure, got %v", got)
	}
}

func TestCloseDrainsAndRejects(t *testing.T) {
	c, metrics := newCoordinator(t, time.Second)
	var done atomic.Bool
	c.Dispatch(context.Background(), Operation{Action: ActionCreate, Entity: "row"}, func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		done.Store(true)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !done.Load() {
		t.Fatal("Close returned before the call finished")
	}

	if c.Dispatch(context.Background(), Operation{Action: ActionCreate, Entity: "row"}, func(context.Context) error {
		return errors.New("should not run")
	}) {
		t.Fatal("Dispatch accepted a call after Close")
	}
	if got := testutil.ToFloat64(metrics.dropped); got != 1 {
		t.Fatalf("expected one dropped call, got %v", got)
	}
}
