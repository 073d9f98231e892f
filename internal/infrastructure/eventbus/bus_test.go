package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// === Fan-out ===

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus(testLogger(), 16)
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	bus.Subscribe(EventTypePhaseChanged, func(_ context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()
		payload := event.Payload().(PhaseChangedPayload)
		got = append(got, payload.To)
	})

	bus.Publish(context.Background(), NewEvent(EventTypePhaseChanged, PhaseChangedPayload{From: "idle", To: "lobby"}))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "lobby"
	})
}

func TestBus_WildcardSeesEverything(t *testing.T) {
	bus := NewInMemoryBus(testLogger(), 16)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("*", func(context.Context, Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	bus.Publish(context.Background(), NewEvent(EventTypeKeyExpired, nil))
	bus.Publish(context.Background(), NewEvent(EventTypeTelemetryUp, nil))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestBus_UnrelatedTypeNotDelivered(t *testing.T) {
	bus := NewInMemoryBus(testLogger(), 16)
	defer bus.Close()

	var mu sync.Mutex
	wrong := 0
	bus.Subscribe(EventTypeKeyExpired, func(context.Context, Event) {
		mu.Lock()
		defer mu.Unlock()
		wrong++
	})

	done := make(chan struct{})
	bus.Subscribe(EventTypeRateLimited, func(context.Context, Event) {
		close(done)
	})

	bus.Publish(context.Background(), NewEvent(EventTypeRateLimited, RateLimitedPayload{RetryAfterSeconds: 3}))
	<-done

	mu.Lock()
	defer mu.Unlock()
	if wrong != 0 {
		t.Errorf("key-expired handler saw %d rate-limited events", wrong)
	}
}

// === Handler panics ===

func TestBus_HandlerPanicDoesNotKillDispatch(t *testing.T) {
	bus := NewInMemoryBus(testLogger(), 16)
	defer bus.Close()

	bus.Subscribe(EventTypeKeyExpired, func(context.Context, Event) {
		panic("handler exploded")
	})

	delivered := make(chan struct{})
	bus.Subscribe(EventTypeKeyExpired, func(context.Context, Event) {
		close(delivered)
	})

	bus.Publish(context.Background(), NewEvent(EventTypeKeyExpired, nil))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler never ran after the first panicked")
	}

	// The bus keeps dispatching afterwards.
	again := make(chan struct{})
	bus.Subscribe(EventTypeTelemetryUp, func(context.Context, Event) { close(again) })
	bus.Publish(context.Background(), NewEvent(EventTypeTelemetryUp, nil))
	select {
	case <-again:
	case <-time.After(2 * time.Second):
		t.Fatal("bus stopped dispatching after a handler panic")
	}
}

// === Close ===

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewInMemoryBus(testLogger(), 16)
	bus.Close()
	// Must not panic or block.
	bus.Publish(context.Background(), NewEvent(EventTypeKeyExpired, nil))
}
