package livegame

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/eventbus"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, event eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Subscribe(string, eventbus.Handler) {}
func (b *recordingBus) Close()                             {}

func (b *recordingBus) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type() == eventType {
			n++
		}
	}
	return n
}

// telemetryStub serves swappable snapshot and event payloads over TLS,
// the way the real source does.
type telemetryStub struct {
	mu       sync.Mutex
	events   []Event
	snapshot Snapshot
	fail     bool
	server   *httptest.Server
}

func newTelemetryStub() *telemetryStub {
	stub := &telemetryStub{}
	stub.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		if stub.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/eventdata":
			json.NewEncoder(w).Encode(map[string]any{"Events": stub.events})
		case "/allgamedata":
			json.NewEncoder(w).Encode(stub.snapshot)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return stub
}

func (s *telemetryStub) setEvents(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}

func (s *telemetryStub) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func drainEvents(p *Poller) []Event {
	var out []Event
	for {
		select {
		case e := <-p.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

// === Event feed ===

func TestPoller_EventIDsMonotonic(t *testing.T) {
	stub := newTelemetryStub()
	defer stub.server.Close()

	p := NewPoller(PollerConfig{BaseURL: stub.server.URL}, &recordingBus{}, testLogger())

	stub.setEvents([]Event{
		{EventID: 0, EventName: EventGameStart},
		{EventID: 1, EventName: EventMinionsSpawn},
		{EventID: 2, EventName: EventChampionKill},
	})
	p.pollEvents()

	got := drainEvents(p)
	if len(got) != 3 {
		t.Fatalf("delivered %d events, want 3", len(got))
	}

	// The feed is cumulative; a re-poll with overlap delivers only news.
	stub.setEvents([]Event{
		{EventID: 1, EventName: EventMinionsSpawn},
		{EventID: 2, EventName: EventChampionKill},
		{EventID: 4, EventName: EventDragonKill},
		{EventID: 3, EventName: EventChampionKill},
	})
	p.pollEvents()

	got = drainEvents(p)
	if len(got) != 2 {
		t.Fatalf("delivered %d fresh events, want 2", len(got))
	}
	if got[0].EventID != 3 || got[1].EventID != 4 {
		t.Errorf("fresh events out of order: %d then %d", got[0].EventID, got[1].EventID)
	}

	// Nothing new: nothing delivered.
	p.pollEvents()
	if got := drainEvents(p); len(got) != 0 {
		t.Errorf("stale poll delivered %d events", len(got))
	}
}

func TestPoller_ResetReplaysFeed(t *testing.T) {
	stub := newTelemetryStub()
	defer stub.server.Close()

	p := NewPoller(PollerConfig{BaseURL: stub.server.URL}, &recordingBus{}, testLogger())
	stub.setEvents([]Event{{EventID: 0, EventName: EventGameStart}})

	p.pollEvents()
	if got := drainEvents(p); len(got) != 1 {
		t.Fatalf("first poll delivered %d events", len(got))
	}

	p.Reset()
	p.pollEvents()
	if got := drainEvents(p); len(got) != 1 {
		t.Errorf("post-reset poll delivered %d events, want the feed replayed", len(got))
	}
}

// === Snapshots ===

func TestPoller_SnapshotDelivery(t *testing.T) {
	stub := newTelemetryStub()
	defer stub.server.Close()

	stub.snapshot = Snapshot{
		ActivePlayer: ActivePlayer{RiotID: "me#NA1", Level: 9},
		GameData:     GameData{GameTime: 754},
	}
	p := NewPoller(PollerConfig{BaseURL: stub.server.URL}, &recordingBus{}, testLogger())

	p.pollSnapshot()
	select {
	case snap := <-p.Snapshots():
		if snap.GameData.GameTime != 754 || snap.ActivePlayer.Name() != "me#NA1" {
			t.Errorf("snapshot = %+v", snap)
		}
	default:
		t.Fatal("no snapshot delivered")
	}
}

// === Availability edges ===

func TestPoller_AvailabilityEdges(t *testing.T) {
	stub := newTelemetryStub()
	defer stub.server.Close()

	bus := &recordingBus{}
	p := NewPoller(PollerConfig{BaseURL: stub.server.URL}, bus, testLogger())

	p.pollEvents()
	if got := bus.count(eventbus.EventTypeTelemetryUp); got != 1 {
		t.Fatalf("telemetry-up events = %d, want 1", got)
	}

	stub.setFail(true)
	p.pollEvents()
	p.pollEvents() // repeated failure, no second edge
	if got := bus.count(eventbus.EventTypeTelemetryDown); got != 1 {
		t.Errorf("telemetry-down events = %d, want 1", got)
	}

	stub.setFail(false)
	p.pollEvents()
	if got := bus.count(eventbus.EventTypeTelemetryUp); got != 2 {
		t.Errorf("telemetry-up events = %d, want 2", got)
	}
}
