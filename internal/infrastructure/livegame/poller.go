package livegame

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/eventbus"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

// PollerConfig tunes the telemetry poller.
type PollerConfig struct {
	BaseURL          string        // default https://127.0.0.1:2999/liveclientdata
	SnapshotInterval time.Duration // default 10s
	EventInterval    time.Duration // default 5s
	SnapshotBuffer   int           // bounded snapshot channel size
	EventBuffer      int           // bounded event channel size
}

// Poller reads the read-only in-match telemetry source on two cadences:
// full snapshots and the incremental event feed. Individual misses are not
// retried; the next tick is soon. Reachability flips raise bus events.
type Poller struct {
	cfg    PollerConfig
	http   *http.Client
	bus    eventbus.Bus
	logger *zap.Logger

	snapshots chan Snapshot
	events    chan Event

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	available  bool
	maxEventID int
}

// NewPoller creates a telemetry poller publishing availability edges to bus.
func NewPoller(cfg PollerConfig, bus eventbus.Bus, logger *zap.Logger) *Poller {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://127.0.0.1:2999/liveclientdata"
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 10 * time.Second
	}
	if cfg.EventInterval <= 0 {
		cfg.EventInterval = 5 * time.Second
	}
	if cfg.SnapshotBuffer <= 0 {
		cfg.SnapshotBuffer = 4
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	return &Poller{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			Timeout: 3 * time.Second,
		},
		bus:        bus,
		logger:     logger.With(zap.String("component", "telemetry")),
		snapshots:  make(chan Snapshot, cfg.SnapshotBuffer),
		events:     make(chan Event, cfg.EventBuffer),
		stopCh:     make(chan struct{}),
		maxEventID: -1,
	}
}

// Snapshots returns the bounded snapshot stream. When the consumer lags,
// the oldest snapshot is dropped; snapshots are idempotent.
func (p *Poller) Snapshots() <-chan Snapshot { return p.snapshots }

// Events returns the new-event stream, strictly increasing by EventID.
func (p *Poller) Events() <-chan Event { return p.events }

// Start launches both poll loops.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh

	p.logger.Info("Telemetry poller started",
		zap.Duration("snapshot_interval", p.cfg.SnapshotInterval),
		zap.Duration("event_interval", p.cfg.EventInterval),
	)
	safego.Go(p.logger, "telemetry-snapshots", func() { p.snapshotLoop(stop) })
	safego.Go(p.logger, "telemetry-events", func() { p.eventLoop(stop) })
}

// Stop halts polling.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
}

// Reset clears per-match state so the next game starts fresh.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxEventID = -1
}

func (p *Poller) snapshotLoop(stop chan struct{}) {
	ticker := time.NewTicker(p.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.pollSnapshot()
		}
	}
}

func (p *Poller) eventLoop(stop chan struct{}) {
	ticker := time.NewTicker(p.cfg.EventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.pollEvents()
		}
	}
}

func (p *Poller) pollSnapshot() {
	var snap Snapshot
	if err := p.get("/allgamedata", &snap); err != nil {
		p.setAvailable(false)
		return
	}
	p.setAvailable(true)

	// Drop the oldest snapshot rather than block; missing one is harmless.
	for {
		select {
		case p.snapshots <- snap:
			return
		default:
			select {
			case <-p.snapshots:
			default:
			}
		}
	}
}

func (p *Poller) pollEvents() {
	var feed eventFeed
	if err := p.get("/eventdata", &feed); err != nil {
		p.setAvailable(false)
		return
	}
	p.setAvailable(true)

	p.mu.Lock()
	fresh := make([]Event, 0, len(feed.Events))
	for _, event := range feed.Events {
		if event.EventID > p.maxEventID {
			fresh = append(fresh, event)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].EventID < fresh[j].EventID })
	if len(fresh) > 0 {
		p.maxEventID = fresh[len(fresh)-1].EventID
	}
	p.mu.Unlock()

	for _, event := range fresh {
		select {
		case p.events <- event:
		default:
			p.logger.Warn("Event buffer full, dropping event",
				zap.Int("event_id", event.EventID),
				zap.String("name", event.EventName),
			)
		}
	}
}

func (p *Poller) get(path string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.http.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telemetry %s returned %d", path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func (p *Poller) setAvailable(up bool) {
	p.mu.Lock()
	changed := p.available != up
	p.available = up
	p.mu.Unlock()

	if !changed {
		return
	}
	if up {
		p.logger.Info("Telemetry available")
		p.bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypeTelemetryUp, nil))
	} else {
		p.logger.Info("Telemetry unavailable")
		p.bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypeTelemetryDown, nil))
	}
}
