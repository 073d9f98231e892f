package lcu

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/eventbus"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

// Session is the request-capable handle handed to consumers when a client
// is discovered. The credentials inside are a copy; the Discovery keeps
// exclusive ownership of the live ones.
type Session struct {
	Credentials Credentials
	REST        *Client
}

// DiscoveryConfig tunes the discovery loop.
type DiscoveryConfig struct {
	PollInterval   time.Duration // lockfile poll cadence (default 3s)
	RequestTimeout time.Duration // REST timeout for the session client
	ReconnectDelay time.Duration // event channel re-dial delay
	ExtraPaths     []string      // additional install dirs to probe
}

// Discovery polls the host for a running client, owns the resulting
// credentials, and raises connected/disconnected edges on the bus.
// Process-detect failures are expected and quiet.
type Discovery struct {
	cfg     DiscoveryConfig
	locator ProcessLocator
	bus     eventbus.Bus
	onEvent EventHandler
	logger  *zap.Logger

	mu      sync.Mutex
	session *Session
	channel *EventChannel
	running bool
	stopCh  chan struct{}

	polling atomic.Bool // non-reentrancy guard
}

// NewDiscovery creates a discovery loop publishing to the given bus.
// onEvent receives every frame from the client event channel.
func NewDiscovery(cfg DiscoveryConfig, locator ProcessLocator, bus eventbus.Bus, onEvent EventHandler, logger *zap.Logger) *Discovery {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if locator == nil {
		locator = NewDefaultLocator()
	}
	return &Discovery{
		cfg:     cfg,
		locator: locator,
		bus:     bus,
		onEvent: onEvent,
		logger:  logger.With(zap.String("component", "discovery")),
		stopCh:  make(chan struct{}),
	}
}

// Session returns the current session, or nil before a client is found.
func (d *Discovery) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Start launches the poll loop.
func (d *Discovery) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true

	d.logger.Info("Discovery started", zap.Duration("interval", d.cfg.PollInterval))
	safego.Go(d.logger, "discovery-loop", d.loop)
}

// Stop halts polling and drops any live session.
func (d *Discovery) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.clearSession()
}

func (d *Discovery) loop() {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.tick()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick runs one discovery pass. Overlapping passes are skipped.
func (d *Discovery) tick() {
	if !d.polling.CompareAndSwap(false, true) {
		return
	}
	defer d.polling.Store(false)

	creds, found := d.locate()

	d.mu.Lock()
	have := d.session != nil
	d.mu.Unlock()

	switch {
	case !have && found:
		d.establishSession(creds)
	case have && !found:
		d.clearSession()
	}
}

// locate searches for a parsable lockfile. Malformed content counts as
// not found.
func (d *Discovery) locate() (Credentials, bool) {
	var dirs []string
	if dir, ok := d.locator.FindInstallDir(); ok {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, WellKnownInstallPaths()...)
	dirs = append(dirs, d.cfg.ExtraPaths...)

	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, "lockfile"))
		if err != nil {
			continue
		}
		creds, err := ParseHandoff(string(data))
		if err != nil {
			continue
		}
		return creds, true
	}
	return Credentials{}, false
}

func (d *Discovery) establishSession(creds Credentials) {
	session := &Session{
		Credentials: creds,
		REST:        NewClient(creds, d.cfg.RequestTimeout),
	}
	channel := NewEventChannel(creds, d.cfg.ReconnectDelay, d.onEvent, d.logger)

	d.mu.Lock()
	d.session = session
	d.channel = channel
	d.mu.Unlock()

	safego.Go(d.logger, "event-channel", channel.Start)

	d.logger.Info("Client connected",
		zap.Int("pid", creds.ProcessID),
		zap.Int("port", creds.Port),
	)
	d.bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypeClientConnected, session))
}

func (d *Discovery) clearSession() {
	d.mu.Lock()
	session := d.session
	channel := d.channel
	d.session = nil
	d.channel = nil
	d.mu.Unlock()

	if channel != nil {
		channel.Stop()
	}
	if session != nil {
		d.logger.Info("Client disconnected")
		d.bus.Publish(context.Background(), eventbus.NewEvent(eventbus.EventTypeClientDisconnected, nil))
	}
}
