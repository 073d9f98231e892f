package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/willckim/Rift-Architect/internal/domain/advisor"
	"github.com/willckim/Rift-Architect/internal/domain/phase"
	"github.com/willckim/Rift-Architect/internal/domain/trigger"
	"github.com/willckim/Rift-Architect/internal/infrastructure/config"
	"github.com/willckim/Rift-Architect/internal/infrastructure/eventbus"
	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/livegame"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
	"github.com/willckim/Rift-Architect/internal/infrastructure/persistence"
	"github.com/willckim/Rift-Architect/internal/infrastructure/riot"
	"github.com/willckim/Rift-Architect/internal/interfaces/overlay"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

const gameflowPhaseURI = "/lol-gameflow/v1/gameflow-phase"

// App assembles the daemon: client discovery, phase machine, telemetry,
// trigger engine, external API scheduler, advisor runtime and the overlay
// boundary.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	bus    *eventbus.InMemoryBus
	store  *persistence.Keystore

	machine   *phase.Machine
	discovery *lcu.Discovery
	poller    *livegame.Poller
	engine    *trigger.Engine
	scheduler *riot.Scheduler
	cloud     *riot.Client
	runtime   *advisor.Runtime
	live      *advisor.LiveAdvisor
	server    *overlay.Server
	hub       *overlay.Hub
	watcher   *config.KeyWatcher

	stopCh chan struct{}

	resumeMu    sync.Mutex
	resumeTimer *time.Timer
}

// NewApp wires the daemon. model carries advisor traffic to whatever LLM
// backend the embedder provides; nil disables the advisors' model calls
// while leaving everything deterministic running.
func NewApp(cfg *config.Config, model llm.Client, logger *zap.Logger) (*App, error) {
	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	store := persistence.NewKeystore(db, logger)
	bus := eventbus.NewInMemoryBus(logger, 256)
	hub := overlay.NewHub(logger)

	if model == nil {
		model = llm.ClientFunc(func(context.Context, *llm.Request) (*llm.Response, error) {
			return nil, fmt.Errorf("no model transport configured")
		})
	}

	app := &App{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "app")),
		db:     db,
		bus:    bus,
		store:  store,
		hub:    hub,
		stopCh: make(chan struct{}),
	}

	app.scheduler = riot.NewScheduler(riot.SchedulerConfig{
		Spacing:        cfg.Scheduler.Spacing,
		DefaultLimits:  cfg.Scheduler.DefaultLimits,
		SoftCeiling:    cfg.Scheduler.SoftCeiling,
		SoftWindow:     cfg.Scheduler.SoftWindow,
		SoftPause:      cfg.Scheduler.SoftPause,
		RequestTimeout: cfg.Scheduler.RequestTimeout,
		MaxRetries:     cfg.Scheduler.MaxRetries,
	}, store.APIKey(), bus, logger)

	app.cloud = riot.NewClient(riot.ClientConfig{
		Region:  store.Region(cfg.Riot.Region),
		Routing: store.Routing(cfg.Riot.Routing),
	}, app.scheduler)

	loop := advisor.NewLoop(model, advisor.LoopConfig{
		MaxRounds:      cfg.Advisors.MaxRounds,
		RequestTimeout: cfg.Advisors.InvokeTimeout,
		Retries:        cfg.Advisors.InvokeRetries,
	}, logger)

	draft := advisor.NewDraftAdvisor(loop, hub, advisor.DraftConfig{
		PollInterval: cfg.Advisors.DraftPoll,
	}, logger)
	app.live = advisor.NewLiveAdvisor(loop, hub, logger)
	post := advisor.NewPostAdvisor(loop, hub, app.cloud, logger)

	app.runtime = advisor.NewRuntime(store, logger)
	app.runtime.Register(phase.ChampSelect, draft)
	app.runtime.Register(phase.InGame, app.live)
	app.runtime.Register(phase.PostGame, post)

	app.poller = livegame.NewPoller(livegame.PollerConfig{
		BaseURL:          cfg.Telemetry.BaseURL,
		SnapshotInterval: cfg.Telemetry.SnapshotInterval,
		EventInterval:    cfg.Telemetry.EventInterval,
	}, bus, logger)

	app.engine = trigger.NewEngine(trigger.EngineConfig{
		Cooldown: cfg.Trigger.Cooldown,
	}, func(call trigger.MacroCall) {
		hub.Send(advisor.ChannelMacroCall, call)
	}, app.live.HandleTriggers, logger)

	app.machine = phase.NewMachine(logger)
	app.machine.OnTransition(app.onPhase)

	app.discovery = lcu.NewDiscovery(lcu.DiscoveryConfig{
		PollInterval:   cfg.Client.PollInterval,
		RequestTimeout: cfg.Client.RequestTimeout,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		ExtraPaths:     cfg.Client.InstallPaths,
	}, nil, bus, app.onClientEvent, logger)

	app.server = overlay.NewServer(overlay.Config{
		Host: cfg.Overlay.Host,
		Port: cfg.Overlay.Port,
	}, hub, app, logger)

	if cfg.Riot.KeyFilePath != "" {
		app.watcher = config.NewKeyWatcher(cfg.Riot.KeyFilePath, app.onKeyReload, logger)
	}

	app.subscribe()
	return app, nil
}

// Start brings every component up. The call returns once everything runs
// in the background.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("Starting daemon")

	a.scheduler.Start()
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.logger.Warn("Key file watcher unavailable", zap.Error(err))
		}
	}
	a.discovery.Start()
	safego.GoRestart(a.logger, "telemetry-pump", a.pump)

	a.sendStatus("Waiting for client", nil)
	return nil
}

// Stop tears the daemon down in dependency order.
func (a *App) Stop(ctx context.Context) error {
	a.logger.Info("Stopping daemon")

	a.discovery.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.cancelResume()
	a.poller.Stop()
	close(a.stopCh)
	a.runtime.Shutdown()
	a.scheduler.Stop()
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Warn("Overlay server shutdown error", zap.Error(err))
	}
	a.bus.Close()

	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

// Scheduler exposes the external API scheduler for embedders.
func (a *App) Scheduler() *riot.Scheduler { return a.scheduler }

// Keystore exposes the settings store for embedders.
func (a *App) Keystore() *persistence.Keystore { return a.store }

// StatusSnapshot reports daemon state for the overlay status endpoint.
func (a *App) StatusSnapshot() map[string]any {
	return map[string]any{
		"phase":           string(a.machine.Current()),
		"clientConnected": a.discovery.Session() != nil,
		"schedulerState":  a.scheduler.CurrentState().String(),
		"pendingRequests": a.scheduler.Pending(),
		"windowUsage":     a.scheduler.WindowUsage(),
		"activeAdvisor":   a.runtime.Active(),
	}
}

// pump fans telemetry out to its two consumers from one goroutine, which
// keeps the trigger engine single-writer.
func (a *App) pump() {
	for {
		select {
		case <-a.stopCh:
			return
		case snap := <-a.poller.Snapshots():
			a.live.ObserveSnapshot(&snap)
			a.engine.HandleSnapshot(&snap)
		case event := <-a.poller.Events():
			a.engine.HandleEvent(event)
		}
	}
}

// onClientEvent receives every frame from the client event channel and
// feeds gameflow updates into the phase machine.
func (a *App) onClientEvent(event lcu.ClientEvent) {
	if event.URI != gameflowPhaseURI {
		return
	}
	var raw string
	if err := json.Unmarshal(event.Data, &raw); err != nil {
		a.logger.Warn("Malformed gameflow payload", zap.Error(err))
		return
	}
	a.machine.Ingest(raw)
}

// onPhase reacts to phase transitions: overlay notification, advisor
// routing, and the in-game telemetry lifecycle.
func (a *App) onPhase(from, to phase.Phase) {
	a.bus.Publish(context.Background(), eventbus.NewEvent(
		eventbus.EventTypePhaseChanged,
		eventbus.PhaseChangedPayload{From: string(from), To: string(to)},
	))
	a.hub.Send(advisor.ChannelPhaseChanged, map[string]any{
		"from": string(from),
		"to":   string(to),
	})

	if to == phase.InGame {
		a.poller.Reset()
		a.engine.Reset()
		a.poller.Start()
	} else if from == phase.InGame {
		a.poller.Stop()
	}

	a.runtime.OnPhase(context.Background(), to)
}

func (a *App) subscribe() {
	a.bus.Subscribe(eventbus.EventTypeClientConnected, func(ctx context.Context, _ eventbus.Event) {
		a.runtime.SetSession(ctx, a.discovery.Session())
		a.sendStatus("Client connected", nil)
	})
	a.bus.Subscribe(eventbus.EventTypeClientDisconnected, func(ctx context.Context, _ eventbus.Event) {
		a.runtime.SetSession(ctx, nil)
		a.poller.Stop()
		a.machine.Reset()
		a.sendStatus("Waiting for client", nil)
	})
	a.bus.Subscribe(eventbus.EventTypeKeyExpired, func(_ context.Context, _ eventbus.Event) {
		a.runtime.Pause()
		a.sendStatus("API KEY EXPIRED", map[string]any{
			"action": "update the API key in settings or the key file",
		})
	})
	a.bus.Subscribe(eventbus.EventTypeRateLimited, func(_ context.Context, event eventbus.Event) {
		pause := a.cfg.Advisors.RateLimitedPause
		if payload, ok := event.Payload().(eventbus.RateLimitedPayload); ok {
			if server := time.Duration(payload.RetryAfterSeconds) * time.Second; server > pause {
				pause = server
			}
		}
		a.runtime.Pause()
		a.scheduleResume(pause)
		a.sendStatus(fmt.Sprintf("Rate Limited, pausing %d min", int(pause.Minutes())), map[string]any{
			"pauseSeconds": int(pause.Seconds()),
		})
	})
	a.bus.Subscribe(eventbus.EventTypeTelemetryUp, func(_ context.Context, _ eventbus.Event) {
		a.sendStatus("Live telemetry available", nil)
	})
	a.bus.Subscribe(eventbus.EventTypeTelemetryDown, func(_ context.Context, _ eventbus.Event) {
		a.sendStatus("Live telemetry unavailable", nil)
	})
}

// onKeyReload fires when the watched key file changes: store the key,
// recover the scheduler, and resume advisors after a settle delay.
func (a *App) onKeyReload(key string) {
	if key == "" {
		return
	}
	if err := a.store.SetAPIKey(key); err != nil {
		a.logger.Warn("Failed to persist reloaded API key", zap.Error(err))
	}
	a.scheduler.ReloadKey(key)
	a.scheduleResume(a.cfg.Advisors.ResumeDelay)
	a.sendStatus("API key reloaded", nil)
}

func (a *App) scheduleResume(after time.Duration) {
	a.resumeMu.Lock()
	defer a.resumeMu.Unlock()
	if a.resumeTimer != nil {
		a.resumeTimer.Stop()
	}
	if after <= 0 {
		after = time.Second
	}
	a.resumeTimer = time.AfterFunc(after, func() {
		a.runtime.Resume(context.Background())
		a.sendStatus("Advisors resumed", nil)
	})
}

func (a *App) cancelResume() {
	a.resumeMu.Lock()
	defer a.resumeMu.Unlock()
	if a.resumeTimer != nil {
		a.resumeTimer.Stop()
		a.resumeTimer = nil
	}
}

func (a *App) sendStatus(status string, extra map[string]any) {
	payload := map[string]any{"status": status}
	for k, v := range extra {
		payload[k] = v
	}
	a.hub.Send(advisor.ChannelStatusUpdate, payload)
}
