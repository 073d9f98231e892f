package trigger

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/livegame"
)

// MacroCall is a deterministic strategic call routed straight to the
// overlay boundary.
type MacroCall struct {
	ID            string         `json:"id"`
	Urgency       string         `json:"urgency"`
	CallType      string         `json:"callType"`
	Message       string         `json:"message"`
	Reasoning     string         `json:"reasoning,omitempty"`
	GameTime      float64        `json:"gameTime"`
	WindowSeconds int            `json:"windowSeconds"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// LLMContext is the compact game context handed to the live advisor with
// the LLM-worthy trigger set.
type LLMContext struct {
	GameTime     float64        `json:"gameTime"`
	PhaseTag     string         `json:"phaseTag"` // early | mid | late
	Triggers     []TriggerBrief `json:"triggers"`
	AlliedDrakes int            `json:"alliedDrakes"`
	EnemyDrakes  int            `json:"enemyDrakes"`
	BaronUp      bool           `json:"baronUp"`
	AllyInhibs   []string       `json:"allyInhibsDown"`
	EnemyInhibs  []string       `json:"enemyInhibsDown"`
	ActivePlayer PlayerBrief    `json:"activePlayer"`
}

// TriggerBrief is one trigger inside the LLM context.
type TriggerBrief struct {
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
	Urgency string `json:"urgency"`
}

// PlayerBrief summarizes the active player for the LLM context.
type PlayerBrief struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	Gold  float64 `json:"gold"`
}

// LocalSink receives deterministic macro calls.
type LocalSink func(call MacroCall)

// LLMSink receives the LLM-worthy trigger set with its context JSON.
type LLMSink func(contextJSON string, results []Result)

// EngineConfig tunes the trigger engine.
type EngineConfig struct {
	Cooldown time.Duration // global inter-advice cooldown (default 60s)
}

// Engine converts the live telemetry stream into rate-limited strategic
// signals. State is single-writer: HandleSnapshot and HandleEvent must be
// called from one goroutine.
type Engine struct {
	cfg      EngineConfig
	state    *State
	local    LocalSink
	llm      LLMSink
	logger   *zap.Logger
	now      func() time.Time // injectable clock

	mu         sync.Mutex
	lastAdvice time.Time // last dispatched advice, local or LLM
}

// NewEngine creates a trigger engine feeding the two sinks.
func NewEngine(cfg EngineConfig, local LocalSink, llm LLMSink, logger *zap.Logger) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Engine{
		cfg:    cfg,
		state:  NewState(),
		local:  local,
		llm:    llm,
		logger: logger.With(zap.String("component", "trigger-engine")),
		now:    time.Now,
	}
}

// Reset clears per-match state for a fresh game.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NewState()
	e.lastAdvice = time.Time{}
}

// State exposes the rolling state for inspection. Reads must come from
// the same goroutine that feeds the engine.
func (e *Engine) State() *State { return e.state }

// HandleSnapshot evaluates the snapshot trigger chain and dispatches.
func (e *Engine) HandleSnapshot(snap *livegame.Snapshot) {
	results := e.state.evaluateSnapshot(snap)
	e.dispatch(results, snap.GameData.GameTime, snap)
}

// HandleEvent folds one event into the state and dispatches its trigger.
func (e *Engine) HandleEvent(event livegame.Event) {
	result, ok := e.state.handleEvent(event)
	if !ok {
		return
	}
	e.dispatch([]Result{result}, event.EventTime, nil)
}

// dispatch orders the results by urgency and routes the winner. During the
// global cooldown every trigger, local or LLM-worthy, is dropped silently.
func (e *Engine) dispatch(results []Result, gameTime float64, snap *livegame.Snapshot) {
	if len(results) == 0 {
		return
	}

	e.mu.Lock()
	now := e.now()
	if !e.lastAdvice.IsZero() && now.Sub(e.lastAdvice) < e.cfg.Cooldown {
		e.mu.Unlock()
		e.logger.Debug("Advice cooldown active, dropping triggers",
			zap.Int("dropped", len(results)),
		)
		return
	}
	e.mu.Unlock()

	// Local results outrank LLM-worthy ones at equal urgency: a
	// deterministic call must not disappear into an advisor batch.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Urgency != results[j].Urgency {
			return results[i].Urgency > results[j].Urgency
		}
		return results[i].LocalPayload != nil && results[j].LocalPayload == nil
	})
	top := results[0]

	if top.LocalPayload != nil {
		call := MacroCall{
			ID:            uuid.NewString(),
			Urgency:       top.Urgency.String(),
			CallType:      top.Kind,
			Message:       top.Detail,
			GameTime:      gameTime,
			WindowSeconds: int(e.cfg.Cooldown / time.Second),
			Payload:       top.LocalPayload,
		}
		e.markDispatched(now)
		e.logger.Info("Local macro call",
			zap.String("kind", top.Kind),
			zap.String("urgency", call.Urgency),
		)
		e.local(call)
		return
	}

	worthy := make([]Result, 0, len(results))
	for _, r := range results {
		if r.LLMWorthy {
			worthy = append(worthy, r)
		}
	}
	if len(worthy) == 0 {
		return
	}

	contextJSON := e.buildContext(worthy, gameTime, snap)
	e.markDispatched(now)
	e.logger.Info("Escalating triggers to live advisor",
		zap.Int("count", len(worthy)),
		zap.String("top", worthy[0].Kind),
	)
	e.llm(contextJSON, worthy)
}

func (e *Engine) markDispatched(now time.Time) {
	e.mu.Lock()
	e.lastAdvice = now
	e.mu.Unlock()
}

// LastAdviceTime returns when advice was last dispatched.
func (e *Engine) LastAdviceTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAdvice
}

func phaseTag(gameTime float64) string {
	switch {
	case gameTime <= 840:
		return "early"
	case gameTime <= 1500:
		return "mid"
	default:
		return "late"
	}
}

func (e *Engine) buildContext(worthy []Result, gameTime float64, snap *livegame.Snapshot) string {
	ctx := LLMContext{
		GameTime:     gameTime,
		PhaseTag:     phaseTag(gameTime),
		AlliedDrakes: e.state.alliedDrakes,
		EnemyDrakes:  e.state.enemyDrakes,
		BaronUp:      e.state.baronUp(gameTime),
	}
	for _, r := range worthy {
		ctx.Triggers = append(ctx.Triggers, TriggerBrief{
			Kind:    r.Kind,
			Detail:  r.Detail,
			Urgency: r.Urgency.String(),
		})
	}
	for lane := range e.state.allyInhibDown {
		ctx.AllyInhibs = append(ctx.AllyInhibs, string(lane))
	}
	for lane := range e.state.enemyInhibDown {
		ctx.EnemyInhibs = append(ctx.EnemyInhibs, string(lane))
	}
	sort.Strings(ctx.AllyInhibs)
	sort.Strings(ctx.EnemyInhibs)
	if snap != nil {
		ctx.ActivePlayer = PlayerBrief{
			Name:  snap.ActivePlayer.Name(),
			Level: snap.ActivePlayer.Level,
			Gold:  snap.ActivePlayer.CurrentGold,
		}
	}

	data, err := json.Marshal(ctx)
	if err != nil {
		e.logger.Warn("Context marshal failed", zap.Error(err))
		return "{}"
	}
	return string(data)
}
