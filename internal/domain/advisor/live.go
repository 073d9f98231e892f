package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/domain/trigger"
	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/livegame"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

const liveSystemPrompt = `You are a League of Legends shot-caller giving
real-time macro advice. You receive the current game context and the
tactical triggers that just fired. Issue exactly one strategic call:
what the team should do in the next 30 to 60 seconds. Keep the message
under two sentences; players are mid-game. Include your reasoning
separately. Respond as JSON: {"message": "...", "reasoning": "..."}.`

// LiveAdvisor turns LLM-worthy trigger batches into macro calls. At most
// one model invocation is in flight; trigger batches arriving while one
// runs are dropped, the next batch carries fresher state anyway.
type LiveAdvisor struct {
	loop   *Loop
	sink   Sink
	logger *zap.Logger

	inFlight atomic.Bool

	mu       sync.Mutex
	session  *lcu.Session
	snapshot *livegame.Snapshot
	active   bool
}

// NewLiveAdvisor wires the live advisor to the overlay sink.
func NewLiveAdvisor(loop *Loop, sink Sink, logger *zap.Logger) *LiveAdvisor {
	return &LiveAdvisor{
		loop:   loop,
		sink:   sink,
		logger: logger.With(zap.String("component", "live-advisor")),
	}
}

func (l *LiveAdvisor) Name() string         { return "live" }
func (l *LiveAdvisor) SystemPrompt() string { return liveSystemPrompt }

func (l *LiveAdvisor) Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "get_scoreboard",
			Description: "Fetch the latest per-player scoreboard: kills, deaths, assists, creep score and level for both teams.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (l *LiveAdvisor) OnActivate(_ context.Context, sess *lcu.Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = sess
	l.active = true
	return nil
}

func (l *LiveAdvisor) OnDeactivate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.session = nil
	l.snapshot = nil
}

// ObserveSnapshot keeps the latest telemetry snapshot for tool calls.
func (l *LiveAdvisor) ObserveSnapshot(snap *livegame.Snapshot) {
	l.mu.Lock()
	l.snapshot = snap
	l.mu.Unlock()
}

// HandleTool answers the advisor's tool calls.
func (l *LiveAdvisor) HandleTool(_ context.Context, name string, _ map[string]any) (string, error) {
	switch name {
	case "get_scoreboard":
		l.mu.Lock()
		snap := l.snapshot
		l.mu.Unlock()
		if snap == nil {
			return "", fmt.Errorf("no telemetry snapshot yet")
		}
		raw, err := json.Marshal(snap.AllPlayers)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

// HandleTriggers is the trigger engine's LLM sink. It runs the model off
// the engine goroutine so trigger evaluation never blocks on a request.
func (l *LiveAdvisor) HandleTriggers(contextJSON string, results []trigger.Result) {
	if len(results) == 0 {
		return
	}
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()
	if !active {
		return
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		l.logger.Debug("Dropping trigger batch, invocation already in flight",
			zap.Int("triggers", len(results)),
		)
		return
	}

	top := results[0]
	safego.Go(l.logger, "live-invoke", func() {
		defer l.inFlight.Store(false)
		l.invoke(contextJSON, top)
	})
}

func (l *LiveAdvisor) invoke(contextJSON string, top trigger.Result) {
	res := l.loop.Invoke(context.Background(), l, contextJSON, "")
	if res.Err != "" {
		l.logger.Warn("Live call failed", zap.String("error", res.Err))
		return
	}

	l.mu.Lock()
	active := l.active
	snap := l.snapshot
	l.mu.Unlock()
	if !active {
		return
	}

	message, reasoning := parseCallText(res.Text)
	call := trigger.MacroCall{
		ID:            uuid.NewString(),
		Urgency:       top.Urgency.String(),
		CallType:      top.Kind,
		Message:       message,
		Reasoning:     reasoning,
		WindowSeconds: 45,
	}
	if snap != nil {
		call.GameTime = snap.GameData.GameTime
	}
	l.sink.Send(ChannelMacroCall, call)
}

// parseCallText extracts message and reasoning from the model reply,
// tolerating replies that are not the requested JSON shape.
func parseCallText(text string) (message, reasoning string) {
	text = strings.TrimSpace(text)
	// Models sometimes wrap JSON in a code fence.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed struct {
		Message   string `json:"message"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil && parsed.Message != "" {
		return parsed.Message, parsed.Reasoning
	}
	return text, ""
}
