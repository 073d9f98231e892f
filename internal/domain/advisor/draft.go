package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

const draftSystemPrompt = `You are a League of Legends draft strategist.
You receive the current champion-select session: completed and pending
pick/ban actions for both teams and the local player's cell. Recommend
the strongest pick or ban for the local player's next action, with a
one-sentence justification grounded in team composition. Answer with a
short recommendation only.`

// DraftConfig tunes the champion-select watcher.
type DraftConfig struct {
	PollInterval time.Duration // session poll cadence (default 3s)
}

// DraftAdvisor watches champion select and asks the model for a pick or
// ban recommendation whenever the action list changes.
type DraftAdvisor struct {
	loop   *Loop
	sink   Sink
	cfg    DraftConfig
	logger *zap.Logger

	mu       sync.Mutex
	session  *lcu.Session
	stop     chan struct{}
	lastHash uint64
	done     bool
}

// NewDraftAdvisor wires the draft advisor to the overlay sink.
func NewDraftAdvisor(loop *Loop, sink Sink, cfg DraftConfig, logger *zap.Logger) *DraftAdvisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &DraftAdvisor{
		loop:   loop,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "draft-advisor")),
	}
}

func (d *DraftAdvisor) Name() string         { return "draft" }
func (d *DraftAdvisor) SystemPrompt() string { return draftSystemPrompt }

func (d *DraftAdvisor) Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "get_champ_select_session",
			Description: "Fetch the latest champion-select session from the game client.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

// OnActivate starts the session poll loop.
func (d *DraftAdvisor) OnActivate(ctx context.Context, sess *lcu.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.session = sess
	d.stop = make(chan struct{})
	d.lastHash = 0
	d.done = false
	safego.Go(d.logger, "draft-poll", func() { d.pollLoop(d.stop) })
	return nil
}

// OnDeactivate stops the poll loop.
func (d *DraftAdvisor) OnDeactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *DraftAdvisor) stopLocked() {
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	d.session = nil
}

// HandleTool answers the advisor's tool calls.
func (d *DraftAdvisor) HandleTool(ctx context.Context, name string, _ map[string]any) (string, error) {
	switch name {
	case "get_champ_select_session":
		d.mu.Lock()
		sess := d.session
		d.mu.Unlock()
		if sess == nil {
			return "", fmt.Errorf("no active client session")
		}
		cs, err := sess.REST.ChampSelectSession(ctx)
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(cs)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (d *DraftAdvisor) pollLoop(stop chan struct{}) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

func (d *DraftAdvisor) poll() {
	d.mu.Lock()
	sess := d.session
	finished := d.done
	d.mu.Unlock()
	if sess == nil || finished {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PollInterval)
	cs, err := sess.REST.ChampSelectSession(ctx)
	cancel()
	if err != nil {
		d.logger.Debug("Champ select session unavailable", zap.Error(err))
		return
	}

	if cs.LocalPickCompleted() {
		d.mu.Lock()
		d.done = true
		d.mu.Unlock()
		d.sink.Send(ChannelDraftFinalized, map[string]any{
			"localCellId": cs.LocalPlayerCellID,
		})
		d.logger.Info("Local pick locked in, draft advisor going quiet")
		return
	}

	h := hashActions(cs)
	d.mu.Lock()
	changed := h != d.lastHash
	d.lastHash = h
	d.mu.Unlock()
	if !changed {
		return
	}

	d.sink.Send(ChannelDraftPhaseUpdate, map[string]any{
		"timerPhase":  cs.Timer.Phase,
		"localCellId": cs.LocalPlayerCellID,
	})
	d.recommend(cs)
}

func (d *DraftAdvisor) recommend(cs *lcu.ChampSelectSession) {
	raw, err := json.Marshal(cs)
	if err != nil {
		d.logger.Error("Failed to encode champ select session", zap.Error(err))
		return
	}
	contextText := fmt.Sprintf("draft_phase: %s\nsession:\n%s", cs.Timer.Phase, raw)

	res := d.loop.Invoke(context.Background(), d, contextText, "draft")
	if res.Err != "" {
		d.logger.Warn("Draft recommendation failed", zap.String("error", res.Err))
		return
	}
	d.sink.Send(ChannelDraftAdvice, map[string]any{
		"recommendation": res.Text,
		"timerPhase":     cs.Timer.Phase,
	})
}

// hashActions fingerprints the pick/ban action grid so a poll only
// triggers the model when something actually changed.
func hashActions(cs *lcu.ChampSelectSession) uint64 {
	h := fnv.New64a()
	for _, group := range cs.Actions {
		for _, a := range group {
			fmt.Fprintf(h, "%d:%s:%d:%d:%t|", a.ID, a.Type, a.ActorCellID, a.ChampionID, a.Completed)
		}
	}
	fmt.Fprintf(h, "phase:%s", cs.Timer.Phase)
	return h.Sum64()
}
