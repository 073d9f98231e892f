package advisor

import (
	"context"

	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
)

// Advisor is a phase-specific AI assistant. Exactly one instance of each
// kind exists per process; the runtime starts at most one at a time.
type Advisor interface {
	// Name is the stable identifier ("draft", "live", "post").
	Name() string

	// SystemPrompt is the advisor's system directive.
	SystemPrompt() string

	// Tools lists the named tool schemas offered to the model.
	Tools() []llm.Tool

	// OnActivate starts the advisor's input pipeline. Activation is
	// idempotent: activating an active advisor is a no-op.
	OnActivate(ctx context.Context, session *lcu.Session) error

	// OnDeactivate stops the pipeline and releases per-phase state.
	// In-flight model calls may finish; their results are discarded.
	OnDeactivate()

	// HandleTool executes one named tool call.
	HandleTool(ctx context.Context, name string, input map[string]any) (string, error)
}

// Sink is the outbound-only overlay boundary. The runtime never hears
// back from the overlay.
type Sink interface {
	Send(channel string, payload any)
}

// Overlay channel names.
const (
	ChannelPhaseChanged     = "game-phase-changed"
	ChannelDraftAdvice      = "draft-recommendation"
	ChannelDraftPhaseUpdate = "draft-phase-update"
	ChannelDraftFinalized   = "draft-finalized"
	ChannelMacroCall        = "macro-call"
	ChannelStatusUpdate     = "status-update"
	ChannelPostAnalysis     = "post-analysis"
)
