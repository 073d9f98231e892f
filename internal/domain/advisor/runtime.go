package advisor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/domain/phase"
	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
)

// EnabledChecker answers whether an advisor is switched on in settings.
type EnabledChecker interface {
	AdvisorEnabled(name string) bool
}

// alwaysEnabled is used when no settings store is wired.
type alwaysEnabled struct{}

func (alwaysEnabled) AdvisorEnabled(string) bool { return true }

// Runtime owns the advisor lifecycle: at most one advisor is active at a
// time, chosen by game phase. The outgoing advisor is fully deactivated
// before the incoming one is activated.
type Runtime struct {
	mu       sync.Mutex
	byPhase  map[phase.Phase]Advisor
	active   Advisor
	session  *lcu.Session
	paused   bool
	enabled  EnabledChecker
	logger   *zap.Logger
	lastSeen phase.Phase
}

// NewRuntime creates an empty runtime. Register advisors before routing
// phases into it.
func NewRuntime(enabled EnabledChecker, logger *zap.Logger) *Runtime {
	if enabled == nil {
		enabled = alwaysEnabled{}
	}
	return &Runtime{
		byPhase: make(map[phase.Phase]Advisor),
		enabled: enabled,
		logger:  logger.With(zap.String("component", "advisor-runtime")),
	}
}

// Register binds an advisor to the phase that activates it.
func (r *Runtime) Register(p phase.Phase, adv Advisor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPhase[p] = adv
}

// SetSession hands the runtime the active client session. A nil session
// means the client is gone; any active advisor is deactivated.
func (r *Runtime) SetSession(ctx context.Context, sess *lcu.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = sess
	if sess == nil {
		r.deactivateLocked()
		return
	}
	// Client reappeared mid-phase. Re-run routing for the last known phase.
	r.routeLocked(ctx, r.lastSeen)
}

// OnPhase routes a phase transition to the matching advisor.
func (r *Runtime) OnPhase(ctx context.Context, p phase.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen = p
	r.routeLocked(ctx, p)
}

func (r *Runtime) routeLocked(ctx context.Context, p phase.Phase) {
	next := r.byPhase[p]
	if next == r.active {
		return
	}
	r.deactivateLocked()
	if next == nil || r.paused || r.session == nil {
		return
	}
	if !r.enabled.AdvisorEnabled(next.Name()) {
		r.logger.Info("Advisor disabled in settings, skipping activation",
			zap.String("advisor", next.Name()),
		)
		return
	}
	if err := next.OnActivate(ctx, r.session); err != nil {
		r.logger.Error("Advisor activation failed",
			zap.String("advisor", next.Name()),
			zap.Error(err),
		)
		return
	}
	r.active = next
	r.logger.Info("Advisor activated",
		zap.String("advisor", next.Name()),
		zap.String("phase", string(p)),
	)
}

func (r *Runtime) deactivateLocked() {
	if r.active == nil {
		return
	}
	name := r.active.Name()
	r.active.OnDeactivate()
	r.active = nil
	r.logger.Info("Advisor deactivated", zap.String("advisor", name))
}

// Pause deactivates the active advisor and blocks further activations
// until Resume. Used while the API key is expired or rate limited.
func (r *Runtime) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return
	}
	r.paused = true
	r.deactivateLocked()
	r.logger.Info("Advisors paused")
}

// Resume lifts a pause and re-routes the current phase so the advisor for
// the ongoing phase comes back without waiting for the next transition.
func (r *Runtime) Resume(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	r.logger.Info("Advisors resumed")
	r.routeLocked(ctx, r.lastSeen)
}

// Active returns the name of the active advisor, or "" when none is.
func (r *Runtime) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.Name()
}

// Shutdown deactivates whatever is active.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivateLocked()
}
