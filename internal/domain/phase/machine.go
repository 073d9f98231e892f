package phase

import (
	"sync"

	"go.uber.org/zap"
)

// Phase is the canonical match phase. Exactly one is current at a time.
type Phase string

const (
	Idle        Phase = "idle"
	Lobby       Phase = "lobby"
	ChampSelect Phase = "champ_select"
	Loading     Phase = "loading"
	InGame      Phase = "in_game"
	PostGame    Phase = "post_game"
)

// advisoryEdges defines the expected transitions. The client is the source
// of truth, so an edge outside this table is logged and applied anyway.
var advisoryEdges = map[Phase]map[Phase]bool{
	Idle:        {Lobby: true},
	Lobby:       {ChampSelect: true, Idle: true},
	ChampSelect: {Loading: true, Lobby: true}, // Lobby = dodge
	Loading:     {InGame: true},
	InGame:      {PostGame: true},
	PostGame:    {Idle: true, Lobby: true},
}

// clientPhaseMap reduces raw client phase strings to canonical phases.
// Unknown strings map to Idle.
var clientPhaseMap = map[string]Phase{
	"None":            Idle,
	"Lobby":           Lobby,
	"Matchmaking":     Lobby,
	"ReadyCheck":      Lobby,
	"ChampSelect":     ChampSelect,
	"GameStart":       Loading,
	"InProgress":      InGame,
	"WaitingForStats": PostGame,
	"PreEndOfGame":    PostGame,
	"EndOfGame":       PostGame,
}

// FromClient maps a raw client phase string to its canonical phase.
func FromClient(raw string) Phase {
	if p, ok := clientPhaseMap[raw]; ok {
		return p
	}
	return Idle
}

// Listener observes phase transitions. Listeners run while the machine
// holds its lock so transitions arrive in emission order; a listener must
// not call back into the machine.
type Listener func(from, to Phase)

// Machine is the single authoritative phase variable. Only the machine
// mutates it; readers snapshot via Current.
type Machine struct {
	mu        sync.RWMutex
	current   Phase
	listeners []Listener
	logger    *zap.Logger
}

// NewMachine creates a machine starting in Idle.
func NewMachine(logger *zap.Logger) *Machine {
	return &Machine{
		current: Idle,
		logger:  logger.With(zap.String("component", "phase")),
	}
}

// Current returns the current phase (thread-safe).
func (m *Machine) Current() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnTransition registers a listener called on every transition, in
// registration order.
func (m *Machine) OnTransition(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Ingest feeds a raw client phase string through the mapping table.
func (m *Machine) Ingest(raw string) {
	m.Set(FromClient(raw))
}

// Set applies a canonical phase. Same-phase inputs are no-ops; edges
// outside the advisory table are logged and applied, since the client is
// authoritative.
func (m *Machine) Set(to Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.current
	if from == to {
		return
	}
	if allowed, ok := advisoryEdges[from]; !ok || !allowed[to] {
		m.logger.Warn("Unexpected phase transition, applying anyway",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	m.transitionLocked(from, to)
}

// Reset forces the machine back to Idle, emitting a transition when the
// prior phase was non-Idle.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == Idle {
		return
	}
	m.logger.Info("Phase reset", zap.String("from", string(m.current)))
	m.transitionLocked(m.current, Idle)
}

// transitionLocked applies the transition and notifies listeners under the
// lock, which keeps observation order equal to emission order.
func (m *Machine) transitionLocked(from, to Phase) {
	m.current = to
	m.logger.Info("Phase transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	for _, fn := range m.listeners {
		fn(from, to)
	}
}
