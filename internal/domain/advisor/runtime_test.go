package advisor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/willckim/Rift-Architect/internal/domain/phase"
	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
)

// lifecycleAdvisor records activation ordering across instances.
type lifecycleAdvisor struct {
	stubAdvisor
	log *lifecycleLog
}

type lifecycleLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *lifecycleLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *lifecycleLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (a *lifecycleAdvisor) OnActivate(context.Context, *lcu.Session) error {
	a.log.add(a.name + ":activate")
	return a.activateErr
}

func (a *lifecycleAdvisor) OnDeactivate() {
	a.log.add(a.name + ":deactivate")
}

type flagChecker map[string]bool

func (f flagChecker) AdvisorEnabled(name string) bool {
	enabled, ok := f[name]
	return !ok || enabled
}

func testSession() *lcu.Session {
	return &lcu.Session{}
}

func newLifecycleRuntime(log *lifecycleLog) (*Runtime, *lifecycleAdvisor, *lifecycleAdvisor, *lifecycleAdvisor) {
	draft := &lifecycleAdvisor{stubAdvisor: stubAdvisor{name: "draft"}, log: log}
	live := &lifecycleAdvisor{stubAdvisor: stubAdvisor{name: "live"}, log: log}
	post := &lifecycleAdvisor{stubAdvisor: stubAdvisor{name: "post"}, log: log}

	r := NewRuntime(nil, testLogger())
	r.Register(phase.ChampSelect, draft)
	r.Register(phase.InGame, live)
	r.Register(phase.PostGame, post)
	return r, draft, live, post
}

// === Routing ===

func TestRuntime_RoutesPhasesToAdvisors(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.ChampSelect)
	if r.Active() != "draft" {
		t.Fatalf("active = %q, want draft", r.Active())
	}

	r.OnPhase(ctx, phase.Loading)
	if r.Active() != "" {
		t.Fatalf("active = %q during loading, want none", r.Active())
	}

	r.OnPhase(ctx, phase.InGame)
	if r.Active() != "live" {
		t.Fatalf("active = %q, want live", r.Active())
	}
}

func TestRuntime_DeactivateCompletesBeforeActivate(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.InGame)
	r.OnPhase(ctx, phase.PostGame)

	want := []string{"live:activate", "live:deactivate", "post:activate"}
	got := log.all()
	if len(got) != len(want) {
		t.Fatalf("lifecycle = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lifecycle = %v, want %v", got, want)
		}
	}
}

func TestRuntime_NoActivationWithoutSession(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)

	r.OnPhase(context.Background(), phase.InGame)
	if r.Active() != "" {
		t.Errorf("advisor activated with no client session")
	}
}

func TestRuntime_DisconnectDeactivates(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.InGame)
	r.SetSession(ctx, nil)

	if r.Active() != "" {
		t.Fatalf("active = %q after disconnect, want none", r.Active())
	}
	entries := log.all()
	if entries[len(entries)-1] != "live:deactivate" {
		t.Errorf("lifecycle tail = %v, want live:deactivate", entries)
	}
}

func TestRuntime_ReconnectReactivatesCurrentPhase(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.InGame)
	r.SetSession(ctx, nil)
	r.SetSession(ctx, testSession())

	if r.Active() != "live" {
		t.Errorf("active = %q after reconnect mid-game, want live", r.Active())
	}
}

// === Settings flags ===

func TestRuntime_DisabledAdvisorSkipped(t *testing.T) {
	log := &lifecycleLog{}
	draft := &lifecycleAdvisor{stubAdvisor: stubAdvisor{name: "draft"}, log: log}

	r := NewRuntime(flagChecker{"draft": false}, testLogger())
	r.Register(phase.ChampSelect, draft)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.ChampSelect)
	if r.Active() != "" {
		t.Errorf("disabled advisor was activated")
	}
}

// === Pause / resume ===

func TestRuntime_PauseAndResume(t *testing.T) {
	log := &lifecycleLog{}
	r, _, _, _ := newLifecycleRuntime(log)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.InGame)

	r.Pause()
	if r.Active() != "" {
		t.Fatalf("active = %q while paused, want none", r.Active())
	}
	// Phase changes while paused do not activate anything.
	r.OnPhase(ctx, phase.PostGame)
	if r.Active() != "" {
		t.Fatalf("advisor activated while paused")
	}

	r.Resume(ctx)
	if r.Active() != "post" {
		t.Errorf("active = %q after resume, want post for the current phase", r.Active())
	}
}

func TestRuntime_ActivationFailureLeavesNoActive(t *testing.T) {
	log := &lifecycleLog{}
	failing := &lifecycleAdvisor{
		stubAdvisor: stubAdvisor{name: "post", activateErr: errActivate},
		log:         log,
	}
	r := NewRuntime(nil, testLogger())
	r.Register(phase.PostGame, failing)
	ctx := context.Background()

	r.SetSession(ctx, testSession())
	r.OnPhase(ctx, phase.PostGame)
	if r.Active() != "" {
		t.Errorf("failed activation left advisor active")
	}
}

var errActivate = errors.New("activation failed")
