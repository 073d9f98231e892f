package trigger

import (
	"fmt"

	"github.com/willckim/Rift-Architect/internal/infrastructure/livegame"
)

// Urgency ranks trigger results. Urgent outranks suggestion outranks info.
type Urgency int

const (
	UrgencyInfo Urgency = iota
	UrgencySuggestion
	UrgencyUrgent
)

// String returns the wire label for the urgency.
func (u Urgency) String() string {
	switch u {
	case UrgencyUrgent:
		return "urgent"
	case UrgencySuggestion:
		return "suggestion"
	default:
		return "info"
	}
}

// Trigger kinds.
const (
	KindResetNow         = "RESET_NOW"
	KindBaronWindow      = "BARON_WINDOW"
	KindContestObjective = "CONTEST_OBJECTIVE"
	KindBaronCall        = "BARON_CALL"
	KindCatchWave        = "CATCH_WAVE"
	KindWinCondition     = "WIN_CONDITION"
	KindBaronBait        = "BARON_BAIT"
	KindAce              = "ACE"
	KindGoldSwing        = "GOLD_SWING"
	KindLongDeathTimers  = "LONG_DEATH_TIMERS"
	KindPowerSpike       = "POWER_SPIKE"
	KindObjectiveTaken   = "OBJECTIVE_TAKEN"
)

// Result is one classified state change. A non-nil LocalPayload marks the
// result as deterministic: it bypasses the LLM and goes straight to the
// overlay. LLMWorthy results are forwarded to the live advisor instead.
type Result struct {
	Kind         string
	Detail       string
	Urgency      Urgency
	LocalPayload map[string]any
	LLMWorthy    bool
}

func localResult(kind, detail string, urgency Urgency, payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Kind: kind, Detail: detail, Urgency: urgency, LocalPayload: payload}
}

func llmResult(kind, detail string, urgency Urgency) Result {
	return Result{Kind: kind, Detail: detail, Urgency: urgency, LLMWorthy: true}
}

// evaluateSnapshot runs the snapshot trigger chain in priority order and
// returns every firing rule. Dispatch ordering happens later; evaluation
// within one snapshot is total-ordered.
func (s *State) evaluateSnapshot(snap *livegame.Snapshot) []Result {
	s.identify(snap)
	gameTime := snap.GameData.GameTime
	lead := s.estimateGoldLead(snap)
	baronUp := s.baronUp(gameTime)

	enemies := make([]livegame.Player, 0, 5)
	for _, p := range snap.AllPlayers {
		if p.Team != s.localTeam {
			enemies = append(enemies, p)
		}
	}

	var results []Result

	// 1. Throw-Guard: a fed team picking bad fights loses leads fastest.
	if lead > 3000 && s.recentAllyDeaths(gameTime) >= 2 {
		results = append(results, localResult(KindResetNow,
			fmt.Sprintf("gold lead %.0f with %d recent ally deaths", lead, len(s.allyDeathTimes)),
			UrgencyUrgent,
			map[string]any{"gold_lead": lead},
		))
	}

	// 2. Baron window: enemy jungler dead long enough to start it.
	if baronUp {
		for _, e := range enemies {
			if e.Position == "JUNGLE" && e.IsDead && e.RespawnTimer > 15 {
				results = append(results, llmResult(KindBaronWindow,
					fmt.Sprintf("enemy jungler dead for %.0fs with baron up", e.RespawnTimer),
					UrgencyUrgent,
				))
				break
			}
		}
	}

	// 3 & 4. Soul point pressure around baron.
	if baronUp && s.enemyDrakes >= 3 {
		results = append(results, localResult(KindContestObjective,
			"enemy team at soul point, contest the next drake",
			UrgencyUrgent, nil,
		))
	}
	rushBaron := baronUp && s.alliedDrakes >= 3
	if rushBaron {
		results = append(results, localResult(KindBaronCall,
			"soul point for us, trade it for baron pressure",
			UrgencyUrgent, nil,
		))
	}

	// 5. Side-lane catch.
	if gameTime > 840 {
		for _, lane := range []Lane{LaneTop, LaneBot} {
			if s.turretsDownIn(s.localTeam, lane) < 2 {
				continue
			}
			if ally := s.laneAlly(snap, lane); ally != nil && ally.IsDead {
				results = append(results, localResult(KindCatchWave,
					fmt.Sprintf("%s lane open with its ally dead, catch the wave safely", lane),
					UrgencySuggestion,
					map[string]any{"lane": string(lane)},
				))
				break
			}
		}
	}

	// 6. Win condition: enough of them dead for long enough to end.
	if gameTime > 1500 {
		if r, ok := s.winCondition(enemies); ok {
			results = append(results, r)
		}
	}

	// 7. Baron bait: only when rule 4 is not already calling baron.
	if s.anyEnemyInhibDown() && baronUp && !rushBaron {
		results = append(results, localResult(KindBaronBait,
			"inhib pressure forces them to answer, start baron as bait",
			UrgencySuggestion, nil,
		))
	}

	// 8. Ace.
	if len(enemies) > 0 {
		allDead := true
		for _, e := range enemies {
			if !e.IsDead {
				allDead = false
				break
			}
		}
		if allDead {
			results = append(results, llmResult(KindAce, "enemy team aced", UrgencyUrgent))
		}
	}

	// 9. Gold swing.
	if diff := lead - s.lastReportedLead; diff >= 1000 || diff <= -1000 {
		results = append(results, llmResult(KindGoldSwing,
			fmt.Sprintf("gold lead moved from %.0f to %.0f", s.lastReportedLead, lead),
			UrgencySuggestion,
		))
		s.lastReportedLead = lead
	}

	// 10. Long death timers.
	longDead := 0
	for _, e := range enemies {
		if e.IsDead && e.RespawnTimer > 30 {
			longDead++
		}
	}
	if longDead >= 2 {
		results = append(results, llmResult(KindLongDeathTimers,
			fmt.Sprintf("%d enemies on 30s+ timers", longDead),
			UrgencySuggestion,
		))
	}

	// 11. Power spike: crossing 6/11/16 upward.
	activeName := snap.ActivePlayer.Name()
	prev := s.lastLevels[activeName]
	level := snap.ActivePlayer.Level
	if level > prev {
		for _, spike := range []int{6, 11, 16} {
			if prev < spike && level >= spike {
				results = append(results, localResult(KindPowerSpike,
					fmt.Sprintf("level %d spike reached", spike),
					UrgencyInfo,
					map[string]any{"level": spike},
				))
				break
			}
		}
	}
	s.lastLevels[activeName] = level

	return results
}

// laneAlly returns the ally assigned to a side lane, nil when unknown.
func (s *State) laneAlly(snap *livegame.Snapshot, lane Lane) *livegame.Player {
	want := "TOP"
	if lane == LaneBot {
		want = "BOTTOM"
	}
	for i := range snap.AllPlayers {
		p := &snap.AllPlayers[i]
		if p.Team == s.localTeam && p.Position == want {
			return p
		}
	}
	return nil
}

// winCondition checks whether the dead enemies leave time to end.
// Push-time = max(0, 5 − maxTurretsDownInLane) × 18 + 10, scaled by 0.7
// when any enemy inhibitor is already down.
func (s *State) winCondition(enemies []livegame.Player) (Result, bool) {
	dead := 0
	junglerDead := false
	minRespawn := -1.0
	for _, e := range enemies {
		if !e.IsDead {
			continue
		}
		dead++
		if e.Position == "JUNGLE" {
			junglerDead = true
		}
		if minRespawn < 0 || e.RespawnTimer < minRespawn {
			minRespawn = e.RespawnTimer
		}
	}
	if dead < 3 || !junglerDead || minRespawn < 15 {
		return Result{}, false
	}

	pushTime := float64(max(0, 5-s.maxEnemyTurretsDown()))*18 + 10
	if s.anyEnemyInhibDown() {
		pushTime *= 0.7
	}
	if pushTime >= minRespawn {
		return Result{}, false
	}

	return localResult(KindWinCondition,
		fmt.Sprintf("%d enemies dead, push time %.0fs under %.0fs respawn", dead, pushTime, minRespawn),
		UrgencyUrgent,
		map[string]any{"push_time": pushTime, "min_respawn": minRespawn},
	), true
}

// handleEvent folds one telemetry event into the rolling state and returns
// the trigger it produces, if any. Repeated events are ignored.
func (s *State) handleEvent(event livegame.Event) (Result, bool) {
	if !s.markSeen(event) {
		return Result{}, false
	}

	switch event.EventName {
	case livegame.EventChampionKill:
		if s.isAlly(event.VictimName) {
			s.recordAllyDeath(event.EventTime)
		}
		return Result{}, false

	case livegame.EventDragonKill:
		if s.isAlly(event.KillerName) {
			s.alliedDrakes++
		} else {
			s.enemyDrakes++
		}
		return llmResult(KindObjectiveTaken,
			fmt.Sprintf("%s drake taken by %s", event.DragonType, event.KillerName),
			UrgencySuggestion,
		), true

	case livegame.EventBaronKill:
		s.lastBaronKill = event.EventTime
		return llmResult(KindObjectiveTaken,
			fmt.Sprintf("baron taken by %s", event.KillerName),
			UrgencyUrgent,
		), true

	case livegame.EventHeraldKill:
		return llmResult(KindObjectiveTaken,
			fmt.Sprintf("herald taken by %s", event.KillerName),
			UrgencyInfo,
		), true

	case livegame.EventTurretKilled:
		team, teamOK := ParseStructureTeam(event.TurretKilled)
		lane, laneOK := ParseStructureLane(event.TurretKilled)
		if teamOK && laneOK {
			s.turretsDown[teamLane{team: team, lane: lane}]++
		}
		return Result{}, false

	case livegame.EventInhibKilled:
		team, teamOK := ParseStructureTeam(event.InhibKilled)
		lane, laneOK := ParseStructureLane(event.InhibKilled)
		if teamOK && laneOK {
			if team == s.localTeam {
				s.allyInhibDown[lane] = true
			} else {
				s.enemyInhibDown[lane] = true
			}
		}
		return Result{}, false

	case livegame.EventInhibRespawned:
		team, teamOK := ParseStructureTeam(event.InhibRespawn)
		lane, laneOK := ParseStructureLane(event.InhibRespawn)
		if teamOK && laneOK {
			if team == s.localTeam {
				delete(s.allyInhibDown, lane)
			} else {
				delete(s.enemyInhibDown, lane)
			}
		}
		return Result{}, false
	}

	return Result{}, false
}
