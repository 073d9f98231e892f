package trigger

import (
	"fmt"
	"strings"

	"github.com/willckim/Rift-Architect/internal/infrastructure/livegame"
)

// Lane is a map lane.
type Lane string

const (
	LaneTop Lane = "top"
	LaneMid Lane = "mid"
	LaneBot Lane = "bot"
)

// Baron timing constants (game-time seconds).
const (
	baronFirstSpawn   = 1200.0
	baronRespawnDelay = 360.0
)

const (
	allyDeathWindow  = 30.0 // seconds of game time
	goldHistoryLimit = 32
)

// ParseStructureTeam reads the owning team out of a structure name
// (T1 = ORDER, T2 = CHAOS).
func ParseStructureTeam(name string) (string, bool) {
	switch {
	case strings.Contains(name, "T1"):
		return livegame.TeamOrder, true
	case strings.Contains(name, "T2"):
		return livegame.TeamChaos, true
	default:
		return "", false
	}
}

// ParseStructureLane reads the lane out of a structure name:
// _L → top, _C → mid, _R → bot. Works for turrets and barracks alike.
func ParseStructureLane(name string) (Lane, bool) {
	switch {
	case strings.Contains(name, "_L"):
		return LaneTop, true
	case strings.Contains(name, "_C"):
		return LaneMid, true
	case strings.Contains(name, "_R"):
		return LaneBot, true
	default:
		return "", false
	}
}

type teamLane struct {
	team string
	lane Lane
}

// State holds the engine's per-match rolling aggregates. Single-writer:
// only the engine mutates it, from serialized snapshot/event callbacks.
type State struct {
	localTeam   string
	nameToTeam  map[string]string
	goldHistory []float64 // lead history, bounded

	alliedDrakes int
	enemyDrakes  int

	lastBaronKill float64 // game time of the last baron death, 0 = never

	allyDeathTimes []float64 // game times inside the 30s window

	turretsDown    map[teamLane]int
	allyInhibDown  map[Lane]bool
	enemyInhibDown map[Lane]bool

	lastLevels map[string]int

	seenEvents map[string]bool

	lastReportedLead float64
}

// NewState creates an empty per-match state.
func NewState() *State {
	return &State{
		nameToTeam:     make(map[string]string),
		turretsDown:    make(map[teamLane]int),
		allyInhibDown:  make(map[Lane]bool),
		enemyInhibDown: make(map[Lane]bool),
		lastLevels:     make(map[string]int),
		seenEvents:     make(map[string]bool),
	}
}

// LocalTeam returns the locked local team ("" before the first snapshot).
func (s *State) LocalTeam() string { return s.localTeam }

// EnemyTeam returns the opposing team ("" before the first snapshot).
func (s *State) EnemyTeam() string {
	switch s.localTeam {
	case livegame.TeamOrder:
		return livegame.TeamChaos
	case livegame.TeamChaos:
		return livegame.TeamOrder
	default:
		return ""
	}
}

// identify locks the local team from the active player and refreshes the
// name→team map from the scoreboard.
func (s *State) identify(snap *livegame.Snapshot) {
	active := snap.ActivePlayer.Name()
	for _, p := range snap.AllPlayers {
		s.nameToTeam[p.Name()] = p.Team
		if s.localTeam == "" && p.Name() == active {
			s.localTeam = p.Team
		}
	}
}

// teamOf resolves a player name to a team, "" when unknown.
func (s *State) teamOf(name string) string {
	return s.nameToTeam[name]
}

// isAlly reports whether the named player is on the local team.
func (s *State) isAlly(name string) bool {
	return s.localTeam != "" && s.teamOf(name) == s.localTeam
}

// markSeen dedups events by name:id. Returns false on a repeat.
func (s *State) markSeen(event livegame.Event) bool {
	key := fmt.Sprintf("%s:%d", event.EventName, event.EventID)
	if s.seenEvents[key] {
		return false
	}
	s.seenEvents[key] = true
	return true
}

// estimateGoldLead approximates the team gold gap from scoreboard stats
// only: cs×20 + kills×300 + assists×150. The telemetry exposes real gold
// for the active player alone, so this stays an estimate.
func (s *State) estimateGoldLead(snap *livegame.Snapshot) float64 {
	var ally, enemy float64
	for _, p := range snap.AllPlayers {
		value := float64(p.Scores.CreepScore)*20 +
			float64(p.Scores.Kills)*300 +
			float64(p.Scores.Assists)*150
		if p.Team == s.localTeam {
			ally += value
		} else {
			enemy += value
		}
	}
	lead := ally - enemy
	s.goldHistory = append(s.goldHistory, lead)
	if len(s.goldHistory) > goldHistoryLimit {
		s.goldHistory = s.goldHistory[len(s.goldHistory)-goldHistoryLimit:]
	}
	return lead
}

// recordAllyDeath pushes an ally death time into the sliding window.
func (s *State) recordAllyDeath(gameTime float64) {
	s.allyDeathTimes = append(s.allyDeathTimes, gameTime)
}

// pruneDeaths drops ally deaths older than the window.
func (s *State) pruneDeaths(gameTime float64) {
	kept := s.allyDeathTimes[:0]
	for _, t := range s.allyDeathTimes {
		if gameTime-t <= allyDeathWindow {
			kept = append(kept, t)
		}
	}
	s.allyDeathTimes = kept
}

// recentAllyDeaths counts ally deaths inside the window.
func (s *State) recentAllyDeaths(gameTime float64) int {
	s.pruneDeaths(gameTime)
	return len(s.allyDeathTimes)
}

// baronUp reports whether baron is on the map at the given game time.
func (s *State) baronUp(gameTime float64) bool {
	if gameTime < baronFirstSpawn {
		return false
	}
	if s.lastBaronKill == 0 {
		return true
	}
	return gameTime >= s.lastBaronKill+baronRespawnDelay
}

// turretsDownIn returns the destroyed-turret count for a team's lane.
func (s *State) turretsDownIn(team string, lane Lane) int {
	return s.turretsDown[teamLane{team: team, lane: lane}]
}

// maxEnemyTurretsDown returns the deepest enemy lane by destroyed turrets.
func (s *State) maxEnemyTurretsDown() int {
	enemy := s.EnemyTeam()
	max := 0
	for _, lane := range []Lane{LaneTop, LaneMid, LaneBot} {
		if n := s.turretsDownIn(enemy, lane); n > max {
			max = n
		}
	}
	return max
}

// anyEnemyInhibDown reports whether the enemy has an inhibitor down.
func (s *State) anyEnemyInhibDown() bool {
	return len(s.enemyInhibDown) > 0
}
