package livegame

// Team identifiers as the telemetry source reports them.
const (
	TeamOrder = "ORDER"
	TeamChaos = "CHAOS"
)

// Scores is the per-player scoreboard line.
type Scores struct {
	Kills      int `json:"kills"`
	Deaths     int `json:"deaths"`
	Assists    int `json:"assists"`
	CreepScore int `json:"creepScore"`
}

// Player is one scoreboard entry from the full snapshot.
type Player struct {
	SummonerName string  `json:"summonerName"`
	RiotID       string  `json:"riotId"`
	ChampionName string  `json:"championName"`
	Team         string  `json:"team"` // ORDER | CHAOS
	Level        int     `json:"level"`
	Position     string  `json:"position"` // TOP | JUNGLE | MIDDLE | BOTTOM | UTILITY
	IsDead       bool    `json:"isDead"`
	RespawnTimer float64 `json:"respawnTimer"`
	Scores       Scores  `json:"scores"`
}

// Name returns the stable display name for team/lane bookkeeping.
func (p Player) Name() string {
	if p.RiotID != "" {
		return p.RiotID
	}
	return p.SummonerName
}

// ActivePlayer describes the player this process observes.
type ActivePlayer struct {
	SummonerName string  `json:"summonerName"`
	RiotID       string  `json:"riotId"`
	Level        int     `json:"level"`
	CurrentGold  float64 `json:"currentGold"`
}

// Name returns the active player's stable display name.
func (a ActivePlayer) Name() string {
	if a.RiotID != "" {
		return a.RiotID
	}
	return a.SummonerName
}

// GameData carries the match clock.
type GameData struct {
	GameTime float64 `json:"gameTime"` // seconds
	GameMode string  `json:"gameMode"`
}

// Snapshot is the full /allgamedata blob, taken every snapshot interval.
type Snapshot struct {
	ActivePlayer ActivePlayer `json:"activePlayer"`
	AllPlayers   []Player     `json:"allPlayers"`
	GameData     GameData     `json:"gameData"`
}

// Event is one entry from the /eventdata feed. Kind-specific fields are
// populated depending on EventName.
type Event struct {
	EventID   int     `json:"EventID"` // monotonic per match
	EventName string  `json:"EventName"`
	EventTime float64 `json:"EventTime"` // game-time seconds

	KillerName    string   `json:"KillerName,omitempty"`
	VictimName    string   `json:"VictimName,omitempty"`
	Assisters     []string `json:"Assisters,omitempty"`
	DragonType    string   `json:"DragonType,omitempty"`
	TurretKilled  string   `json:"TurretKilled,omitempty"`
	InhibKilled   string   `json:"InhibKilled,omitempty"`
	InhibRespawn  string   `json:"InhibRespawned,omitempty"`
	Stolen        string   `json:"Stolen,omitempty"`
}

// Event names the trigger engine reacts to.
const (
	EventChampionKill   = "ChampionKill"
	EventDragonKill     = "DragonKill"
	EventBaronKill      = "BaronKill"
	EventHeraldKill     = "HeraldKill"
	EventTurretKilled   = "TurretKilled"
	EventInhibKilled    = "InhibKilled"
	EventInhibRespawned = "InhibRespawned"
	EventGameStart      = "GameStart"
	EventMinionsSpawn   = "MinionsSpawning"
)

type eventFeed struct {
	Events []Event `json:"Events"`
}
