package lcu

// ChampSelectAction is one ban or pick slot in the draft.
type ChampSelectAction struct {
	ID          int    `json:"id"`
	Type        string `json:"type"` // "ban" | "pick"
	ActorCellID int    `json:"actorCellId"`
	ChampionID  int    `json:"championId"`
	Completed   bool   `json:"completed"`
}

// ChampSelectPlayer is one cell on either team.
type ChampSelectPlayer struct {
	CellID         int    `json:"cellId"`
	ChampionID     int    `json:"championId"`
	AssignedLane   string `json:"assignedPosition"`
	SummonerID     int64  `json:"summonerId"`
	PuuID          string `json:"puuid"`
	NameVisibility string `json:"nameVisibilityType"`
}

// ChampSelectSession is the draft state exposed by the client.
type ChampSelectSession struct {
	Actions           [][]ChampSelectAction `json:"actions"`
	MyTeam            []ChampSelectPlayer   `json:"myTeam"`
	TheirTeam         []ChampSelectPlayer   `json:"theirTeam"`
	LocalPlayerCellID int                   `json:"localPlayerCellId"`
	Timer             struct {
		Phase string `json:"phase"`
	} `json:"timer"`
}

// LocalPickCompleted reports whether the local cell's pick action is done.
func (s *ChampSelectSession) LocalPickCompleted() bool {
	for _, group := range s.Actions {
		for _, action := range group {
			if action.Type == "pick" && action.ActorCellID == s.LocalPlayerCellID && action.Completed {
				return true
			}
		}
	}
	return false
}

// Summoner is the local player's identity blob.
type Summoner struct {
	PuuID         string `json:"puuid"`
	GameName      string `json:"gameName"`
	TagLine       string `json:"tagLine"`
	SummonerLevel int    `json:"summonerLevel"`
}
