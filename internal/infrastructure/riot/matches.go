package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// MatchSummary is the per-match digest handed to the post-game review:
// the local player's line from one finished match.
type MatchSummary struct {
	MatchID      string `json:"matchId"`
	QueueID      int    `json:"queueId"`
	DurationSecs int    `json:"durationSeconds"`
	Champion     string `json:"champion"`
	Win          bool   `json:"win"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Assists      int    `json:"assists"`
	CreepScore   int    `json:"creepScore"`
	GoldEarned   int    `json:"goldEarned"`
	VisionScore  int    `json:"visionScore"`
}

type matchDetail struct {
	Metadata struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info struct {
		QueueID      int `json:"queueId"`
		GameDuration int `json:"gameDuration"`
		Participants []struct {
			PuuID                       string `json:"puuid"`
			ChampionName                string `json:"championName"`
			Win                         bool   `json:"win"`
			Kills                       int    `json:"kills"`
			Deaths                      int    `json:"deaths"`
			Assists                     int    `json:"assists"`
			TotalMinionsKilled          int    `json:"totalMinionsKilled"`
			NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
			GoldEarned                  int    `json:"goldEarned"`
			VisionScore                 int    `json:"visionScore"`
		} `json:"participants"`
	} `json:"info"`
}

// RecentMatches fetches the newest count matches for puuid and reduces
// each to the player's own line. Every request goes through the
// scheduler, so pacing and pause states apply.
func (c *Client) RecentMatches(ctx context.Context, puuid string, count int) ([]MatchSummary, error) {
	if count <= 0 {
		count = 5
	}
	idsURL := c.RegionalURL(fmt.Sprintf(
		"/lol/match/v5/matches/by-puuid/%s/ids?count=%d",
		url.PathEscape(puuid), count,
	))
	body, err := c.fetch(ctx, idsURL)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("decode match id list: %w", err)
	}

	summaries := make([]MatchSummary, 0, len(ids))
	for _, id := range ids {
		detailURL := c.RegionalURL("/lol/match/v5/matches/" + url.PathEscape(id))
		body, err := c.fetch(ctx, detailURL)
		if err != nil {
			return nil, err
		}
		var detail matchDetail
		if err := json.Unmarshal(body, &detail); err != nil {
			return nil, fmt.Errorf("decode match %s: %w", id, err)
		}
		if s, ok := summarize(&detail, puuid); ok {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

// fetch enqueues one GET and waits for its outcome or context cancel.
func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	select {
	case outcome := <-c.Get(u):
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		if outcome.Result.StatusCode != 200 {
			return nil, fmt.Errorf("cloud API returned %d for %s", outcome.Result.StatusCode, u)
		}
		return outcome.Result.Body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func summarize(detail *matchDetail, puuid string) (MatchSummary, bool) {
	for _, p := range detail.Info.Participants {
		if p.PuuID != puuid {
			continue
		}
		return MatchSummary{
			MatchID:      detail.Metadata.MatchID,
			QueueID:      detail.Info.QueueID,
			DurationSecs: detail.Info.GameDuration,
			Champion:     p.ChampionName,
			Win:          p.Win,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			Assists:      p.Assists,
			CreepScore:   p.TotalMinionsKilled + p.NeutralMinionsKilled,
			GoldEarned:   p.GoldEarned,
			VisionScore:  p.VisionScore,
		}, true
	}
	return MatchSummary{}, false
}
