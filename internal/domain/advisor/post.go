package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
	"github.com/willckim/Rift-Architect/internal/infrastructure/riot"
	"github.com/willckim/Rift-Architect/pkg/safego"
)

const postSystemPrompt = `You are a League of Legends performance coach
reviewing a finished match. You receive the end-of-game scoreboard and
may fetch the player's recent match history. Identify the two or three
decisions or patterns that most affected the result and give concrete,
actionable improvement points. Address the player directly and stay
constructive.`

// MatchFetcher pulls recent matches for the local player through the
// external API scheduler.
type MatchFetcher interface {
	RecentMatches(ctx context.Context, puuid string, count int) ([]riot.MatchSummary, error)
}

// PostAdvisor runs a single post-game review when the match ends.
type PostAdvisor struct {
	loop    *Loop
	sink    Sink
	matches MatchFetcher
	logger  *zap.Logger

	mu      sync.Mutex
	session *lcu.Session
	eog     json.RawMessage
}

// NewPostAdvisor wires the post-game advisor. matches may be nil when no
// external API access is configured; history tools then report an error
// text the model can work around.
func NewPostAdvisor(loop *Loop, sink Sink, matches MatchFetcher, logger *zap.Logger) *PostAdvisor {
	return &PostAdvisor{
		loop:    loop,
		sink:    sink,
		matches: matches,
		logger:  logger.With(zap.String("component", "post-advisor")),
	}
}

func (p *PostAdvisor) Name() string         { return "post" }
func (p *PostAdvisor) SystemPrompt() string { return postSystemPrompt }

func (p *PostAdvisor) Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "get_recent_matches",
			Description: "Fetch summaries of the player's most recent ranked matches, newest first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"count": map[string]any{
						"type":        "integer",
						"description": "How many matches to fetch, 1 to 10.",
					},
				},
			},
		},
	}
}

// OnActivate fetches the end-of-game blob once and kicks off the review.
func (p *PostAdvisor) OnActivate(ctx context.Context, sess *lcu.Session) error {
	p.mu.Lock()
	if p.session != nil {
		p.mu.Unlock()
		return nil
	}
	p.session = sess
	p.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	blob, err := sess.REST.EndOfGameStats(fetchCtx)
	cancel()
	if err != nil {
		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()
		return fmt.Errorf("end-of-game stats unavailable: %w", err)
	}

	p.mu.Lock()
	p.eog = blob
	p.mu.Unlock()

	safego.Go(p.logger, "post-review", p.review)
	return nil
}

func (p *PostAdvisor) OnDeactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
	p.eog = nil
}

// HandleTool answers the advisor's tool calls.
func (p *PostAdvisor) HandleTool(ctx context.Context, name string, input map[string]any) (string, error) {
	switch name {
	case "get_recent_matches":
		return p.recentMatches(ctx, input)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (p *PostAdvisor) recentMatches(ctx context.Context, input map[string]any) (string, error) {
	if p.matches == nil {
		return "", fmt.Errorf("match history is not configured")
	}
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return "", fmt.Errorf("no active client session")
	}

	count := 5
	if v, ok := input["count"].(float64); ok && v >= 1 && v <= 10 {
		count = int(v)
	}

	sumCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	summoner, err := sess.REST.CurrentSummoner(sumCtx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("resolve local summoner: %w", err)
	}

	matches, err := p.matches.RecentMatches(ctx, summoner.PuuID, count)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(matches)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (p *PostAdvisor) review() {
	p.mu.Lock()
	blob := p.eog
	p.mu.Unlock()
	if blob == nil {
		return
	}

	contextText := fmt.Sprintf("The match just ended. End-of-game scoreboard:\n%s", blob)
	if form, ok := p.recentForm(); ok {
		contextText += fmt.Sprintf("\nrecent_form_score: %d (0-100, computed over the player's last matches)", form)
	}
	res := p.loop.Invoke(context.Background(), p, contextText, "post")
	if res.Err != "" {
		p.logger.Warn("Post-game review failed", zap.String("error", res.Err))
		return
	}

	p.mu.Lock()
	stillActive := p.session != nil
	p.mu.Unlock()
	if !stillActive {
		return
	}
	p.sink.Send(ChannelPostAnalysis, map[string]any{
		"analysis": res.Text,
		"rounds":   res.Rounds,
	})
}

// recentForm fetches the player's last matches and scores them locally.
// Any failure degrades the review to the scoreboard alone.
func (p *PostAdvisor) recentForm() (int, bool) {
	if p.matches == nil {
		return 0, false
	}
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return 0, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	summoner, err := sess.REST.CurrentSummoner(ctx)
	if err != nil {
		p.logger.Debug("Recent form unavailable", zap.Error(err))
		return 0, false
	}
	matches, err := p.matches.RecentMatches(ctx, summoner.PuuID, 5)
	if err != nil || len(matches) == 0 {
		p.logger.Debug("Recent form unavailable", zap.Error(err))
		return 0, false
	}
	return formScore(matches), true
}

// formScore reduces recent matches to a 0-100 form score. Starts at 50,
// then per match: +5 win / -3 loss, KDA at least 4 is +3 and at least 2.5
// is +1, below 1.5 is -2. Deaths count as one when zero.
func formScore(matches []riot.MatchSummary) int {
	score := 50
	for _, m := range matches {
		if m.Win {
			score += 5
		} else {
			score -= 3
		}
		deaths := m.Deaths
		if deaths == 0 {
			deaths = 1
		}
		kda := float64(m.Kills+m.Assists) / float64(deaths)
		switch {
		case kda >= 4:
			score += 3
		case kda >= 2.5:
			score++
		case kda < 1.5:
			score -= 2
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
