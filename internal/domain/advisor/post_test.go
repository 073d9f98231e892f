package advisor

import (
	"testing"

	"github.com/willckim/Rift-Architect/internal/infrastructure/riot"
)

func match(win bool, kills, deaths, assists int) riot.MatchSummary {
	return riot.MatchSummary{Win: win, Kills: kills, Deaths: deaths, Assists: assists}
}

// === Recent form scoring ===

func TestFormScore(t *testing.T) {
	tests := []struct {
		name    string
		matches []riot.MatchSummary
		want    int
	}{
		{
			name: "strong streak",
			matches: []riot.MatchSummary{
				match(true, 10, 2, 8), // win +5, kda 9 +3
				match(true, 4, 1, 6),  // win +5, kda 10 +3
			},
			want: 66,
		},
		{
			name: "rough patch",
			matches: []riot.MatchSummary{
				match(false, 1, 8, 3), // loss -3, kda 0.5 -2
				match(false, 2, 6, 4), // loss -3, kda 1.0 -2
			},
			want: 40,
		},
		{
			name: "deathless counts one death",
			matches: []riot.MatchSummary{
				match(true, 3, 0, 2), // win +5, kda 5/1 +3
			},
			want: 58,
		},
		{
			name: "middling kda earns one",
			matches: []riot.MatchSummary{
				match(false, 5, 4, 6), // loss -3, kda 2.75 +1
			},
			want: 48,
		},
		{
			name:    "no matches stays neutral",
			matches: nil,
			want:    50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formScore(tt.matches); got != tt.want {
				t.Errorf("formScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormScore_Clamped(t *testing.T) {
	var hot, cold []riot.MatchSummary
	for i := 0; i < 20; i++ {
		hot = append(hot, match(true, 20, 1, 10))
		cold = append(cold, match(false, 0, 10, 0))
	}
	if got := formScore(hot); got != 100 {
		t.Errorf("hot streak = %d, want clamp at 100", got)
	}
	if got := formScore(cold); got != 0 {
		t.Errorf("cold streak = %d, want clamp at 0", got)
	}
}
