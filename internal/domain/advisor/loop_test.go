package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/lcu"
	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// stubAdvisor is a configurable Advisor for loop tests.
type stubAdvisor struct {
	name        string
	tools       []llm.Tool
	handleTool  func(ctx context.Context, name string, input map[string]any) (string, error)
	activateErr error
}

func (s *stubAdvisor) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubAdvisor) SystemPrompt() string { return "test directive" }
func (s *stubAdvisor) Tools() []llm.Tool    { return s.tools }

func (s *stubAdvisor) OnActivate(context.Context, *lcu.Session) error { return s.activateErr }
func (s *stubAdvisor) OnDeactivate()                                  {}

func (s *stubAdvisor) HandleTool(ctx context.Context, name string, input map[string]any) (string, error) {
	if s.handleTool == nil {
		return "", fmt.Errorf("no handler")
	}
	return s.handleTool(ctx, name, input)
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{llm.TextBlock(text)},
		StopReason: "end_turn",
	}
}

func toolUseResponse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{
			{Type: "tool_use", ID: id, Name: name, Input: input},
		},
		StopReason: "tool_use",
	}
}

// === Plain completion ===

func TestLoop_TextOnlyResponse(t *testing.T) {
	client := llm.ClientFunc(func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		if req.System != "test directive" {
			t.Errorf("system = %q", req.System)
		}
		return textResponse("push mid"), nil
	})
	loop := NewLoop(client, DefaultLoopConfig(), testLogger())

	res := loop.Invoke(context.Background(), &stubAdvisor{}, "ctx", "mid")
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if res.Text != "push mid" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", res.Rounds)
	}
}

// === Tool rounds ===

func TestLoop_ToolRoundThenText(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return toolUseResponse("use_1", "lookup", map[string]any{"q": "baron"}), nil
		}
		// The tool answer must have been threaded back as a tool_result.
		last := req.Messages[len(req.Messages)-1]
		if last.Role != "user" || len(last.Content) != 1 {
			t.Fatalf("unexpected final message: %+v", last)
		}
		if last.Content[0].ToolUseID != "use_1" || last.Content[0].Content != "baron is up" {
			t.Fatalf("tool result = %+v", last.Content[0])
		}
		return textResponse("take baron"), nil
	})

	adv := &stubAdvisor{
		handleTool: func(_ context.Context, name string, input map[string]any) (string, error) {
			if name != "lookup" || input["q"] != "baron" {
				t.Errorf("tool call = %s %v", name, input)
			}
			return "baron is up", nil
		},
	}

	loop := NewLoop(llm.Client(client), DefaultLoopConfig(), testLogger())
	res := loop.Invoke(context.Background(), adv, "ctx", "late")
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if res.Text != "take baron" || res.Rounds != 2 {
		t.Errorf("text=%q rounds=%d", res.Text, res.Rounds)
	}
}

func TestLoop_ToolErrorsReturnedToModel(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return toolUseResponse("use_1", "broken", nil), nil
		}
		last := req.Messages[len(req.Messages)-1]
		if !strings.Contains(last.Content[0].Content, `"error"`) {
			t.Errorf("tool failure not surfaced to the model: %q", last.Content[0].Content)
		}
		return textResponse("nevermind"), nil
	})

	adv := &stubAdvisor{
		handleTool: func(context.Context, string, map[string]any) (string, error) {
			return "", errors.New("store offline")
		},
	}

	loop := NewLoop(client, DefaultLoopConfig(), testLogger())
	if res := loop.Invoke(context.Background(), adv, "ctx", ""); res.Err != "" {
		t.Fatalf("tool error must not fail the invocation: %s", res.Err)
	}
}

func TestLoop_ToolPanicRecovered(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(context.Context, *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return toolUseResponse("use_1", "boom", nil), nil
		}
		return textResponse("ok"), nil
	})

	adv := &stubAdvisor{
		handleTool: func(context.Context, string, map[string]any) (string, error) {
			panic("tool exploded")
		},
	}

	loop := NewLoop(client, DefaultLoopConfig(), testLogger())
	res := loop.Invoke(context.Background(), adv, "ctx", "")
	if res.Err != "" {
		t.Fatalf("panic must be contained: %s", res.Err)
	}
	if res.Text != "ok" {
		t.Errorf("text = %q", res.Text)
	}
}

// === Bounds ===

func TestLoop_RoundLimit(t *testing.T) {
	client := llm.ClientFunc(func(context.Context, *llm.Request) (*llm.Response, error) {
		return toolUseResponse("use_n", "loop_forever", nil), nil
	})
	adv := &stubAdvisor{
		handleTool: func(context.Context, string, map[string]any) (string, error) {
			return "again", nil
		},
	}

	loop := NewLoop(client, LoopConfig{MaxRounds: 3, RequestTimeout: time.Second}, testLogger())
	res := loop.Invoke(context.Background(), adv, "ctx", "")
	if res.Err == "" {
		t.Fatal("expected an error at the round limit")
	}
	if res.Rounds != 3 {
		t.Errorf("rounds = %d, want 3", res.Rounds)
	}
}

func TestLoop_RetriesThenFails(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(context.Context, *llm.Request) (*llm.Response, error) {
		calls++
		return nil, errors.New("transport down")
	})

	loop := NewLoop(client, LoopConfig{MaxRounds: 5, RequestTimeout: time.Second, Retries: 2}, testLogger())
	res := loop.Invoke(context.Background(), &stubAdvisor{}, "ctx", "")
	if res.Err == "" {
		t.Fatal("expected a transport error")
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3 (1 + 2 retries)", calls)
	}
}
