package advisor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/willckim/Rift-Architect/internal/infrastructure/llm"
)

// LoopConfig bounds a model invocation.
type LoopConfig struct {
	MaxRounds      int           // tool-use rounds before forcing a stop (default 10)
	RequestTimeout time.Duration // per model request (default 30s)
	Retries        int           // extra attempts per model request (default 2)
}

// DefaultLoopConfig returns the production bounds.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxRounds:      10,
		RequestTimeout: 30 * time.Second,
		Retries:        2,
	}
}

// InvokeResult is the outcome of one advisor invocation. Failures are
// reported in Err, never as panics past the advisor boundary.
type InvokeResult struct {
	Text     string
	Rounds   int
	PhaseTag string
	Err      string
}

// Loop drives the model tool-loop on an advisor's behalf: send the system
// directive, tools and context; execute every requested tool; feed results
// back; stop on a text-only reply or after MaxRounds.
type Loop struct {
	client llm.Client
	cfg    LoopConfig
	logger *zap.Logger
}

// NewLoop creates a tool loop over the given model client.
func NewLoop(client llm.Client, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Loop{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "invoke-loop")),
	}
}

// Invoke runs one full invocation for the advisor.
func (l *Loop) Invoke(ctx context.Context, adv Advisor, contextText, phaseTag string) InvokeResult {
	result := InvokeResult{PhaseTag: phaseTag}

	messages := []llm.Message{
		{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(contextText)}},
	}
	tools := adv.Tools()
	system := adv.SystemPrompt()

	for round := 1; round <= l.cfg.MaxRounds; round++ {
		result.Rounds = round

		resp, err := l.generate(ctx, &llm.Request{
			System:   system,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			result.Err = err.Error()
			l.logger.Warn("Model request failed",
				zap.String("advisor", adv.Name()),
				zap.Int("round", round),
				zap.Error(err),
			)
			return result
		}

		uses := resp.ToolUses()
		if len(uses) == 0 {
			result.Text = resp.Text()
			return result
		}

		// Append the assistant turn, then answer every tool_use block.
		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})
		answers := make([]llm.ContentBlock, 0, len(uses))
		for _, use := range uses {
			answers = append(answers, llm.ToolResultBlock(use.ID, l.runTool(ctx, adv, use)))
		}
		messages = append(messages, llm.Message{Role: "user", Content: answers})
	}

	result.Err = fmt.Sprintf("tool loop exceeded %d rounds", l.cfg.MaxRounds)
	return result
}

// generate issues one model request with timeout and retries.
func (l *Loop) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.Retries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
		resp, err := l.client.Generate(reqCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// runTool executes one tool call, converting handler errors and panics
// into an error payload the model can keep working with.
func (l *Loop) runTool(ctx context.Context, adv Advisor, use llm.ContentBlock) (output string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Tool handler panicked",
				zap.String("advisor", adv.Name()),
				zap.String("tool", use.Name),
				zap.Any("panic", r),
			)
			output = fmt.Sprintf(`{"error": %q}`, fmt.Sprint(r))
		}
	}()

	out, err := adv.HandleTool(ctx, use.Name, use.Input)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return out
}
