package conductor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// TickState is the terminal (or in-flight) state of one conductor tick.
type TickState string

const (
	// TickRunning means the tick is still in flight.
	TickRunning TickState = "running"
	// TickCompleted means the engine finished its turn cleanly.
	TickCompleted TickState = "completed"
	// TickErrored means an engine call failed; the tick stopped there.
	TickErrored TickState = "errored"
	// TickTurnBudgetExceeded means the turn budget ran out before the
	// engine finished. Distinct from an error: work may have been done.
	TickTurnBudgetExceeded TickState = "turn_budget_exceeded"
)

// Completer is the single engine call the loop depends on. The real
// implementation wraps the anthropic SDK; tests inject fakes.
type Completer interface {
	Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// TickResult is everything one tick produced.
type TickResult struct {
	// ID uniquely identifies the tick across the history store and logs.
	ID string
	// State is the terminal state.
	State TickState
	// Turns counts engine calls made.
	Turns int
	// ToolCalls counts tool invocations executed.
	ToolCalls int
	// Output is the engine's final text, accumulated across turns.
	Output string
	// Err is set when State is TickErrored.
	Err error
	// TokensIn and TokensOut sum usage across all engine calls.
	TokensIn  int64
	TokensOut int64
	// Started is when the tick began.
	Started time.Time
	// Transcript is the full message history of the tick, usable for
	// debugging or replay.
	Transcript []anthropic.MessageParam
}

// TickLoopConfig configures a TickLoop.
type TickLoopConfig struct {
	Engine     Completer
	Dispatcher *Dispatcher
	Model      anthropic.Model
	// TurnBudget bounds engine calls per tick (0 = default 30).
	TurnBudget int
	// MaxParallelTools bounds concurrent tool execution within one turn
	// (0 = default 4).
	MaxParallelTools int
	// MaxTokens per engine call (0 = default 8192).
	MaxTokens int64
	Logger    *DebugLogger
}

// TickLoop drives one conductor tick: call the engine, execute the tools
// it asks for, feed results back, until it stops or the budget runs out.
type TickLoop struct {
	engine      Completer
	dispatcher  *Dispatcher
	model       anthropic.Model
	turnBudget  int
	maxParallel int
	maxTokens   int64
	logger      *DebugLogger
}

// NewTickLoop creates a tick loop from the given configuration.
func NewTickLoop(cfg TickLoopConfig) *TickLoop {
	turnBudget := cfg.TurnBudget
	if turnBudget == 0 {
		turnBudget = 30
	}
	maxParallel := cfg.MaxParallelTools
	if maxParallel == 0 {
		maxParallel = 4
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}

	return &TickLoop{
		engine:      cfg.Engine,
		dispatcher:  cfg.Dispatcher,
		model:       cfg.Model,
		turnBudget:  turnBudget,
		maxParallel: maxParallel,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// RunTick runs one tick to a terminal state. Tool failures never end the
// tick; only an engine call failure or budget exhaustion does.
func (l *TickLoop) RunTick(ctx context.Context, systemPrompt, userMessage string) *TickResult {
	result := &TickResult{
		ID:      uuid.NewString(),
		State:   TickRunning,
		Started: time.Now(),
	}
	l.logger.Log("tick %s started, budget %d turns", result.ID, l.turnBudget)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
	}

	for result.Turns < l.turnBudget {
		result.Turns++

		resp, err := l.engine.Complete(ctx, anthropic.MessageNewParams{
			Model:     l.model,
			MaxTokens: l.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: messages,
			Tools:    Catalogue(),
		})
		if err != nil {
			result.State = TickErrored
			result.Err = fmt.Errorf("engine call failed on turn %d: %w", result.Turns, err)
			result.Transcript = messages
			l.logger.Log("tick %s errored on turn %d: %v", result.ID, result.Turns, err)
			return result
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var invocations []toolInvocation
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				result.Output += variant.Text
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				invocations = append(invocations, toolInvocation{
					id:    variant.ID,
					name:  variant.Name,
					input: variant.Input,
				})
			}
		}

		// A finished turn completes the tick, and so does any response
		// that requests no tools, whatever its stop reason. Checked
		// before execution so tool blocks on a finished turn never run.
		if resp.StopReason == anthropic.StopReasonEndTurn || len(invocations) == 0 {
			result.State = TickCompleted
			result.Transcript = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
			l.logger.Log("tick %s completed after %d turn(s), %d tool call(s)", result.ID, result.Turns, result.ToolCalls)
			return result
		}

		result.ToolCalls += len(invocations)
		toolResultBlocks := l.executeTools(ctx, result.ID, invocations)

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
	}

	result.State = TickTurnBudgetExceeded
	result.Transcript = messages
	l.logger.Log("tick %s exhausted its %d-turn budget", result.ID, l.turnBudget)
	return result
}

type toolInvocation struct {
	id    string
	name  string
	input json.RawMessage
}

// executeTools runs a turn's tool invocations concurrently and returns
// result blocks in the order the engine requested them, each tagged with
// its invocation id. Dispatch contains every failure as text, so results
// never carry the error flag.
func (l *TickLoop) executeTools(ctx context.Context, tickID string, invocations []toolInvocation) []anthropic.ContentBlockParamUnion {
	if len(invocations) == 0 {
		return nil
	}

	texts := make([]string, len(invocations))
	p := pool.New().WithMaxGoroutines(l.maxParallel)
	for i, inv := range invocations {
		i, inv := i, inv
		p.Go(func() {
			l.logger.Log("tick %s executing %s (%s)", tickID, inv.name, inv.id)
			texts[i] = l.dispatcher.Execute(ctx, inv.name, inv.input)
		})
	}
	p.Wait()

	blocks := make([]anthropic.ContentBlockParamUnion, len(invocations))
	for i, inv := range invocations {
		blocks[i] = anthropic.NewToolResultBlock(inv.id, texts[i], false)
	}
	return blocks
}
