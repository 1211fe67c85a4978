package conductor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

// message builds an anthropic.Message from wire-format JSON so the SDK's
// content accessors behave exactly as they do on real responses.
func message(t *testing.T, raw string) *anthropic.Message {
	t.Helper()
	var m anthropic.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return &m
}

func textDone(t *testing.T, text string) *anthropic.Message {
	return message(t, `{
		"id": "msg_1", "type": "message", "role": "assistant",
		"model": "test",
		"content": [{"type": "text", "text": "`+text+`"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
}

func toolTurn(t *testing.T) *anthropic.Message {
	return message(t, `{
		"id": "msg_2", "type": "message", "role": "assistant",
		"model": "test",
		"content": [
			{"type": "tool_use", "id": "toolu_1", "name": "unread_count", "input": {}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 20, "output_tokens": 8}
	}`)
}

type fakeEngine struct {
	responses []*anthropic.Message
	err       error
	calls     int
	params    []anthropic.MessageNewParams
}

func (f *fakeEngine) Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	f.calls++
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func newTestLoop(engine Completer, budget int) *TickLoop {
	d := newTestDispatcher(&stubTracker{unread: 2}, &fakeDelegator{}, nil)
	return NewTickLoop(TickLoopConfig{
		Engine:     engine,
		Dispatcher: d,
		Model:      "test",
		TurnBudget: budget,
	})
}

func TestRunTickCompletesOnEndTurn(t *testing.T) {
	engine := &fakeEngine{responses: []*anthropic.Message{textDone(t, "All quiet.")}}
	loop := newTestLoop(engine, 5)

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickCompleted {
		t.Errorf("State = %q, want completed", res.State)
	}
	if res.Turns != 1 {
		t.Errorf("Turns = %d, want 1", res.Turns)
	}
	if res.Output != "All quiet." {
		t.Errorf("Output = %q", res.Output)
	}
	if res.TokensIn != 10 || res.TokensOut != 5 {
		t.Errorf("tokens = %d/%d", res.TokensIn, res.TokensOut)
	}
	if res.ID == "" {
		t.Error("tick id must be set")
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil", res.Err)
	}
}

// countingTracker counts inbox polls so a test can assert a tool was
// never executed.
type countingTracker struct {
	stubTracker
	unreadCalls int
}

func (c *countingTracker) UnreadCount(ctx context.Context) (int, error) {
	c.unreadCalls++
	return 0, nil
}

func TestRunTickCompletesWithoutToolRequests(t *testing.T) {
	// A truncated text-only answer requests no tools, so the tick is done
	// even though the stop reason is not end_turn.
	truncated := message(t, `{
		"id": "msg_4", "type": "message", "role": "assistant",
		"model": "test",
		"content": [{"type": "text", "text": "partial answer"}],
		"stop_reason": "max_tokens",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	engine := &fakeEngine{responses: []*anthropic.Message{truncated}}
	loop := newTestLoop(engine, 3)

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickCompleted {
		t.Errorf("State = %q, want completed", res.State)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls)
	}
	if res.Output != "partial answer" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRunTickEndTurnSkipsToolExecution(t *testing.T) {
	// A finished turn that still carries a tool_use block completes the
	// tick without running the tool; its result would have nowhere to go.
	mixed := message(t, `{
		"id": "msg_5", "type": "message", "role": "assistant",
		"model": "test",
		"content": [
			{"type": "text", "text": "wrapping up"},
			{"type": "tool_use", "id": "toolu_x", "name": "unread_count", "input": {}}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	trk := &countingTracker{}
	engine := &fakeEngine{responses: []*anthropic.Message{mixed}}
	loop := NewTickLoop(TickLoopConfig{
		Engine:     engine,
		Dispatcher: newTestDispatcher(trk, &fakeDelegator{}, nil),
		Model:      "test",
		TurnBudget: 5,
	})

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickCompleted {
		t.Fatalf("State = %q, want completed", res.State)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", engine.calls)
	}
	if res.ToolCalls != 0 {
		t.Errorf("ToolCalls = %d, want 0", res.ToolCalls)
	}
	if trk.unreadCalls != 0 {
		t.Errorf("tool executed %d time(s) on a finished turn", trk.unreadCalls)
	}
}

func TestRunTickExecutesToolsAndContinues(t *testing.T) {
	engine := &fakeEngine{responses: []*anthropic.Message{
		toolTurn(t),
		textDone(t, "Handled."),
	}}
	loop := newTestLoop(engine, 5)

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickCompleted {
		t.Fatalf("State = %q: %v", res.State, res.Err)
	}
	if res.Turns != 2 {
		t.Errorf("Turns = %d, want 2", res.Turns)
	}
	if res.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", res.ToolCalls)
	}

	// Second call must carry user message, assistant tool use, tool result.
	second := engine.params[1]
	if len(second.Messages) != 3 {
		t.Fatalf("second call has %d messages, want 3", len(second.Messages))
	}
	result := second.Messages[2]
	if len(result.Content) != 1 || result.Content[0].OfToolResult == nil {
		t.Fatalf("third message is not a tool result: %+v", result)
	}
	if result.Content[0].OfToolResult.ToolUseID != "toolu_1" {
		t.Errorf("ToolUseID = %q, want toolu_1", result.Content[0].OfToolResult.ToolUseID)
	}
}

func TestRunTickTurnBudgetExceeded(t *testing.T) {
	// The engine keeps asking for tools and never ends its turn.
	engine := &fakeEngine{responses: []*anthropic.Message{toolTurn(t)}}
	loop := newTestLoop(engine, 3)

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickTurnBudgetExceeded {
		t.Errorf("State = %q, want turn_budget_exceeded", res.State)
	}
	if engine.calls != 3 {
		t.Errorf("engine calls = %d, want exactly 3", engine.calls)
	}
	if res.Turns != 3 {
		t.Errorf("Turns = %d, want 3", res.Turns)
	}
	if res.ToolCalls != 3 {
		t.Errorf("ToolCalls = %d, want 3", res.ToolCalls)
	}
}

func TestRunTickEngineError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("overloaded")}
	loop := newTestLoop(engine, 5)

	res := loop.RunTick(context.Background(), "system", "tick")

	if res.State != TickErrored {
		t.Errorf("State = %q, want errored", res.State)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "overloaded") {
		t.Errorf("Err = %v", res.Err)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls = %d, no retries expected", engine.calls)
	}
}

func TestRunTickParallelToolResultsKeepOrder(t *testing.T) {
	multi := message(t, `{
		"id": "msg_3", "type": "message", "role": "assistant",
		"model": "test",
		"content": [
			{"type": "tool_use", "id": "toolu_a", "name": "unread_count", "input": {}},
			{"type": "tool_use", "id": "toolu_b", "name": "no_such_action", "input": {}},
			{"type": "tool_use", "id": "toolu_c", "name": "unread_count", "input": {}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 5, "output_tokens": 5}
	}`)
	engine := &fakeEngine{responses: []*anthropic.Message{multi, textDone(t, "done")}}
	loop := newTestLoop(engine, 5)

	res := loop.RunTick(context.Background(), "system", "tick")
	if res.State != TickCompleted {
		t.Fatalf("State = %q: %v", res.State, res.Err)
	}
	if res.ToolCalls != 3 {
		t.Errorf("ToolCalls = %d, want 3", res.ToolCalls)
	}

	result := engine.params[1].Messages[2]
	if len(result.Content) != 3 {
		t.Fatalf("tool result message has %d blocks, want 3", len(result.Content))
	}
	wantIDs := []string{"toolu_a", "toolu_b", "toolu_c"}
	for i, block := range result.Content {
		if block.OfToolResult == nil {
			t.Fatalf("block %d is not a tool result", i)
		}
		if block.OfToolResult.ToolUseID != wantIDs[i] {
			t.Errorf("block %d ToolUseID = %q, want %q", i, block.OfToolResult.ToolUseID, wantIDs[i])
		}
	}
}

func TestRunTickAdvertisesCatalogue(t *testing.T) {
	engine := &fakeEngine{responses: []*anthropic.Message{textDone(t, "ok")}}
	loop := newTestLoop(engine, 2)

	loop.RunTick(context.Background(), "system", "tick")

	if len(engine.params[0].Tools) != 24 {
		t.Errorf("advertised %d tools, want 24", len(engine.params[0].Tools))
	}
}

func TestSystemPromptListsWorkers(t *testing.T) {
	prompt := SystemPrompt("conductor", testWorkers())
	if !strings.Contains(prompt, "conductor") || !strings.Contains(prompt, "w1") {
		t.Errorf("prompt missing identity or worker: %q", prompt)
	}
}
