package enricher

import (
	"encoding/json"
	"testing"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

func userPrompt(idx int, uuid, text string) protocol.ParsedMessage {
	return protocol.ParsedMessage{Kind: protocol.KindUserPrompt, LineIndex: idx, UUID: uuid, PromptText: text}
}

func assistantBlock(idx int, messageID, model string, usage protocol.Usage, block protocol.ContentBlock) protocol.ParsedMessage {
	return protocol.ParsedMessage{
		Kind: protocol.KindAssistantBlock, LineIndex: idx,
		MessageID: messageID, Model: model, Usage: usage, Block: block,
	}
}

func toolResult(idx int, toolUseID string, isError bool) protocol.ParsedMessage {
	return protocol.ParsedMessage{
		Kind: protocol.KindUserToolResult, LineIndex: idx,
		ToolResults: []protocol.ToolResultItem{{ToolUseID: toolUseID, Content: json.RawMessage(`"boom"`), IsError: isError}},
	}
}

func TestEnrichSession_TurnCounting(t *testing.T) {
	messages := []protocol.ParsedMessage{
		userPrompt(0, "u1", "first"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 5}, protocol.ContentBlock{Type: "text", Text: "ok"}),
		userPrompt(2, "u2", "second"),
		assistantBlock(3, "m2", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 20, OutputTokens: 8}, protocol.ContentBlock{Type: "text", Text: "ok2"}),
	}

	sess := EnrichSession(messages)

	if len(sess.Turns) != 2 {
		t.Fatalf("want 2 turns, got %d", len(sess.Turns))
	}
	if sess.Turns[0].TurnIndex != 1 || sess.Turns[1].TurnIndex != 2 {
		t.Errorf("turn indices = %d, %d; want 1, 2", sess.Turns[0].TurnIndex, sess.Turns[1].TurnIndex)
	}
	if sess.Turns[0].ResponseCount != 1 || sess.Turns[1].ResponseCount != 1 {
		t.Errorf("expected one response per turn, got %d and %d", sess.Turns[0].ResponseCount, sess.Turns[1].ResponseCount)
	}
	if len(sess.Responses) != 2 {
		t.Fatalf("want 2 responses, got %d", len(sess.Responses))
	}
}

func TestEnrichSession_MetaPromptDoesNotOpenTurn(t *testing.T) {
	messages := []protocol.ParsedMessage{
		{Kind: protocol.KindUserPrompt, LineIndex: 0, IsMeta: true, PromptText: "system reminder"},
		userPrompt(1, "u1", "real prompt"),
	}
	sess := EnrichSession(messages)
	if len(sess.Turns) != 1 {
		t.Fatalf("meta prompt should not open a turn, got %d turns", len(sess.Turns))
	}
}

func TestEnrichSession_LastWinsUsage(t *testing.T) {
	// Two assistant lines share the same message id; only the usage on the
	// second (last) line should count toward totals.
	messages := []protocol.ParsedMessage{
		userPrompt(0, "u1", "go"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 2}, protocol.ContentBlock{Type: "text", Text: "partial"}),
		assistantBlock(2, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 9}, protocol.ContentBlock{Type: "text", Text: "final"}),
	}
	sess := EnrichSession(messages)

	if sess.Totals.InputTokens != 10 {
		t.Errorf("InputTokens = %d, want 10 (not double-counted)", sess.Totals.InputTokens)
	}
	if sess.Totals.OutputTokens != 9 {
		t.Errorf("OutputTokens = %d, want 9 (last-wins, not 2+9)", sess.Totals.OutputTokens)
	}
	if len(sess.Responses) != 1 {
		t.Fatalf("want 1 reconstituted response, got %d", len(sess.Responses))
	}
	if len(sess.Responses[0].Blocks) != 2 {
		t.Errorf("want both blocks accumulated onto the one response, got %d", len(sess.Responses[0].Blocks))
	}
}

func TestEnrichSession_ToolErrorAttribution(t *testing.T) {
	messages := []protocol.ParsedMessage{
		userPrompt(0, "u1", "run it"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 5, OutputTokens: 5},
			protocol.ContentBlock{Type: "tool_use", ToolUseID: "t1", ToolName: "bash"}),
		toolResult(2, "t1", true),
	}
	sess := EnrichSession(messages)

	if len(sess.ToolStats) != 1 {
		t.Fatalf("want 1 tool stat, got %d", len(sess.ToolStats))
	}
	stat := sess.ToolStats[0]
	if stat.ToolName != "bash" || stat.CallCount != 1 || stat.ErrorCount != 1 {
		t.Errorf("unexpected tool stat: %+v", stat)
	}
	if len(stat.ErrorSamples) != 1 || stat.ErrorSamples[0].ToolUseID != "t1" {
		t.Errorf("unexpected error samples: %+v", stat.ErrorSamples)
	}
	if len(sess.ToolCalls) != 1 || sess.ToolCalls[0].ToolResultBlock == nil {
		t.Fatalf("want 1 paired tool call with a result, got %+v", sess.ToolCalls)
	}
}

func TestEnrichSession_UnmatchedToolUseHasNoResult(t *testing.T) {
	messages := []protocol.ParsedMessage{
		userPrompt(0, "u1", "run it"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 5, OutputTokens: 5},
			protocol.ContentBlock{Type: "tool_use", ToolUseID: "t1", ToolName: "bash"}),
	}
	sess := EnrichSession(messages)
	if len(sess.ToolCalls) != 1 || sess.ToolCalls[0].ToolResultBlock != nil {
		t.Fatalf("expected unmatched tool call with nil result, got %+v", sess.ToolCalls)
	}
}

// TestApplyBatch_MatchesFullEnrich is the spec's core equality property:
// enriching a whole transcript in one pass must equal enriching it one
// message at a time via ApplyBatch.
func TestApplyBatch_MatchesFullEnrich(t *testing.T) {
	messages := []protocol.ParsedMessage{
		userPrompt(0, "u1", "first"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 2}, protocol.ContentBlock{Type: "tool_use", ToolUseID: "t1", ToolName: "bash"}),
		assistantBlock(2, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 9}, protocol.ContentBlock{Type: "text", Text: "done"}),
		toolResult(3, "t1", false),
		userPrompt(4, "u2", "second"),
		assistantBlock(5, "m2", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 30, OutputTokens: 12}, protocol.ContentBlock{Type: "text", Text: "ok"}),
	}

	full := EnrichSession(messages)

	ctx := NewIncrementalContext()
	var incremental protocol.EnrichedSession
	for _, m := range messages {
		incremental = ApplyBatch(ctx, incremental, []protocol.ParsedMessage{m})
	}

	if full.Totals != incremental.Totals {
		t.Fatalf("totals diverge: full=%+v incremental=%+v", full.Totals, incremental.Totals)
	}
	if len(full.Turns) != len(incremental.Turns) {
		t.Fatalf("turn count diverges: %d vs %d", len(full.Turns), len(incremental.Turns))
	}
	if len(full.Responses) != len(incremental.Responses) {
		t.Fatalf("response count diverges: %d vs %d", len(full.Responses), len(incremental.Responses))
	}
	if len(full.ToolCalls) != len(incremental.ToolCalls) {
		t.Fatalf("tool call count diverges: %d vs %d", len(full.ToolCalls), len(incremental.ToolCalls))
	}
	if len(full.ContextSnapshots) != len(incremental.ContextSnapshots) {
		t.Fatalf("context snapshot count diverges: %d vs %d", len(full.ContextSnapshots), len(incremental.ContextSnapshots))
	}
}

func TestApplyBatch_EmptyBatchIsNoOp(t *testing.T) {
	prev := EnrichSession([]protocol.ParsedMessage{userPrompt(0, "u1", "hi")})
	ctx := NewIncrementalContextFromSession(prev)
	got := ApplyBatch(ctx, prev, nil)
	if len(got.Turns) != len(prev.Turns) {
		t.Fatalf("empty batch should be a no-op, turns changed")
	}
}

func TestApplyBatch_ResumesFromExistingSession(t *testing.T) {
	backlog := []protocol.ParsedMessage{
		userPrompt(0, "u1", "first"),
		assistantBlock(1, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 2}, protocol.ContentBlock{Type: "text", Text: "a"}),
	}
	prev := EnrichSession(backlog)
	ctx := NewIncrementalContextFromSession(prev)

	tail := []protocol.ParsedMessage{
		assistantBlock(2, "m1", "claude-sonnet-4-5-20250929", protocol.Usage{InputTokens: 10, OutputTokens: 7}, protocol.ContentBlock{Type: "text", Text: "b"}),
	}
	got := ApplyBatch(ctx, prev, tail)

	if len(got.Responses) != 1 {
		t.Fatalf("want the tail block to merge into the existing response, got %d responses", len(got.Responses))
	}
	if got.Totals.OutputTokens != 7 {
		t.Errorf("OutputTokens = %d, want 7 (last-wins across the resume boundary)", got.Totals.OutputTokens)
	}
}
