// Package enricher turns a flat stream of protocol.ParsedMessage records
// into the derived, analytics-ready protocol.EnrichedSession, and exposes
// an incremental twin that updates an existing EnrichedSession given only
// the newly parsed suffix of a session's transcript.
package enricher

import (
	"time"

	"github.com/fleetobserver/fleetobserver/internal/pricing"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// builder carries the mutable state of one forward pass. The same builder
// type backs both EnrichSession (fresh state) and ApplyBatch (state seeded
// from a previous EnrichedSession plus an IncrementalContext), so the two
// entry points can never drift apart.
type builder struct {
	messages []protocol.ParsedMessage

	turns           []protocol.Turn
	currentTurnIdx  int

	responses      []protocol.ReconstitutedResponse
	responseIndex  map[string]int

	toolStats     []protocol.ToolStat
	toolStatIndex map[string]int

	toolUseIDToName map[string]string
	toolUseIDToTurn map[string]int

	subagents []protocol.SubagentRef

	totals protocol.TokenTotals

	// seenMessageIDs / appliedUsage support idempotent incremental token
	// accounting: a messageId's usage is counted into totals exactly once
	// per observed value, and only the delta over the last-applied usage
	// is added when a later block for the same id carries a larger usage.
	seenMessageIDs map[string]bool
	appliedUsage   map[string]protocol.Usage

	pricing pricing.Table
}

func newBuilder() *builder {
	return &builder{
		responseIndex:   make(map[string]int),
		toolStatIndex:   make(map[string]int),
		toolUseIDToName: make(map[string]string),
		toolUseIDToTurn: make(map[string]int),
		seenMessageIDs:  make(map[string]bool),
		appliedUsage:    make(map[string]protocol.Usage),
		pricing:         pricing.Default,
	}
}

// process applies one ParsedMessage's state transition.
func (b *builder) process(m protocol.ParsedMessage) {
	if m.Kind == protocol.KindUserPrompt && !m.IsMeta {
		b.currentTurnIdx++
		b.turns = append(b.turns, protocol.Turn{
			TurnIndex:  b.currentTurnIdx,
			PromptText: m.PromptText,
			PromptUUID: m.UUID,
		})
	}

	m.TurnIndex = b.currentTurnIdx
	b.messages = append(b.messages, m)

	switch m.Kind {
	case protocol.KindAssistantBlock:
		b.processAssistantBlock(m)

	case protocol.KindUserToolResult:
		for _, tr := range m.ToolResults {
			name, ok := b.toolUseIDToName[tr.ToolUseID]
			if !ok {
				continue
			}
			idx := b.toolStatIndex[name]
			stat := &b.toolStats[idx]
			if tr.IsError {
				stat.ErrorCount++
				stat.ErrorSamples = append(stat.ErrorSamples, protocol.ToolErrorSample{
					ToolUseID: tr.ToolUseID,
					ErrorText: string(tr.Content),
					TurnIndex: b.currentTurnIdx,
				})
			}
		}

	case protocol.KindSystemTurnDuration:
		if len(b.turns) > 0 {
			d := m.DurationMs
			b.turns[len(b.turns)-1].DurationMs = &d
		}

	case protocol.KindProgressAgent:
		b.subagents = append(b.subagents, protocol.SubagentRef{
			AgentID:         m.AgentID,
			Prompt:          m.AgentPrompt,
			ParentToolUseID: m.ParentToolUseID,
		})
	}
}

func (b *builder) processAssistantBlock(m protocol.ParsedMessage) {
	idx, exists := b.responseIndex[m.MessageID]
	if !exists {
		idx = len(b.responses)
		b.responseIndex[m.MessageID] = idx
		b.responses = append(b.responses, protocol.ReconstitutedResponse{
			MessageID:      m.MessageID,
			Model:          m.Model,
			Usage:          m.Usage,
			TurnIndex:      b.currentTurnIdx,
			LineIndexStart: m.LineIndex,
			LineIndexEnd:   m.LineIndex,
		})
		if b.currentTurnIdx > 0 && len(b.turns) > 0 && b.turns[len(b.turns)-1].TurnIndex == b.currentTurnIdx {
			b.turns[len(b.turns)-1].ResponseCount++
		}
	}

	resp := &b.responses[idx]
	resp.Usage = m.Usage // last-wins
	resp.LineIndexEnd = m.LineIndex
	if m.Block.Type != "" {
		resp.Blocks = append(resp.Blocks, m.Block)
	}

	b.accountUsage(m.MessageID, m.Usage)

	if m.Block.Type == "tool_use" {
		b.totals.ToolUseCount++
		if b.currentTurnIdx > 0 && len(b.turns) > 0 && b.turns[len(b.turns)-1].TurnIndex == b.currentTurnIdx {
			b.turns[len(b.turns)-1].ToolUseCount++
		}
		b.upsertToolStat(m.Block.ToolName).CallCount++
		b.toolUseIDToName[m.Block.ToolUseID] = m.Block.ToolName
		b.toolUseIDToTurn[m.Block.ToolUseID] = b.currentTurnIdx
	}
}

func (b *builder) upsertToolStat(name string) *protocol.ToolStat {
	idx, ok := b.toolStatIndex[name]
	if !ok {
		idx = len(b.toolStats)
		b.toolStatIndex[name] = idx
		b.toolStats = append(b.toolStats, protocol.ToolStat{ToolName: name})
	}
	return &b.toolStats[idx]
}

// accountUsage implements idempotent last-wins token accounting: each
// messageId's usage contributes to totals exactly once per observed
// value; a later, larger usage for an already-seen id adds only the
// delta over what was previously applied.
func (b *builder) accountUsage(messageID string, usage protocol.Usage) {
	prev := b.appliedUsage[messageID]
	delta := protocol.Usage{
		InputTokens:              usage.InputTokens - prev.InputTokens,
		OutputTokens:             usage.OutputTokens - prev.OutputTokens,
		CacheCreationInputTokens: usage.CacheCreationInputTokens - prev.CacheCreationInputTokens,
		CacheReadInputTokens:     usage.CacheReadInputTokens - prev.CacheReadInputTokens,
	}
	b.totals.InputTokens += delta.InputTokens
	b.totals.OutputTokens += delta.OutputTokens
	b.totals.CacheCreationInputTokens += delta.CacheCreationInputTokens
	b.totals.CacheReadInputTokens += delta.CacheReadInputTokens
	b.totals.TotalTokens = b.totals.InputTokens + b.totals.OutputTokens +
		b.totals.CacheCreationInputTokens + b.totals.CacheReadInputTokens

	model := b.responses[b.responseIndex[messageID]].Model
	prevCost := b.pricing.Cost(model, prev)
	newCost := b.pricing.Cost(model, usage)
	b.totals.EstimatedCostUsd += newCost - prevCost

	b.appliedUsage[messageID] = usage
	b.seenMessageIDs[messageID] = true
}

// finalize derives toolCalls and contextSnapshots from the completed
// responses list and returns the assembled EnrichedSession.
func (b *builder) finalize() protocol.EnrichedSession {
	return protocol.EnrichedSession{
		Messages:         b.messages,
		Turns:            append([]protocol.Turn(nil), b.turns...),
		Responses:        append([]protocol.ReconstitutedResponse(nil), b.responses...),
		ToolCalls:        pairToolCalls(b.messages, b.responses),
		Totals:           b.totals,
		ToolStats:        append([]protocol.ToolStat(nil), b.toolStats...),
		Subagents:        append([]protocol.SubagentRef(nil), b.subagents...),
		ContextSnapshots: contextSnapshots(b.responses),
	}
}

// pairToolCalls pairs every tool_use block (in response order) with the
// first user-tool-result carrying the same id. Each result pairs with at
// most one tool_use; a later result repeating an id is not paired.
func pairToolCalls(messages []protocol.ParsedMessage, responses []protocol.ReconstitutedResponse) []protocol.PairedToolCall {
	resultsByID := make(map[string]*protocol.ToolResultItem)
	resultTurn := make(map[string]int)
	resultTimestamp := make(map[string]string)
	toolUseTimestamp := make(map[string]string)
	turn := 0
	for _, m := range messages {
		if m.Kind == protocol.KindUserPrompt && !m.IsMeta {
			turn++
		}
		if m.Kind == protocol.KindAssistantBlock && m.Block.Type == "tool_use" {
			if _, ok := toolUseTimestamp[m.Block.ToolUseID]; !ok {
				toolUseTimestamp[m.Block.ToolUseID] = m.Timestamp
			}
		}
		if m.Kind == protocol.KindUserToolResult {
			for i := range m.ToolResults {
				tr := m.ToolResults[i]
				if _, used := resultsByID[tr.ToolUseID]; !used {
					resultsByID[tr.ToolUseID] = &tr
					resultTurn[tr.ToolUseID] = turn
					resultTimestamp[tr.ToolUseID] = m.Timestamp
				}
			}
		}
	}

	var out []protocol.PairedToolCall
	for _, resp := range responses {
		for _, block := range resp.Blocks {
			if block.Type != "tool_use" {
				continue
			}
			call := protocol.PairedToolCall{
				ToolUseID:    block.ToolUseID,
				ToolName:     block.ToolName,
				ToolUseBlock: block,
				TurnIndex:    resp.TurnIndex,
			}
			if res, ok := resultsByID[block.ToolUseID]; ok {
				call.ToolResultBlock = res
				if d, ok := toolCallDuration(toolUseTimestamp[block.ToolUseID], resultTimestamp[block.ToolUseID]); ok {
					call.DurationMs = &d
				}
				delete(resultsByID, block.ToolUseID)
			}
			out = append(out, call)
		}
	}
	return out
}

// toolCallDuration returns the millisecond delta between a tool_use
// block's timestamp and its matching tool_result's timestamp, when both
// parse as valid RFC3339 timestamps and the result is not before the use.
func toolCallDuration(startTS, endTS string) (int64, bool) {
	if startTS == "" || endTS == "" {
		return 0, false
	}
	start, err := time.Parse(time.RFC3339Nano, startTS)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339Nano, endTS)
	if err != nil {
		return 0, false
	}
	if end.Before(start) {
		return 0, false
	}
	return end.Sub(start).Milliseconds(), true
}

// contextSnapshots computes one cumulative snapshot per response, in
// response order; cumulative sums are a pure function of the final
// responses list so both EnrichSession and ApplyBatch recompute it
// identically.
func contextSnapshots(responses []protocol.ReconstitutedResponse) []protocol.ContextSnapshot {
	snapshots := make([]protocol.ContextSnapshot, 0, len(responses))
	var cumIn, cumOut int
	for i, resp := range responses {
		cumIn += resp.Usage.InputTokens + resp.Usage.CacheReadInputTokens
		cumOut += resp.Usage.OutputTokens
		snapshots = append(snapshots, protocol.ContextSnapshot{
			ResponseIndex:          i,
			CumulativeInputTokens:  cumIn,
			CumulativeOutputTokens: cumOut,
		})
	}
	return snapshots
}
