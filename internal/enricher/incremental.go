package enricher

import (
	"github.com/fleetobserver/fleetobserver/internal/pricing"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// IncrementalContext carries the bookkeeping ApplyBatch needs that does not
// live in protocol.EnrichedSession itself (message-id/tool-use-id indices,
// applied-usage deltas). Callers keep one context per session and feed it
// every newly tailed batch in order.
type IncrementalContext struct {
	responseIndex   map[string]int
	toolStatIndex   map[string]int
	toolUseIDToName map[string]string
	toolUseIDToTurn map[string]int
	appliedUsage    map[string]protocol.Usage
	seenMessageIDs  map[string]bool
	currentTurnIdx  int
	pricing         pricing.Table
}

// NewIncrementalContext returns a context seeded with no prior state, for
// incrementally enriching a session from its first batch onward.
func NewIncrementalContext() *IncrementalContext {
	return &IncrementalContext{
		responseIndex:   make(map[string]int),
		toolStatIndex:   make(map[string]int),
		toolUseIDToName: make(map[string]string),
		toolUseIDToTurn: make(map[string]int),
		appliedUsage:    make(map[string]protocol.Usage),
		seenMessageIDs:  make(map[string]bool),
		pricing:         pricing.Default,
	}
}

// NewIncrementalContextFromSession rebuilds the index bookkeeping from an
// already-enriched session (typically the result of an initial, one-shot
// EnrichSession over a backlog), so later ApplyBatch calls only need to
// walk the newly tailed suffix instead of replaying the whole transcript.
func NewIncrementalContextFromSession(sess protocol.EnrichedSession) *IncrementalContext {
	ctx := NewIncrementalContext()
	for i, resp := range sess.Responses {
		ctx.responseIndex[resp.MessageID] = i
		ctx.appliedUsage[resp.MessageID] = resp.Usage
		ctx.seenMessageIDs[resp.MessageID] = true
	}
	for i, stat := range sess.ToolStats {
		ctx.toolStatIndex[stat.ToolName] = i
	}
	for _, call := range sess.ToolCalls {
		ctx.toolUseIDToName[call.ToolUseID] = call.ToolName
		ctx.toolUseIDToTurn[call.ToolUseID] = call.TurnIndex
	}
	if n := len(sess.Turns); n > 0 {
		ctx.currentTurnIdx = sess.Turns[n-1].TurnIndex
	}
	return ctx
}

// ApplyBatch extends prev with a newly tailed batch of messages and returns
// the updated EnrichedSession. Turn tracking, response reconstitution, and
// tool stats resume from the indices held in ctx; tool-call pairing and
// context snapshots are recomputed over the full accumulated message and
// response lists when the result is finalized. Usage accounting is idempotent — a messageId
// observed again with a larger usage value contributes only the delta to
// totals, never a full re-count. An empty batch is a no-op and returns prev
// unchanged.
func ApplyBatch(ctx *IncrementalContext, prev protocol.EnrichedSession, batch []protocol.ParsedMessage) protocol.EnrichedSession {
	if len(batch) == 0 {
		return prev
	}

	b := &builder{
		messages:        append([]protocol.ParsedMessage(nil), prev.Messages...),
		turns:           append([]protocol.Turn(nil), prev.Turns...),
		currentTurnIdx:  ctx.currentTurnIdx,
		responses:       append([]protocol.ReconstitutedResponse(nil), prev.Responses...),
		responseIndex:   ctx.responseIndex,
		toolStats:       append([]protocol.ToolStat(nil), prev.ToolStats...),
		toolStatIndex:   ctx.toolStatIndex,
		toolUseIDToName: ctx.toolUseIDToName,
		toolUseIDToTurn: ctx.toolUseIDToTurn,
		subagents:       append([]protocol.SubagentRef(nil), prev.Subagents...),
		totals:          prev.Totals,
		seenMessageIDs:  ctx.seenMessageIDs,
		appliedUsage:    ctx.appliedUsage,
		pricing:         ctx.pricing,
	}

	for _, m := range batch {
		b.process(m)
	}
	ctx.currentTurnIdx = b.currentTurnIdx

	return b.finalize()
}
