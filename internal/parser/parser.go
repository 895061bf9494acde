// Package parser converts one raw JSONL transcript line into zero or more
// canonical ParsedMessage records. It never returns an error to its
// caller: malformed input becomes a "malformed" ParsedMessage instead, so
// one corrupt line never aborts an otherwise-readable transcript.
package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/fleetobserver/fleetobserver/internal/schema"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// ParseLine classifies one JSONL line into zero or more ParsedMessage
// records. It returns nil for whitespace-only lines. A single assistant
// record with N content blocks yields N assistant-block records; a user
// record carrying both a text item and tool_result items yields both a
// user-prompt and a user-tool-result record, sharing UUID. Every other
// caller (enricher, tailer) consumes the flattened stream.
func ParseLine(raw []byte, lineIndex int) []protocol.ParsedMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	rec, err := schema.Decode(raw)
	if err != nil {
		return []protocol.ParsedMessage{malformed(raw, lineIndex, err.Error())}
	}
	if desc := schema.Validate(rec); desc != "" {
		return []protocol.ParsedMessage{malformed(raw, lineIndex, desc)}
	}

	switch rec.Type {
	case "user":
		return parseUser(rec, lineIndex)
	case "assistant":
		return parseAssistant(rec, lineIndex)
	case "system":
		return parseSystem(rec, lineIndex)
	case "file-history-snapshot":
		return []protocol.ParsedMessage{{
			Kind:              protocol.KindFileHistorySnapshot,
			LineIndex:         lineIndex,
			SnapshotTimestamp: rec.Snapshot.Timestamp,
		}}
	case "progress":
		return parseProgress(rec, lineIndex)
	case "queue-operation":
		return []protocol.ParsedMessage{{
			Kind:      protocol.KindQueueOperation,
			LineIndex: lineIndex,
			Operation: rec.Operation,
		}}
	default:
		return []protocol.ParsedMessage{malformed(raw, lineIndex, "unknown record type")}
	}
}

func malformed(raw []byte, lineIndex int, errMsg string) protocol.ParsedMessage {
	return protocol.ParsedMessage{
		Kind:      protocol.KindMalformed,
		LineIndex: lineIndex,
		RawLine:   string(raw),
		Error:     errMsg,
	}
}

func envelope(rec schema.RawRecord) (uuid, parentUUID string) {
	if rec.ParentUUID != nil {
		parentUUID = *rec.ParentUUID
	}
	return rec.UUID, parentUUID
}

func parseUser(rec schema.RawRecord, lineIndex int) []protocol.ParsedMessage {
	var inner schema.UserMessageContent
	if err := json.Unmarshal(rec.Message, &inner); err != nil {
		return []protocol.ParsedMessage{malformed(rec.Message, lineIndex, "invalid user message: "+err.Error())}
	}

	uuid, parentUUID := envelope(rec)
	base := protocol.ParsedMessage{
		LineIndex:  lineIndex,
		UUID:       uuid,
		ParentUUID: parentUUID,
		SessionID:  rec.SessionID,
		Timestamp:  rec.Timestamp,
		CWD:        rec.CWD,
		GitBranch:  rec.GitBranch,
		IsMeta:     rec.IsMeta,
	}

	var out []protocol.ParsedMessage

	if s, ok := inner.Content.AsString(); ok {
		p := base
		p.Kind = protocol.KindUserPrompt
		p.PromptText = s
		out = append(out, p)
		return out
	}

	items, ok := inner.Content.AsItems()
	if !ok {
		return []protocol.ParsedMessage{malformed(rec.Message, lineIndex, "user content neither string nor array")}
	}

	var toolResults []protocol.ToolResultItem
	var textParts []string
	for _, item := range items {
		switch item.Type {
		case "tool_result":
			toolResults = append(toolResults, protocol.ToolResultItem{
				ToolUseID: item.ToolUseID,
				Content:   item.Content,
				IsError:   item.IsError,
			})
		case "text":
			if item.Text != "" {
				textParts = append(textParts, item.Text)
			}
		}
	}

	if len(textParts) > 0 {
		p := base
		p.Kind = protocol.KindUserPrompt
		p.PromptText = strings.Join(textParts, "\n")
		out = append(out, p)
	}
	if len(toolResults) > 0 {
		p := base
		p.Kind = protocol.KindUserToolResult
		p.ToolResults = toolResults
		out = append(out, p)
	}
	if len(out) == 0 {
		// Array content with neither text nor tool_result items still
		// produces a (meta) user-prompt so turn/line accounting stays total.
		p := base
		p.Kind = protocol.KindUserPrompt
		p.IsMeta = true
		out = append(out, p)
	}
	return out
}

func parseAssistant(rec schema.RawRecord, lineIndex int) []protocol.ParsedMessage {
	var inner schema.AssistantMessageContent
	if err := json.Unmarshal(rec.Message, &inner); err != nil {
		return []protocol.ParsedMessage{malformed(rec.Message, lineIndex, "invalid assistant message: "+err.Error())}
	}

	uuid, parentUUID := envelope(rec)
	out := make([]protocol.ParsedMessage, 0, len(inner.Content))
	for _, block := range inner.Content {
		out = append(out, protocol.ParsedMessage{
			Kind:        protocol.KindAssistantBlock,
			LineIndex:   lineIndex,
			UUID:        uuid,
			ParentUUID:  parentUUID,
			SessionID:   rec.SessionID,
			Timestamp:   rec.Timestamp,
			MessageID:   inner.ID,
			Model:       inner.Model,
			Usage:       inner.Usage,
			Block:       block,
			IsSynthetic: rec.IsSynthetic,
		})
	}
	if len(out) == 0 {
		// An assistant record with no content blocks still carries usage;
		// emit one empty-block record so the message id is never dropped.
		out = append(out, protocol.ParsedMessage{
			Kind:        protocol.KindAssistantBlock,
			LineIndex:   lineIndex,
			UUID:        uuid,
			ParentUUID:  parentUUID,
			SessionID:   rec.SessionID,
			Timestamp:   rec.Timestamp,
			MessageID:   inner.ID,
			Model:       inner.Model,
			Usage:       inner.Usage,
			IsSynthetic: rec.IsSynthetic,
		})
	}
	return out
}

func parseSystem(rec schema.RawRecord, lineIndex int) []protocol.ParsedMessage {
	base := protocol.ParsedMessage{
		LineIndex: lineIndex,
		UUID:      rec.UUID,
		SessionID: rec.SessionID,
		Timestamp: rec.Timestamp,
	}
	switch rec.Subtype {
	case "turn_duration":
		base.Kind = protocol.KindSystemTurnDuration
		base.DurationMs = rec.DurationMs
	case "api_error":
		base.Kind = protocol.KindSystemAPIError
		if len(rec.Error) > 0 {
			var apiErr schema.APIError
			if err := json.Unmarshal(rec.Error, &apiErr); err == nil {
				base.ErrorCode = apiErr.Cause.Code
				base.ErrorPath = apiErr.Cause.Path
			}
		}
	case "local_command":
		base.Kind = protocol.KindSystemLocalCommand
		base.CommandText = rec.CommandText
	default:
		return []protocol.ParsedMessage{malformed(nil, lineIndex, "unknown system subtype")}
	}
	return []protocol.ParsedMessage{base}
}

func parseProgress(rec schema.RawRecord, lineIndex int) []protocol.ParsedMessage {
	base := protocol.ParsedMessage{
		LineIndex: lineIndex,
		UUID:      rec.UUID,
		SessionID: rec.SessionID,
		Timestamp: rec.Timestamp,
	}
	switch rec.Subtype {
	case "agent":
		base.Kind = protocol.KindProgressAgent
		base.AgentID = rec.AgentID
		base.ParentToolUseID = rec.ParentToolUseID
		base.AgentPrompt = rec.Prompt
	case "bash":
		base.Kind = protocol.KindProgressBash
		base.BashOutput = rec.Output
		base.BashStatus = rec.Status
	case "hook":
		base.Kind = protocol.KindProgressHook
		base.HookName = rec.HookName
		base.HookEvent = rec.HookEvent
	default:
		return []protocol.ParsedMessage{malformed(nil, lineIndex, "unknown progress subtype")}
	}
	return []protocol.ParsedMessage{base}
}
