// Package schema defines the raw, on-disk JSONL record variants and
// validates a decoded envelope against the shape its declared
// type/subtype requires. Content fields accept either a bare string or
// an array of blocks.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// FlexibleContent decodes JSON that is either a string or an array of
// content items, deferring interpretation to the caller.
type FlexibleContent struct {
	raw json.RawMessage
}

func (fc *FlexibleContent) UnmarshalJSON(data []byte) error {
	fc.raw = append([]byte(nil), data...)
	return nil
}

// IsString reports whether the underlying JSON value is a string.
func (fc FlexibleContent) IsString() bool {
	return len(fc.raw) > 0 && fc.raw[0] == '"'
}

// IsArray reports whether the underlying JSON value is an array.
func (fc FlexibleContent) IsArray() bool {
	return len(fc.raw) > 0 && fc.raw[0] == '['
}

// AsString returns the content as a string, if it is one.
func (fc FlexibleContent) AsString() (string, bool) {
	if !fc.IsString() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(fc.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// ContentItem is one element of a user message's content array: either
// plain text or a tool_result.
type ContentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// AsItems returns the content as a parsed item array, if it is an array.
func (fc FlexibleContent) AsItems() ([]ContentItem, bool) {
	if !fc.IsArray() {
		return nil, false
	}
	var items []ContentItem
	if err := json.Unmarshal(fc.raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// AssistantMessageContent is the inner "message" object of an assistant
// record.
type AssistantMessageContent struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Role    string                 `json:"role"`
	Content []protocol.ContentBlock `json:"content"`
	Usage   protocol.Usage         `json:"usage"`
}

// UserMessageContent is the inner "message" object of a user record.
type UserMessageContent struct {
	Role    string          `json:"role"`
	Content FlexibleContent `json:"content"`
}

// RawRecord is the outer envelope shared by every JSONL line, decoded
// loosely (every variant-specific field is optional) before dispatch.
type RawRecord struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype,omitempty"`
	UUID       string          `json:"uuid,omitempty"`
	ParentUUID *string         `json:"parentUuid,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	IsMeta     bool            `json:"isMeta,omitempty"`
	CWD        string          `json:"cwd,omitempty"`
	GitBranch  string          `json:"gitBranch,omitempty"`

	Message json.RawMessage `json:"message,omitempty"`

	// system subtypes
	DurationMs int64           `json:"durationMs,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
	CommandText string         `json:"commandText,omitempty"`

	// file-history-snapshot
	Snapshot *struct {
		Timestamp string `json:"timestamp"`
	} `json:"snapshot,omitempty"`

	// progress
	AgentID         string `json:"agentId,omitempty"`
	ParentToolUseID string `json:"parentToolUseID,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	Output          string `json:"output,omitempty"`
	Status          string `json:"status,omitempty"`
	HookName        string `json:"hookName,omitempty"`
	HookEvent       string `json:"hookEvent,omitempty"`

	// queue-operation
	Operation string `json:"operation,omitempty"`

	// isSynthetic marker for assistant replay records
	IsSynthetic bool `json:"isSynthetic,omitempty"`
}

// APIErrorCause is the nested cause object of a system/api_error record.
type APIErrorCause struct {
	Code string `json:"code"`
	Path string `json:"path"`
}

// APIError is the decoded shape of a system/api_error record's "error" field.
type APIError struct {
	Cause APIErrorCause `json:"cause"`
}

// Decode parses one JSONL line into a RawRecord. A JSON syntax error is
// returned to the caller (the parser turns it into a malformed
// ParsedMessage); a valid-but-wrong-shape record decodes successfully here
// and is rejected later by Validate.
func Decode(line []byte) (RawRecord, error) {
	var r RawRecord
	if err := json.Unmarshal(line, &r); err != nil {
		return RawRecord{}, fmt.Errorf("decode json: %w", err)
	}
	return r, nil
}

// Validate checks that a decoded RawRecord carries the fields its declared
// type/subtype requires. It returns a human-readable description of the
// first violation found, or "" if the record is well-formed.
func Validate(r RawRecord) string {
	switch r.Type {
	case "user":
		if len(r.Message) == 0 {
			return "user record missing message"
		}
	case "assistant":
		if len(r.Message) == 0 {
			return "assistant record missing message"
		}
	case "system":
		switch r.Subtype {
		case "turn_duration", "api_error", "local_command":
			// no further required fields; all are optional payload fields
		default:
			return fmt.Sprintf("unknown system subtype %q", r.Subtype)
		}
	case "file-history-snapshot":
		if r.Snapshot == nil || r.Snapshot.Timestamp == "" {
			return "file-history-snapshot missing snapshot.timestamp"
		}
	case "progress":
		switch r.Subtype {
		case "agent", "bash", "hook":
		default:
			return fmt.Sprintf("unknown progress subtype %q", r.Subtype)
		}
	case "queue-operation":
		// opaque control record; no required fields
	default:
		return fmt.Sprintf("unknown record type %q", r.Type)
	}
	return ""
}
