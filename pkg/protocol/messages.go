// Package protocol defines the canonical on-wire message types shared
// between the server and any client: the parsed transcript record shapes
// (ParsedMessage and its twelve variants) and the WebSocket frame envelope.
package protocol

import "encoding/json"

// MessageKind discriminates ParsedMessage variants.
type MessageKind string

const (
	KindFileHistorySnapshot MessageKind = "file-history-snapshot"
	KindUserPrompt          MessageKind = "user-prompt"
	KindUserToolResult      MessageKind = "user-tool-result"
	KindAssistantBlock      MessageKind = "assistant-block"
	KindSystemTurnDuration  MessageKind = "system-turn-duration"
	KindSystemAPIError      MessageKind = "system-api-error"
	KindSystemLocalCommand  MessageKind = "system-local-command"
	KindProgressAgent       MessageKind = "progress-agent"
	KindProgressBash        MessageKind = "progress-bash"
	KindProgressHook        MessageKind = "progress-hook"
	KindQueueOperation      MessageKind = "queue-operation"
	KindMalformed           MessageKind = "malformed"
)

// Usage tracks token consumption for one assistant response.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Total returns the sum of all four token buckets.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// ContentBlock is one block of an assistant message's content array.
// Only the fields relevant to enrichment are kept; unknown block types
// decode with Type set and the rest zero.
type ContentBlock struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	Thinking   string          `json:"thinking,omitempty"`
	ToolUseID  string          `json:"id,omitempty"`
	ToolName   string          `json:"name,omitempty"`
	ToolInput  json.RawMessage `json:"input,omitempty"`
}

// ToolResultItem is one tool_result content item inside a user message.
type ToolResultItem struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ParsedMessage is the canonical, tagged-union form every raw JSONL record
// is converted into by the parser. Every variant carries LineIndex. Fields
// not meaningful to a given Kind are left at their zero value.
type ParsedMessage struct {
	Kind      MessageKind `json:"kind"`
	LineIndex int         `json:"lineIndex"`

	// Shared envelope fields.
	UUID       string `json:"uuid,omitempty"`
	ParentUUID string `json:"parentUuid,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	CWD        string `json:"cwd,omitempty"`
	GitBranch  string `json:"gitBranch,omitempty"`

	// user-prompt
	IsMeta     bool   `json:"isMeta,omitempty"`
	PromptText string `json:"promptText,omitempty"`

	// user-tool-result
	ToolResults []ToolResultItem `json:"toolResults,omitempty"`

	// assistant-block
	MessageID    string       `json:"messageId,omitempty"`
	Model        string       `json:"model,omitempty"`
	Usage        Usage        `json:"usage,omitempty"`
	Block        ContentBlock `json:"block,omitempty"`
	TurnIndex    int          `json:"turnIndex,omitempty"`
	IsSynthetic  bool         `json:"isSynthetic,omitempty"`

	// system-turn-duration
	DurationMs int64 `json:"durationMs,omitempty"`

	// system-api-error
	ErrorCode string `json:"errorCode,omitempty"`
	ErrorPath string `json:"errorPath,omitempty"`

	// system-local-command
	CommandText string `json:"commandText,omitempty"`

	// progress-agent
	AgentID         string `json:"agentId,omitempty"`
	ParentToolUseID string `json:"parentToolUseId,omitempty"`
	AgentPrompt     string `json:"prompt,omitempty"`

	// progress-bash
	BashOutput string `json:"bashOutput,omitempty"`
	BashStatus string `json:"bashStatus,omitempty"`

	// progress-hook
	HookName  string `json:"hookName,omitempty"`
	HookEvent string `json:"hookEvent,omitempty"`

	// queue-operation
	Operation string `json:"operation,omitempty"`

	// file-history-snapshot
	SnapshotTimestamp string `json:"snapshotTimestamp,omitempty"`

	// malformed
	RawLine string `json:"rawLine,omitempty"`
	Error   string `json:"error,omitempty"`
}
