package protocol

// Turn is one non-meta user prompt plus all subsequent assistant responses
// until the next prompt opens.
type Turn struct {
	TurnIndex     int     `json:"turnIndex"`
	PromptText    string  `json:"promptText"`
	PromptUUID    string  `json:"promptUuid"`
	DurationMs    *int64  `json:"durationMs,omitempty"`
	ResponseCount int     `json:"responseCount"`
	ToolUseCount  int     `json:"toolUseCount"`
}

// ReconstitutedResponse groups every assistant-block sharing one messageId.
type ReconstitutedResponse struct {
	MessageID     string         `json:"messageId"`
	Model         string         `json:"model"`
	Usage         Usage          `json:"usage"`
	Blocks        []ContentBlock `json:"blocks"`
	TurnIndex     int            `json:"turnIndex"`
	LineIndexStart int           `json:"lineIndexStart"`
	LineIndexEnd   int           `json:"lineIndexEnd"`
}

// ToolErrorSample is one recorded tool error.
type ToolErrorSample struct {
	ToolUseID string `json:"toolUseId"`
	ErrorText string `json:"errorText"`
	TurnIndex int     `json:"turnIndex"`
}

// ToolStat aggregates call/error counts for one distinct tool name.
type ToolStat struct {
	ToolName     string            `json:"toolName"`
	CallCount    int               `json:"callCount"`
	ErrorCount   int               `json:"errorCount"`
	ErrorSamples []ToolErrorSample `json:"errorSamples,omitempty"`
}

// PairedToolCall is a tool_use block paired with its (possibly absent)
// tool_result block.
type PairedToolCall struct {
	ToolUseID       string        `json:"toolUseId"`
	ToolName        string        `json:"toolName"`
	Input           ContentBlock  `json:"-"`
	ToolUseBlock    ContentBlock  `json:"toolUseBlock"`
	ToolResultBlock *ToolResultItem `json:"toolResultBlock,omitempty"`
	TurnIndex       int           `json:"turnIndex"`
	DurationMs      *int64        `json:"durationMs,omitempty"`
}

// SubagentRef is a reference to a delegated sub-agent run.
type SubagentRef struct {
	AgentID         string `json:"agentId"`
	Prompt          string `json:"prompt"`
	ParentToolUseID string `json:"parentToolUseId"`
}

// ContextSnapshot is a cumulative token snapshot taken once per response.
type ContextSnapshot struct {
	ResponseIndex          int `json:"responseIndex"`
	CumulativeInputTokens  int `json:"cumulativeInputTokens"`
	CumulativeOutputTokens int `json:"cumulativeOutputTokens"`
}

// TokenTotals aggregates token usage and estimated cost across a session.
type TokenTotals struct {
	InputTokens              int     `json:"inputTokens"`
	OutputTokens             int     `json:"outputTokens"`
	CacheCreationInputTokens int     `json:"cacheCreationInputTokens"`
	CacheReadInputTokens     int     `json:"cacheReadInputTokens"`
	TotalTokens              int     `json:"totalTokens"`
	ToolUseCount             int     `json:"toolUseCount"`
	EstimatedCostUsd         float64 `json:"estimatedCostUsd"`
}

// EnrichedSession is the full derived view of one session's transcript.
type EnrichedSession struct {
	Messages          []ParsedMessage         `json:"messages"`
	Turns             []Turn                  `json:"turns"`
	Responses         []ReconstitutedResponse `json:"responses"`
	ToolCalls         []PairedToolCall        `json:"toolCalls"`
	Totals            TokenTotals             `json:"totals"`
	ToolStats         []ToolStat              `json:"toolStats"`
	Subagents         []SubagentRef           `json:"subagents"`
	ContextSnapshots  []ContextSnapshot       `json:"contextSnapshots"`
}
