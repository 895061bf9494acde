package protocol

// ProjectSummary is a lean, single-pass summary of one project directory.
type ProjectSummary struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Path          string  `json:"path"`
	SessionCount  int     `json:"sessionCount"`
	LastActiveAt  *string `json:"lastActiveAt"`
}

// SessionSummary is a lean, single-pass summary of one session file.
type SessionSummary struct {
	SessionID                string  `json:"sessionId"`
	FirstPrompt              *string `json:"firstPrompt"`
	Title                    *string `json:"title,omitempty"`
	Model                    *string `json:"model"`
	StartedAt                *string `json:"startedAt"`
	LastActiveAt             *string `json:"lastActiveAt"`
	CWD                      *string `json:"cwd"`
	GitBranch                *string `json:"gitBranch"`
	InputTokens              int     `json:"inputTokens"`
	OutputTokens             int     `json:"outputTokens"`
	CacheCreationInputTokens int     `json:"cacheCreationInputTokens"`
	CacheReadInputTokens     int     `json:"cacheReadInputTokens"`
	Cost                     float64 `json:"cost"`
}

// WorktreeSummary describes one linked git worktree of a project.
type WorktreeSummary struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Branch *string `json:"branch"`
}

// GroupedProject is a user-defined grouping of one or more raw project
// directories under one display title.
type GroupedProject struct {
	Slug          string   `json:"slug"`
	Title         string   `json:"title"`
	ProjectDirs   []string `json:"projectDirs"`
	MatchedDirIDs []string `json:"matchedDirIds"`
	SessionCount  int      `json:"sessionCount"`
	LastActiveAt  *string  `json:"lastActiveAt"`
}

// ProjectConfig is one entry of the persisted preferences file.
type ProjectConfig struct {
	Title       string   `json:"title"`
	ProjectDirs []string `json:"projectDirs"`
}
