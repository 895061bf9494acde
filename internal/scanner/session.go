package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fleetobserver/fleetobserver/internal/parser"
	"github.com/fleetobserver/fleetobserver/internal/pricing"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

const promptTruncateLen = 200

// ScanSessions summarizes every session file directly under projectDir,
// sorted descending by LastActiveAt (nulls last).
func ScanSessions(projectDir string) []protocol.SessionSummary {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil
	}

	var out []protocol.SessionSummary
	for _, entry := range entries {
		if entry.IsDir() || !isSessionFile(entry.Name()) {
			continue
		}
		if s := ExtractSessionSummary(filepath.Join(projectDir, entry.Name())); s != nil {
			out = append(out, *s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lastActiveLess(out[j].LastActiveAt, out[i].LastActiveAt)
	})
	return out
}

// ExtractSessionSummary performs one forward read of a session's JSONL
// file, collecting the earliest timestamp, the first non-meta user prompt
// (plus its cwd/gitBranch), the first model seen, and per-message-id usage
// totals (last-wins). The spec's separate "scan backward for the last
// timestamped line" step is folded into this same forward pass: since
// every line is already read for usage accounting, the last timestamp (or
// snapshot timestamp) observed during that pass is exactly the value a
// trailing backward scan would find, at the cost of one read instead of
// two.
func ExtractSessionSummary(path string) *protocol.SessionSummary {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), ".jsonl")

	var (
		firstPrompt       *string
		title             *string
		model             *string
		cwd               *string
		gitBranch         *string
		earliestTimestamp *string
		lastActiveAt      *string
	)
	usageByMessageID := make(map[string]protocol.Usage)
	modelByMessageID := make(map[string]string)

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineIndex := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		for _, m := range parser.ParseLine(line, lineIndex) {
			if m.Timestamp != "" {
				ts := m.Timestamp
				if earliestTimestamp == nil || ts < *earliestTimestamp {
					earliestTimestamp = &ts
				}
				lastActiveAt = &ts
			}
			if m.Kind == protocol.KindFileHistorySnapshot && m.SnapshotTimestamp != "" {
				ts := m.SnapshotTimestamp
				lastActiveAt = &ts
			}

			switch m.Kind {
			case protocol.KindUserPrompt:
				if !m.IsMeta && firstPrompt == nil && m.PromptText != "" {
					text := truncate(m.PromptText, promptTruncateLen)
					firstPrompt = &text
					collapsed := truncate(collapseWhitespace(m.PromptText), promptTruncateLen)
					title = &collapsed
					if m.CWD != "" {
						c := m.CWD
						cwd = &c
					}
					if m.GitBranch != "" {
						g := m.GitBranch
						gitBranch = &g
					}
				}
			case protocol.KindAssistantBlock:
				if model == nil && m.Model != "" {
					model = &m.Model
				}
				usageByMessageID[m.MessageID] = m.Usage
				modelByMessageID[m.MessageID] = m.Model
			}
		}
		lineIndex++
	}
	if err := scanner.Err(); err != nil {
		return nil
	}

	var totals protocol.TokenTotals
	for id, u := range usageByMessageID {
		totals.InputTokens += u.InputTokens
		totals.OutputTokens += u.OutputTokens
		totals.CacheCreationInputTokens += u.CacheCreationInputTokens
		totals.CacheReadInputTokens += u.CacheReadInputTokens
		totals.EstimatedCostUsd += pricing.Default.Cost(modelByMessageID[id], u)
	}

	return &protocol.SessionSummary{
		SessionID:                stem,
		FirstPrompt:              firstPrompt,
		Title:                    title,
		Model:                    model,
		StartedAt:                earliestTimestamp,
		LastActiveAt:             lastActiveAt,
		CWD:                      cwd,
		GitBranch:                gitBranch,
		InputTokens:              totals.InputTokens,
		OutputTokens:             totals.OutputTokens,
		CacheCreationInputTokens: totals.CacheCreationInputTokens,
		CacheReadInputTokens:     totals.CacheReadInputTokens,
		Cost:                     totals.EstimatedCostUsd,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
