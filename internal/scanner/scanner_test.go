package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

const sampleUUID = "0196f2b4-2b2e-7c3a-9a4e-8e9f1a2b3c4d"

func writeSession(t *testing.T, dir, id string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, id+".jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractSessionSummary_BasicFields(t *testing.T) {
	dir := t.TempDir()
	path := writeSession(t, dir, sampleUUID, []string{
		`{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","cwd":"/repo","gitBranch":"main","message":{"role":"user","content":"fix the bug please"}}`,
		`{"type":"assistant","uuid":"a1","sessionId":"s1","timestamp":"2026-01-01T00:00:05Z","message":{"id":"m1","model":"claude-sonnet-4-5-20250929","role":"assistant","content":[{"type":"text","text":"done"}],"usage":{"input_tokens":10,"output_tokens":5}}}`,
	})

	summary := ExtractSessionSummary(path)
	if summary == nil {
		t.Fatal("expected non-nil summary")
	}
	if summary.SessionID != sampleUUID {
		t.Errorf("SessionID = %q", summary.SessionID)
	}
	if summary.FirstPrompt == nil || *summary.FirstPrompt != "fix the bug please" {
		t.Errorf("FirstPrompt = %v", summary.FirstPrompt)
	}
	if summary.CWD == nil || *summary.CWD != "/repo" {
		t.Errorf("CWD = %v", summary.CWD)
	}
	if summary.Model == nil || *summary.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("Model = %v", summary.Model)
	}
	if summary.InputTokens != 10 || summary.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 10/5", summary.InputTokens, summary.OutputTokens)
	}
	if summary.StartedAt == nil || *summary.StartedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("StartedAt = %v", summary.StartedAt)
	}
	if summary.LastActiveAt == nil || *summary.LastActiveAt != "2026-01-01T00:00:05Z" {
		t.Errorf("LastActiveAt = %v", summary.LastActiveAt)
	}
}

func TestExtractSessionSummary_MetaPromptSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeSession(t, dir, sampleUUID, []string{
		`{"type":"user","uuid":"u0","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","isMeta":true,"message":{"role":"user","content":"system reminder"}}`,
		`{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:01Z","message":{"role":"user","content":"real prompt"}}`,
	})
	summary := ExtractSessionSummary(path)
	if summary == nil || summary.FirstPrompt == nil || *summary.FirstPrompt != "real prompt" {
		t.Fatalf("expected first non-meta prompt, got %+v", summary)
	}
}

func TestExtractSessionSummary_TitleCollapsesWhitespace(t *testing.T) {
	dir := t.TempDir()
	path := writeSession(t, dir, sampleUUID, []string{
		`{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"line one\nline   two"}}`,
	})
	summary := ExtractSessionSummary(path)
	if summary == nil || summary.Title == nil || *summary.Title != "line one line two" {
		t.Fatalf("expected collapsed title, got %+v", summary)
	}
}

func TestScanProjects_SkipsDotAndReservedDirs(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{".hidden", "memory", "realproject"} {
		dir := filepath.Join(base, name)
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeSession(t, filepath.Join(base, "realproject"), sampleUUID, []string{
		`{"type":"user","uuid":"u1","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hi"}}`,
	})

	projects := ScanProjects([]string{base})
	if len(projects) != 1 || projects[0].ID != "realproject" {
		t.Fatalf("expected only realproject, got %+v", projects)
	}
}

func TestGroupProjects_GlobMatch(t *testing.T) {
	raw := []protocol.ProjectSummary{
		{ID: "-Users-me-repo-api", SessionCount: 3},
		{ID: "-Users-me-repo-web", SessionCount: 2},
		{ID: "-Users-me-other", SessionCount: 1},
	}
	configs := []protocol.ProjectConfig{
		{Title: "My Repo", ProjectDirs: []string{"-Users-me-repo-*"}},
	}
	grouped := GroupProjects(raw, configs)
	if len(grouped) != 1 {
		t.Fatalf("want 1 grouped project, got %d", len(grouped))
	}
	if grouped[0].Slug != "my-repo" {
		t.Errorf("Slug = %q, want my-repo", grouped[0].Slug)
	}
	if grouped[0].SessionCount != 5 {
		t.Errorf("SessionCount = %d, want 5", grouped[0].SessionCount)
	}
	if len(grouped[0].MatchedDirIDs) != 2 {
		t.Errorf("MatchedDirIDs = %v, want 2 entries", grouped[0].MatchedDirIDs)
	}
}

func TestScanWorktrees_NotAGitRepo(t *testing.T) {
	dir := t.TempDir()
	got := ScanWorktrees(dir)
	if len(got) != 0 {
		t.Fatalf("expected empty slice for a non-repo dir, got %+v", got)
	}
}
