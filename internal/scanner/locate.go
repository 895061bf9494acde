package scanner

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/fleetobserver/fleetobserver/internal/parser"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// FindSessionPath locates the "<sessionId>.jsonl" file for sessionID under
// any of basePaths, searching one level of project directories deep. It
// returns os.ErrNotExist if no matching file is found.
func FindSessionPath(basePaths []string, sessionID string) (string, error) {
	name := sessionID + ".jsonl"
	for _, base := range basePaths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(base, entry.Name(), name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", os.ErrNotExist
}

// ParseFile reads every line of a session's JSONL file and returns the
// fully parsed message stream plus the file's size at read time (the
// offset a tailer should start from to avoid redelivering this content).
func ParseFile(path string) ([]protocol.ParsedMessage, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var messages []protocol.ParsedMessage
	lineIndex := 0
	for scanner.Scan() {
		messages = append(messages, parser.ParseLine(scanner.Bytes(), lineIndex)...)
		lineIndex++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	return messages, info.Size(), nil
}
