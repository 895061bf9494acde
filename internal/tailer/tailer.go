// Package tailer incrementally reads newly appended bytes from a
// session's JSONL file and turns them into protocol.MessageBatch values.
// The tailer keeps no message history — it only ever emits the newly
// parsed suffix; historical content is served separately.
package tailer

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fleetobserver/fleetobserver/internal/parser"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// Tailer tracks the read cursor for one session's JSONL file.
type Tailer struct {
	sessionID string
	path      string

	offsetBytes int64
	partial     []byte
	lineIndex   int
}

// New creates a Tailer. offsetBytes should be the file size at
// subscription time, so only new appends are delivered — historical
// content is served separately via the REST endpoint. startLineIndex
// should be the number of lines already read in that baseline, so the
// first live batch continues the lineIndex sequence instead of
// restarting it at 0.
func New(sessionID, path string, offsetBytes int64, startLineIndex int) *Tailer {
	return &Tailer{sessionID: sessionID, path: path, offsetBytes: offsetBytes, lineIndex: startLineIndex}
}

// Advance reads any bytes appended since the last call, parses complete
// lines, and returns the resulting batch. A batch with no messages (no new
// complete lines, only a grown partial) still updates internal state and
// is returned with an empty Messages slice; callers should skip
// delivering it downstream.
func (t *Tailer) Advance() (protocol.MessageBatch, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		return protocol.MessageBatch{}, fmt.Errorf("stat %s: %w", t.path, err)
	}
	currentSize := info.Size()

	if currentSize < t.offsetBytes {
		// Truncation (log rotation): restart from the beginning.
		t.offsetBytes = 0
		t.partial = nil
		t.lineIndex = 0
	}

	if currentSize == t.offsetBytes {
		return protocol.MessageBatch{
			SessionID: t.sessionID,
			ByteRange: protocol.ByteRange{Start: t.offsetBytes, End: currentSize},
		}, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return protocol.MessageBatch{}, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	startOffset := t.offsetBytes
	buf := make([]byte, currentSize-t.offsetBytes)
	if _, err := f.ReadAt(buf, t.offsetBytes); err != nil {
		return protocol.MessageBatch{}, fmt.Errorf("read %s at %d: %w", t.path, t.offsetBytes, err)
	}

	chunk := append(t.partial, buf...)
	lines := bytes.Split(chunk, []byte("\n"))
	t.partial = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var messages []protocol.ParsedMessage
	for _, line := range lines {
		messages = append(messages, parser.ParseLine(line, t.lineIndex)...)
		t.lineIndex++
	}

	t.offsetBytes = currentSize

	return protocol.MessageBatch{
		SessionID: t.sessionID,
		Messages:  messages,
		ByteRange: protocol.ByteRange{Start: startOffset, End: currentSize},
	}, nil
}

// SessionID returns the session this tailer is bound to.
func (t *Tailer) SessionID() string { return t.sessionID }

// OffsetBytes returns the current read cursor, for diagnostics.
func (t *Tailer) OffsetBytes() int64 { return t.offsetBytes }
