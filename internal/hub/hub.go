// Package hub is the composition layer that wires the scanner, watcher,
// tailer, enricher, and transport packages together into one running
// server: each of those packages stays ignorant of the others, and Hub
// is the only thing that calls across the boundary.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fleetobserver/fleetobserver/internal/enricher"
	"github.com/fleetobserver/fleetobserver/internal/observability"
	"github.com/fleetobserver/fleetobserver/internal/scanner"
	"github.com/fleetobserver/fleetobserver/internal/tailer"
	"github.com/fleetobserver/fleetobserver/internal/transport"
	"github.com/fleetobserver/fleetobserver/internal/watcher"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

type liveSession struct {
	tailer   *tailer.Tailer
	incCtx   *enricher.IncrementalContext
	enriched protocol.EnrichedSession
}

// Hub owns every session currently being actively tailed (i.e. with at
// least one subscribed transport client).
type Hub struct {
	basePaths []string
	debounce  time.Duration
	logger    *slog.Logger

	transport *transport.Server

	w *watcher.Watcher

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// New creates a Hub. It wires itself into transportServer's subscriber
// callback; the caller still owns starting and stopping transportServer
// and the HTTP listener around it.
func New(basePaths []string, debounce time.Duration, transportServer *transport.Server, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		basePaths: basePaths,
		debounce:  debounce,
		logger:    logger,
		transport: transportServer,
		sessions:  make(map[string]*liveSession),
	}
	transportServer.OnSubscriberCountChanged = h.handleSubscriberCountChanged
	return h
}

// Start begins watching the configured base paths. Call once.
func (h *Hub) Start() error {
	w, err := watcher.New(h.debounce, h.handleActivity, h.logger)
	if err != nil {
		return err
	}
	h.w = w
	w.WatchBasePaths(h.basePaths)
	go w.Run()
	return nil
}

// Stop tears down the watcher and every live tailer.
func (h *Hub) Stop() {
	if h.w != nil {
		h.w.Stop()
	}
	h.mu.Lock()
	h.sessions = make(map[string]*liveSession)
	h.mu.Unlock()
}

// GetEnrichedSession returns the full, freshly computed EnrichedSession
// for sessionId, for the session-detail REST endpoint. It reuses an
// already-live tailer's in-memory state when one exists rather than
// re-reading the file twice.
func (h *Hub) GetEnrichedSession(sessionID string) (protocol.EnrichedSession, error) {
	ctx, span := observability.StartSpan(context.Background(), "hub.GetEnrichedSession",
		attribute.String("session_id", sessionID))
	defer span.End()

	h.mu.Lock()
	if ls, ok := h.sessions[sessionID]; ok {
		snapshot := ls.enriched
		h.mu.Unlock()
		return snapshot, nil
	}
	h.mu.Unlock()

	path, err := scanner.FindSessionPath(h.basePaths, sessionID)
	if err != nil {
		return protocol.EnrichedSession{}, err
	}
	_, fullSpan := observability.StartSpan(ctx, "hub.fullScanAndEnrich")
	defer fullSpan.End()
	messages, _, err := scanner.ParseFile(path)
	if err != nil {
		return protocol.EnrichedSession{}, err
	}
	return enricher.EnrichSession(messages), nil
}

func (h *Hub) handleSubscriberCountChanged(sessionID string, count int) {
	if count > 0 {
		h.ensureTailer(sessionID)
		return
	}
	h.teardown(sessionID)
}

func (h *Hub) ensureTailer(sessionID string) {
	h.mu.Lock()
	if _, exists := h.sessions[sessionID]; exists {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	path, err := scanner.FindSessionPath(h.basePaths, sessionID)
	if err != nil {
		h.logger.Warn("hub: could not locate session file", "sessionId", sessionID, "error", err)
		return
	}
	messages, size, err := scanner.ParseFile(path)
	if err != nil {
		h.logger.Warn("hub: could not parse session file", "sessionId", sessionID, "error", err)
		return
	}

	// The tailer continues the per-line lineIndex sequence, which is not
	// the message count: one line can yield several messages.
	startLine := 0
	if n := len(messages); n > 0 {
		startLine = messages[n-1].LineIndex + 1
	}
	enriched := enricher.EnrichSession(messages)
	ls := &liveSession{
		tailer:   tailer.New(sessionID, path, size, startLine),
		incCtx:   enricher.NewIncrementalContextFromSession(enriched),
		enriched: enriched,
	}

	h.mu.Lock()
	h.sessions[sessionID] = ls
	h.mu.Unlock()
}

func (h *Hub) teardown(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
}

func (h *Hub) handleActivity(sessionID string) {
	_, span := observability.StartSpan(context.Background(), "hub.handleActivity",
		attribute.String("session_id", sessionID))
	defer span.End()

	h.mu.Lock()
	ls, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return // no subscribers, nothing to tail
	}

	batch, err := ls.tailer.Advance()
	if err != nil {
		h.logger.Warn("hub: tailer advance failed", "sessionId", sessionID, "error", err)
		return
	}
	if len(batch.Messages) == 0 {
		return
	}

	h.mu.Lock()
	ls, ok = h.sessions[sessionID]
	if !ok {
		h.mu.Unlock()
		return // torn down while Advance was in flight
	}
	ls.enriched = enricher.ApplyBatch(ls.incCtx, ls.enriched, batch.Messages)
	h.mu.Unlock()

	h.transport.Publish(protocol.NewMessagesFrame(batch))
}
