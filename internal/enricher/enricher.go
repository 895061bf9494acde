package enricher

import "github.com/fleetobserver/fleetobserver/pkg/protocol"

// EnrichSession runs the full forward pass over a session's entire parsed
// message stream and returns the derived EnrichedSession. It is the
// reference semantics: ApplyBatch must agree with it on equivalent input.
func EnrichSession(messages []protocol.ParsedMessage) protocol.EnrichedSession {
	b := newBuilder()
	for _, m := range messages {
		b.process(m)
	}
	return b.finalize()
}
