// Package pricing is a pure lookup table of per-model USD-per-million-token
// rates plus the arithmetic to turn a Usage into an estimated cost.
//
// This has no grounding in a third-party library from the example pack: a
// price table is a map literal and four multiplications, and nothing in the
// retrieved repos ships a "token pricing" dependency (the closest analogue,
// the original_source TS server, also hand-rolls this table). Kept on the
// standard library deliberately.
package pricing

import "github.com/fleetobserver/fleetobserver/pkg/protocol"

// ModelRates holds USD-per-million-token rates for one model.
type ModelRates struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheWritePerMTok float64
	CacheReadPerMTok  float64
}

// Table maps a model identifier to its rates.
type Table map[string]ModelRates

// Default is the built-in rate table for known Claude models, USD per
// million tokens. Unknown models are looked up and simply return the zero
// ModelRates, which costs 0.
var Default = Table{
	"claude-opus-4-5-20251101": {
		InputPerMTok: 5, OutputPerMTok: 25,
		CacheWritePerMTok: 6.25, CacheReadPerMTok: 0.5,
	},
	"claude-sonnet-4-5-20250929": {
		InputPerMTok: 3, OutputPerMTok: 15,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.3,
	},
	"claude-haiku-4-5-20251001": {
		InputPerMTok: 1, OutputPerMTok: 5,
		CacheWritePerMTok: 1.25, CacheReadPerMTok: 0.1,
	},
	"claude-3-5-sonnet-20241022": {
		InputPerMTok: 3, OutputPerMTok: 15,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.3,
	},
	"claude-3-5-haiku-20241022": {
		InputPerMTok: 0.8, OutputPerMTok: 4,
		CacheWritePerMTok: 1, CacheReadPerMTok: 0.08,
	},
	"claude-3-opus-20240229": {
		InputPerMTok: 15, OutputPerMTok: 75,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.5,
	},
}

const perMillion = 1_000_000

// Cost returns the estimated USD cost of one response's usage under the
// given model. Unknown models contribute 0.
func (t Table) Cost(model string, u protocol.Usage) float64 {
	rates, ok := t[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)*rates.InputPerMTok/perMillion +
		float64(u.OutputTokens)*rates.OutputPerMTok/perMillion +
		float64(u.CacheCreationInputTokens)*rates.CacheWritePerMTok/perMillion +
		float64(u.CacheReadInputTokens)*rates.CacheReadPerMTok/perMillion
}
