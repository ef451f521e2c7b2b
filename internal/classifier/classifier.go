// Package classifier implements the Status Classifier (§4.3): it loads the
// CandleMasterCode table (statusDesc -> statusCode) and per-asset
// TradeSignalEntry tables (statusCode + filters -> action) at startup, then
// resolves each closed candle's analysis record to a trade action.
package classifier

import "options-relay/internal/analysis"

// Action is the trade action a TradeSignalEntry resolves to.
type Action string

const (
	ActionCall Action = "call"
	ActionPut  Action = "put"
	ActionIdle Action = "idle"
)

// TradeSignalEntry is one row of a per-asset signal table. A row matches
// when StatusCode equals exactly and every optional filter (nil fields are
// unset) also holds. Rows are evaluated in table order; the first match
// wins (§4.3, Open Question resolved without a slope-based fallback).
type TradeSignalEntry struct {
	StatusCode string `json:"statusCode"`
	Action     Action `json:"action"`

	MinRSI        *float64 `json:"minRsi,omitempty"`
	MaxRSI        *float64 `json:"maxRsi,omitempty"`
	RequireAbnormal *bool  `json:"requireAbnormal,omitempty"`
}

func (e TradeSignalEntry) matches(a analysis.FullAnalysis) bool {
	if e.StatusCode != a.StatusCode {
		return false
	}
	if e.MinRSI != nil && a.RSIValue < *e.MinRSI {
		return false
	}
	if e.MaxRSI != nil && a.RSIValue > *e.MaxRSI {
		return false
	}
	if e.RequireAbnormal != nil && a.IsAbnormalCandle != *e.RequireAbnormal {
		return false
	}
	return true
}

// CandleMasterEntry is one row of the CandleMasterCode table.
type CandleMasterEntry struct {
	StatusCode string `json:"statusCode"`
	StatusDesc string `json:"statusDesc"`
}

// Table holds the loaded CandleMasterCode lookup plus one signal table per
// asset. It is read-only after construction, so it is safe to share across
// every Per-Asset Worker without synchronization.
type Table struct {
	masterCode map[string]string // statusDesc -> statusCode
	signals    map[string][]TradeSignalEntry
}

// NewTable builds a Table from decoded CandleMasterCode rows and per-asset
// signal tables.
func NewTable(master []CandleMasterEntry, signals map[string][]TradeSignalEntry) *Table {
	codeByDesc := make(map[string]string, len(master))
	for _, row := range master {
		codeByDesc[row.StatusDesc] = row.StatusCode
	}
	return &Table{masterCode: codeByDesc, signals: signals}
}

// StatusCode resolves a statusDesc to its statusCode. If absent, it returns
// "" — downstream treats an empty statusCode as Idle (§4.3).
func (t *Table) StatusCode(statusDesc string) string {
	return t.masterCode[statusDesc]
}

// Resolve fills in a.StatusCode from the master table and returns the
// action for asset's signal table. An empty statusCode or an asset with
// no configured signal table always resolves to Idle.
func (t *Table) Resolve(asset string, a analysis.FullAnalysis) (analysis.FullAnalysis, Action) {
	a.StatusCode = t.StatusCode(a.StatusDesc)
	if a.StatusCode == "" {
		return a, ActionIdle
	}

	for _, entry := range t.signals[asset] {
		if entry.matches(a) {
			return a, entry.Action
		}
	}
	return a, ActionIdle
}
