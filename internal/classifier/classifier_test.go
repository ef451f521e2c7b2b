package classifier

import (
	"testing"

	"options-relay/internal/analysis"
)

func floatPtr(v float64) *float64 { return &v }

// Law 9: round-trip statusDesc -> statusCode -> action is a pure function
// of the classifier tables.
func TestResolveRoundTrip(t *testing.T) {
	master := []CandleMasterEntry{
		{StatusCode: "C001", StatusDesc: "M-UU-G-D"},
	}
	signals := map[string][]TradeSignalEntry{
		"R_100": {
			{StatusCode: "C001", Action: ActionCall},
		},
	}
	table := NewTable(master, signals)

	a := analysis.FullAnalysis{StatusDesc: "M-UU-G-D"}
	got, action := table.Resolve("R_100", a)

	if got.StatusCode != "C001" {
		t.Fatalf("StatusCode = %q, want C001", got.StatusCode)
	}
	if action != ActionCall {
		t.Fatalf("action = %q, want call", action)
	}
}

func TestResolveUnknownStatusDescIsIdle(t *testing.T) {
	table := NewTable(nil, nil)
	a := analysis.FullAnalysis{StatusDesc: "no-such-desc"}
	got, action := table.Resolve("R_100", a)

	if got.StatusCode != "" {
		t.Fatalf("StatusCode = %q, want empty", got.StatusCode)
	}
	if action != ActionIdle {
		t.Fatalf("action = %q, want idle", action)
	}
}

// Open Question #3: first-match-wins in table order, no slope-based
// fallback when a later, more specific rule would also match.
func TestResolveFirstMatchWins(t *testing.T) {
	master := []CandleMasterEntry{{StatusCode: "C002", StatusDesc: "L-DD-R-C"}}
	signals := map[string][]TradeSignalEntry{
		"R_100": {
			{StatusCode: "C002", Action: ActionPut},
			{StatusCode: "C002", Action: ActionCall, MinRSI: floatPtr(0)}, // would also match
		},
	}
	table := NewTable(master, signals)

	a := analysis.FullAnalysis{StatusDesc: "L-DD-R-C", RSIValue: 50}
	_, action := table.Resolve("R_100", a)
	if action != ActionPut {
		t.Fatalf("action = %q, want put (first matching row)", action)
	}
}

func TestResolveFilterExcludesRow(t *testing.T) {
	master := []CandleMasterEntry{{StatusCode: "C003", StatusDesc: "M-UU-G-D"}}
	signals := map[string][]TradeSignalEntry{
		"R_100": {
			{StatusCode: "C003", Action: ActionCall, MinRSI: floatPtr(70)},
			{StatusCode: "C003", Action: ActionPut},
		},
	}
	table := NewTable(master, signals)

	a := analysis.FullAnalysis{StatusDesc: "M-UU-G-D", RSIValue: 40}
	_, action := table.Resolve("R_100", a)
	if action != ActionPut {
		t.Fatalf("action = %q, want put (RSI filter excludes the first row)", action)
	}
}
