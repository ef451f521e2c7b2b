package store

import (
	"testing"
	"time"

	"options-relay/internal/lifecycle"
	"options-relay/internal/lot"
)

func TestTradeResolutionRowConvertsContract(t *testing.T) {
	res := lifecycle.Resolution{
		Contract: lifecycle.Contract{
			ContractID: 42,
			Asset:      "R_100",
			TradeType:  "Call",
			Stake:      10,
			EntrySpot:  100.5,
			Profit:     3.2,
			MinProfit:  -1,
			MaxProfit:  4,
			DateStart:  1000,
			DateExpiry: 1300,
		},
		Result: lifecycle.ResultWin,
	}

	row := tradeResolutionRow(res)
	if row.ContractID != 42 || row.Asset != "R_100" || row.Result != "win" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.DateStart.Equal(time.Unix(1000, 0)) {
		t.Fatalf("DateStart = %v, want %v", row.DateStart, time.Unix(1000, 0))
	}
}

func TestLotSessionRowOnlyFiresOnActiveToInactiveTransition(t *testing.T) {
	active := lot.State{LotActive: true, GrandProfit: 5, Policy: lot.PolicyFixed}
	inactive := lot.State{LotActive: false, GrandProfit: 8, WinCount: 2, Policy: lot.PolicyFixed}

	if _, ok := lotSessionRow(false, active); ok {
		t.Fatal("expected no row on an inactive -> active transition (a start, not a stop)")
	}
	if _, ok := lotSessionRow(true, active); ok {
		t.Fatal("expected no row while lot remains active")
	}
	if _, ok := lotSessionRow(false, inactive); ok {
		t.Fatal("expected no row when lot was already inactive")
	}

	row, ok := lotSessionRow(true, inactive)
	if !ok {
		t.Fatal("expected a row on active -> inactive transition")
	}
	if row.GrandProfit != 8 || row.WinCount != 2 {
		t.Fatalf("unexpected row: %+v", row)
	}
}
