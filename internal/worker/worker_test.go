package worker

import (
	"testing"
	"time"

	"options-relay/internal/analysis"
	"options-relay/internal/classifier"
	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
	"options-relay/internal/market"

	"github.com/rs/zerolog"
)

func newTestWorker(t *testing.T) (*Worker, *events.Bus) {
	t.Helper()
	gen, err := analysis.New(analysis.DefaultConfig())
	if err != nil {
		t.Fatalf("analysis.New: %v", err)
	}
	table := classifier.NewTable(nil, nil)
	bus := events.NewBus()
	lc := lifecycle.New(bus, zerolog.Nop(), nil)
	coordinator := lot.New(bus)
	log := logging.New(logging.Config{Level: "ERROR"})

	w := New(Config{Asset: "R_100", Granularity: 60, Duration: 5, DurationUnit: "t", TradeMode: ModeFix}, nil, gen, table, lc, coordinator, bus, log)
	return w, bus
}

func candleAt(minute int64, open, high, low, close float64) market.Candle {
	return market.Candle{Time: minute * 60, Open: open, High: high, Low: low, Close: close}
}

// onCandle must not run the Analysis Generator against a still-open
// (same-minute) candle — only the candle that just closed.
func TestOnCandleOnlyAnalyzesClosedCandles(t *testing.T) {
	w, bus := newTestWorker(t)

	var published []interface{}
	bus.SubscribeAll(func(e events.Event) {
		if e.Type == events.TypeAnalysis {
			published = append(published, e.Data)
		}
	})

	w.onCandle(candleAt(1, 100, 101, 99, 100.5))
	// same-minute tick: must not trigger an analysis publish.
	w.onCandle(market.Candle{Time: 60, Open: 100, High: 102, Low: 99, Close: 100.8})
	time.Sleep(20 * time.Millisecond)
	if len(published) != 0 {
		t.Fatalf("expected no analysis published before any candle closes, got %d", len(published))
	}

	// new minute arrives: the first candle (minute 1) just closed.
	w.onCandle(candleAt(2, 100.8, 101.5, 100, 101))
	time.Sleep(20 * time.Millisecond)
	if len(published) != 1 {
		t.Fatalf("expected exactly one analysis publish on close, got %d", len(published))
	}
}

// With the lot inactive, onCandle must never attempt a buy (which would
// nil-deref the worker's broker session in this test).
func TestOnCandleSkipsBuyWhenLotInactive(t *testing.T) {
	w, _ := newTestWorker(t)
	// Map minute 1's StatusDesc ("--FF-G-N" on a cold generator) to a Call
	// signal, so the lot gate is the only thing standing before the buy.
	w.classifier = classifier.NewTable(
		[]classifier.CandleMasterEntry{{StatusCode: "C1", StatusDesc: "--FF-G-N"}},
		map[string][]classifier.TradeSignalEntry{"R_100": {{StatusCode: "C1", Action: classifier.ActionCall}}},
	)
	w.onCandle(candleAt(1, 100, 101, 99, 100.5))
	w.onCandle(candleAt(2, 100.5, 101, 99, 100.8)) // closes minute 1; session is nil but lot is inactive
}

func TestHandleCommandUpdateMode(t *testing.T) {
	w, _ := newTestWorker(t)
	w.handleCommand(Command{Kind: CmdUpdateMode, TradeMode: ModeIdle})
	if w.mode != ModeIdle {
		t.Fatalf("mode = %v, want idle", w.mode)
	}
}
