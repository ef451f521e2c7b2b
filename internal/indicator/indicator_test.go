package indicator

import (
	"math"
	"testing"

	"options-relay/internal/market"
)

func closesToCandles(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{Time: int64(i) * 60, Open: c, High: c, Low: c, Close: c}
	}
	return out
}

// Law 1: EMA recurrence — EMA[i] = EMA[i-1] + k*(close[i]-EMA[i-1]).
func TestEMARecurrence(t *testing.T) {
	closes := []float64{100, 101, 99, 102, 98, 103}
	period := 5
	k := 2.0 / float64(period+1)
	candles := closesToCandles(closes)

	points := EMA(candles, period)
	prev := closes[0]
	for i := 1; i < len(points); i++ {
		want := prev + k*(closes[i]-prev)
		if math.Abs(points[i].Value-want) > 1e-9 {
			t.Fatalf("EMA[%d] = %v, want %v", i, points[i].Value, want)
		}
		prev = points[i].Value
	}
}

func TestEMAIncrementalMatchesBatch(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.8, 12, 11.5}
	candles := closesToCandles(closes)

	batch := EMA(candles, 3)

	state := NewEMA(3)
	for i, c := range closes {
		got := state.Update(c)
		if math.Abs(got-batch[i].Value) > 1e-9 {
			t.Fatalf("incremental EMA[%d] = %v, want %v", i, got, batch[i].Value)
		}
	}
}

func TestWMAPadsWithZeroBeforeWindowFills(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	candles := closesToCandles(closes)
	period := 3

	points := WMA(candles, period)
	for i := 0; i < period-1; i++ {
		if points[i].Value != 0 {
			t.Fatalf("WMA[%d] = %v, want 0 before window fills", i, points[i].Value)
		}
	}

	// WMA at index 2: weights 3,2,1 over closes[0..2] = (1*1+2*2+3*3)/6 = 14/6.
	want := (1*1.0 + 2*2.0 + 3*3.0) / 6.0
	if math.Abs(points[2].Value-want) > 1e-9 {
		t.Fatalf("WMA[2] = %v, want %v", points[2].Value, want)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	candles := closesToCandles(closes)
	points := RSI(candles, 3)
	last := points[len(points)-1].Value
	if last != 100 {
		t.Fatalf("RSI with all gains = %v, want 100", last)
	}
}

// Scenario 5: Abnormal candle — TR=3.0 > ATR(1.0)*2 => abnormal.
func TestTrueRangeAbnormalCandleScenario(t *testing.T) {
	curr := market.Candle{Time: 60, Open: 103, High: 105, Low: 102, Close: 104}
	tr := TrueRange(curr, 103, true)
	if tr != 3.0 {
		t.Fatalf("TR = %v, want 3.0", tr)
	}
	atr := 1.0
	atrMultiplier := 2.0
	if !(tr > atr*atrMultiplier) {
		t.Fatalf("expected TR %v to exceed ATR*multiplier %v", tr, atr*atrMultiplier)
	}
}

// Law 5: Bollinger symmetry — upper-middle == middle-lower within epsilon.
func TestBollingerSymmetry(t *testing.T) {
	closes := []float64{20, 21, 19, 22, 18, 23, 17, 24, 16, 25}
	candles := closesToCandles(closes)
	period := 5

	for i, b := range BollingerBands(candles, period) {
		if i < period-1 {
			continue
		}
		upperGap := b.Upper - b.Middle
		lowerGap := b.Middle - b.Lower
		if math.Abs(upperGap-lowerGap) > 1e-9 {
			t.Fatalf("bollinger[%d] asymmetric: upperGap=%v lowerGap=%v", i, upperGap, lowerGap)
		}
	}
}

// Law 6: CI range — 0 <= choppyIndicator <= 100 whenever max(H) > min(L).
func TestChoppinessIndexRange(t *testing.T) {
	candles := []market.Candle{
		{Time: 0, Open: 10, High: 11, Low: 9, Close: 10.5},
		{Time: 60, Open: 10.5, High: 12, Low: 10, Close: 11},
		{Time: 120, Open: 11, High: 13, Low: 10.5, Close: 12.5},
		{Time: 180, Open: 12.5, High: 14, Low: 11, Close: 13},
		{Time: 240, Open: 13, High: 15, Low: 12, Close: 14.5},
	}
	period := 4

	for i, p := range ChoppinessIndex(candles, period) {
		if i < period-1 {
			continue
		}
		if p.Value < 0 || p.Value > 100 {
			t.Fatalf("CI[%d] = %v, outside [0,100]", i, p.Value)
		}
	}
}

func TestADXRequiresTwicePeriod(t *testing.T) {
	period := 3
	candles := make([]market.Candle, 0, period*2+2)
	price := 100.0
	for i := 0; i < period*2+2; i++ {
		price += 0.5
		candles = append(candles, market.Candle{
			Time: int64(i) * 60, Open: price - 0.3, High: price + 0.2, Low: price - 0.4, Close: price,
		})
	}

	points := ADX(candles, period)
	for i := 0; i < period*2-1; i++ {
		if points[i].Value != 0 {
			t.Fatalf("ADX[%d] = %v, want 0 before 2p candles observed", i, points[i].Value)
		}
	}
	if points[len(points)-1].Value <= 0 {
		t.Fatalf("ADX at end of a sustained uptrend should be positive, got %v", points[len(points)-1].Value)
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.234567, 5); got != 1.23457 {
		t.Fatalf("Round(1.234567,5) = %v, want 1.23457", got)
	}
	if got := Round(55.555, 2); got != 55.56 {
		t.Fatalf("Round(55.555,2) = %v, want 55.56", got)
	}
}
