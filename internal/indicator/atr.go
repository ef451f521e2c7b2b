package indicator

import (
	"math"

	"options-relay/internal/market"
)

// TrueRange returns True Range for the current candle given the previous
// close. For the very first candle (no previous close) it is H-L (§4.1).
func TrueRange(curr market.Candle, prevClose float64, hasPrev bool) float64 {
	if !hasPrev {
		return curr.High - curr.Low
	}
	return math.Max(curr.High-curr.Low,
		math.Max(math.Abs(curr.High-prevClose), math.Abs(curr.Low-prevClose)))
}

// ATRState carries the running average true range for one period: arithmetic
// mean for the first p values, then Wilder smoothing thereafter.
type ATRState struct {
	period    int
	prevClose float64
	hasPrev   bool
	count     int
	trSum     float64
	value     float64
	ready     bool
}

// NewATR returns a fresh incremental ATR tracker for the given period.
func NewATR(period int) *ATRState {
	return &ATRState{period: period}
}

// Update feeds the next candle and returns the new ATR value (0 until the
// first p true ranges have been observed).
func (a *ATRState) Update(c market.Candle) float64 {
	tr := TrueRange(c, a.prevClose, a.hasPrev)
	a.prevClose = c.Close
	a.hasPrev = true

	if !a.ready {
		a.trSum += tr
		a.count++
		if a.count < a.period {
			return 0
		}
		a.value = a.trSum / float64(a.period)
		a.ready = true
		return a.value
	}

	a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)
	return a.value
}

// Value returns the current ATR without advancing state.
func (a *ATRState) Value() float64 { return a.value }

// ATR computes the Average True Range over the full candle slice.
func ATR(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewATR(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c)}
	}
	return out
}
