// Package indicator implements the numerical kernel over candle sequences:
// EMA, WMA, HMA, EHMA, RSI, ATR, Bollinger Bands, Choppiness Index, and ADX.
// Every indicator has a batch form over a []market.Candle and a stateful
// incremental form that updates in O(1) (or small bounded-window) per tick,
// so the per-asset worker never has to replay the full candle history.
package indicator

import "options-relay/internal/market"

// EMAState carries the running exponential moving average for one period.
type EMAState struct {
	period int
	k      float64
	value  float64
	seeded bool
}

// NewEMA returns a fresh incremental EMA tracker for the given period.
func NewEMA(period int) *EMAState {
	return &EMAState{period: period, k: 2.0 / float64(period+1)}
}

// Update feeds the next close and returns the new EMA value.
// EMA[0] = close[0]; EMA[i] = close[i]*k + EMA[i-1]*(1-k).
func (e *EMAState) Update(close float64) float64 {
	if !e.seeded {
		e.value = close
		e.seeded = true
		return e.value
	}
	e.value = close*e.k + e.value*(1-e.k)
	return e.value
}

// Value returns the current EMA without advancing state.
func (e *EMAState) Value() float64 { return e.value }

// Seeded reports whether at least one candle has been observed.
func (e *EMAState) Seeded() bool { return e.seeded }

// EMA computes the exponential moving average over the full candle slice,
// matching the incremental recurrence candle by candle (§4.1).
func EMA(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewEMA(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c.Close)}
	}
	return out
}
