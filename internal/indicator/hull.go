package indicator

import (
	"math"

	"options-relay/internal/market"
)

// HMAState computes the Hull Moving Average: WMA(sqrt(p)) applied to the
// series 2*WMA(p/2) - WMA(p) (§4.1).
type HMAState struct {
	half *WMAState
	full *WMAState
	smoo *WMAState
}

// NewHMA returns a fresh incremental HMA tracker for the given period.
func NewHMA(period int) *HMAState {
	return &HMAState{
		half: NewWMA(max(1, period/2)),
		full: NewWMA(period),
		smoo: NewWMA(sqrtPeriod(period)),
	}
}

// Update feeds the next close and returns the new HMA value.
func (h *HMAState) Update(close float64) float64 {
	halfVal := h.half.Update(close)
	fullVal := h.full.Update(close)
	raw := 2*halfVal - fullVal
	return h.smoo.Update(raw)
}

// Value returns the current HMA without advancing state.
func (h *HMAState) Value() float64 {
	return h.smoo.Value()
}

// HMA computes the Hull Moving Average over the full candle slice.
func HMA(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewHMA(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c.Close)}
	}
	return out
}

// EHMAState computes the Exponential Hull Moving Average: the same
// structure as HMA with EMA substituted for WMA at every stage (§4.1).
type EHMAState struct {
	half *EMAState
	full *EMAState
	smoo *EMAState
}

// NewEHMA returns a fresh incremental EHMA tracker for the given period.
func NewEHMA(period int) *EHMAState {
	return &EHMAState{
		half: NewEMA(max(1, period/2)),
		full: NewEMA(period),
		smoo: NewEMA(sqrtPeriod(period)),
	}
}

// Update feeds the next close and returns the new EHMA value.
func (e *EHMAState) Update(close float64) float64 {
	halfVal := e.half.Update(close)
	fullVal := e.full.Update(close)
	raw := 2*halfVal - fullVal
	return e.smoo.Update(raw)
}

// Value returns the current EHMA without advancing state.
func (e *EHMAState) Value() float64 {
	return e.smoo.Value()
}

// EHMA computes the Exponential Hull Moving Average over the full candle
// slice.
func EHMA(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewEHMA(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c.Close)}
	}
	return out
}

func sqrtPeriod(period int) int {
	p := int(math.Round(math.Sqrt(float64(period))))
	return max(1, p)
}
