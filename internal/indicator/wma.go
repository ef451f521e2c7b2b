package indicator

import "options-relay/internal/market"

// WMAState carries the running weighted moving average for one period using
// the O(1)-update identity:
//
//	sum[i]         = sum[i-1] + close[i] - close[i-p]
//	weightedSum[i] = weightedSum[i-1] + p*close[i] - sum[i-1]
//	WMA[i]         = weightedSum[i] / (p*(p+1)/2)
//
// A small ring buffer of the last p closes is kept to evict the dropped term.
type WMAState struct {
	period      int
	denom       float64
	window      []float64
	head        int
	filled      int
	sum         float64
	weightedSum float64
}

// NewWMA returns a fresh incremental WMA tracker for the given period.
func NewWMA(period int) *WMAState {
	if period < 1 {
		period = 1
	}
	return &WMAState{
		period: period,
		denom:  float64(period*(period+1)) / 2,
		window: make([]float64, period),
	}
}

// Update feeds the next close and returns the new WMA value. Returns 0 until
// the window has filled (values before index p-1 are defined as 0, §4.1).
func (w *WMAState) Update(close float64) float64 {
	var evicted float64
	if w.filled == w.period {
		evicted = w.window[w.head]
	}

	w.weightedSum += float64(w.period)*close - w.sum
	w.sum += close - evicted

	w.window[w.head] = close
	w.head = (w.head + 1) % w.period
	if w.filled < w.period {
		w.filled++
		if w.filled < w.period {
			return 0
		}
		// Window just completed: weightedSum above assumed a full history of
		// zero-padded evictions, which holds because evicted==0 throughout
		// the fill phase.
	}

	return w.weightedSum / w.denom
}

// Value returns the current WMA without advancing state.
func (w *WMAState) Value() float64 {
	if w.filled < w.period {
		return 0
	}
	return w.weightedSum / w.denom
}

// WMA computes the linearly weighted moving average over the full candle
// slice; values before index p-1 are 0 (§4.1).
func WMA(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewWMA(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c.Close)}
	}
	return out
}
