package indicator

import "options-relay/internal/market"

// RSIState carries Wilder-smoothed average gain/loss for one RSI period.
type RSIState struct {
	period    int
	prevClose float64
	hasPrev   bool
	count     int
	gainSum   float64
	lossSum   float64
	avgGain   float64
	avgLoss   float64
	ready     bool
}

// NewRSI returns a fresh incremental RSI tracker for the given period.
func NewRSI(period int) *RSIState {
	return &RSIState{period: period}
}

// Update feeds the next close and returns the new RSI value. Per §4.1 the
// first value is produced at index p (the p-th observed difference); until
// then it returns 0.
func (r *RSIState) Update(close float64) float64 {
	if !r.hasPrev {
		r.prevClose = close
		r.hasPrev = true
		return 0
	}

	change := close - r.prevClose
	r.prevClose = close

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if !r.ready {
		r.gainSum += gain
		r.lossSum += loss
		r.count++
		if r.count < r.period {
			return 0
		}
		r.avgGain = r.gainSum / float64(r.period)
		r.avgLoss = r.lossSum / float64(r.period)
		r.ready = true
		return rsiFromAverages(r.avgGain, r.avgLoss)
	}

	r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
	r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	return rsiFromAverages(r.avgGain, r.avgLoss)
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RSI computes the Relative Strength Index over the full candle slice.
func RSI(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewRSI(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c.Close)}
	}
	return out
}
