package indicator

import (
	"math"

	"options-relay/internal/market"
)

// Bollinger holds one Bollinger Bands triplet.
type Bollinger struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerState carries a bounded window of closes to compute SMA and
// population standard deviation in O(1) amortized per update.
type BollingerState struct {
	period int
	window []float64
	head   int
	filled int
	sum    float64
	sumSq  float64
}

// NewBollinger returns a fresh incremental Bollinger tracker for the given
// period.
func NewBollinger(period int) *BollingerState {
	return &BollingerState{period: period, window: make([]float64, period)}
}

// Update feeds the next close and returns the new Bollinger triplet. Before
// the window fills (index < p-1) the zero value is returned.
func (b *BollingerState) Update(close float64) Bollinger {
	var evicted float64
	if b.filled == b.period {
		evicted = b.window[b.head]
	}

	b.sum += close - evicted
	b.sumSq += close*close - evicted*evicted

	b.window[b.head] = close
	b.head = (b.head + 1) % b.period
	if b.filled < b.period {
		b.filled++
	}

	if b.filled < b.period {
		return Bollinger{}
	}

	n := float64(b.period)
	middle := b.sum / n
	variance := b.sumSq/n - middle*middle
	if variance < 0 {
		variance = 0
	}
	sigma := math.Sqrt(variance)

	return Bollinger{
		Upper:  middle + 2*sigma,
		Middle: middle,
		Lower:  middle - 2*sigma,
	}
}

// BollingerBands computes the Bollinger Bands triplet series over the full
// candle slice (§4.1: middle = SMA(p), upper/lower = middle ± 2σ population).
func BollingerBands(candles []market.Candle, period int) []Bollinger {
	out := make([]Bollinger, len(candles))
	state := NewBollinger(period)
	for i, c := range candles {
		out[i] = state.Update(c.Close)
	}
	return out
}
