package indicator

import (
	"math"

	"options-relay/internal/market"
)

// ChoppinessState carries a bounded window of true ranges, highs, and lows
// to compute the Choppiness Index per tick (§4.1).
type ChoppinessState struct {
	period    int
	trWindow  []float64
	hiWindow  []float64
	loWindow  []float64
	head      int
	filled    int
	trSum     float64
	prevClose float64
	hasPrev   bool
}

// NewChoppiness returns a fresh incremental Choppiness Index tracker for the
// given period.
func NewChoppiness(period int) *ChoppinessState {
	return &ChoppinessState{
		period:   period,
		trWindow: make([]float64, period),
		hiWindow: make([]float64, period),
		loWindow: make([]float64, period),
	}
}

// Update feeds the next candle and returns the new Choppiness Index value
// (0 until the window fills, and 0 if the window's high-low range is 0).
func (c *ChoppinessState) Update(candle market.Candle) float64 {
	tr := TrueRange(candle, c.prevClose, c.hasPrev)
	c.prevClose = candle.Close
	c.hasPrev = true

	evicted := c.trWindow[c.head]
	c.trSum += tr - evicted

	c.trWindow[c.head] = tr
	c.hiWindow[c.head] = candle.High
	c.loWindow[c.head] = candle.Low
	c.head = (c.head + 1) % c.period
	if c.filled < c.period {
		c.filled++
	}

	if c.filled < c.period {
		return 0
	}

	hi, lo := c.hiWindow[0], c.loWindow[0]
	for i := 1; i < c.period; i++ {
		if c.hiWindow[i] > hi {
			hi = c.hiWindow[i]
		}
		if c.loWindow[i] < lo {
			lo = c.loWindow[i]
		}
	}

	rng := hi - lo
	if rng == 0 {
		return 0
	}

	return 100 * math.Log10(c.trSum/rng) / math.Log10(float64(c.period))
}

// ChoppinessIndex computes the Choppiness Index series over the full candle
// slice.
func ChoppinessIndex(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewChoppiness(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c)}
	}
	return out
}
