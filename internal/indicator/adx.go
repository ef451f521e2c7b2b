package indicator

import "options-relay/internal/market"

// ADXState carries Wilder-smoothed +DM/-DM/TR sums and the DX history
// needed to produce a final ADX value (§4.1). At least 2p candles are
// required before a non-zero value is produced.
type ADXState struct {
	period int

	prevHigh, prevLow, prevClose float64
	hasPrev                      bool

	seedCount int
	trSeed    float64
	plusSeed  float64
	minusSeed float64

	smoothedTR    float64
	smoothedPlus  float64
	smoothedMinus float64
	smoothing     bool

	dxCount int
	dxSum   float64
	adx     float64
	ready   bool
}

// NewADX returns a fresh incremental ADX tracker for the given period.
func NewADX(period int) *ADXState {
	return &ADXState{period: period}
}

// Update feeds the next candle and returns the new ADX value (0 until at
// least 2p candles have been observed).
func (a *ADXState) Update(c market.Candle) float64 {
	if !a.hasPrev {
		a.prevHigh, a.prevLow, a.prevClose = c.High, c.Low, c.Close
		a.hasPrev = true
		return 0
	}

	upMove := c.High - a.prevHigh
	downMove := a.prevLow - c.Low

	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	tr := TrueRange(c, a.prevClose, true)
	a.prevHigh, a.prevLow, a.prevClose = c.High, c.Low, c.Close

	if !a.smoothing {
		a.trSeed += tr
		a.plusSeed += plusDM
		a.minusSeed += minusDM
		a.seedCount++
		if a.seedCount < a.period {
			return 0
		}
		a.smoothedTR = a.trSeed
		a.smoothedPlus = a.plusSeed
		a.smoothedMinus = a.minusSeed
		a.smoothing = true
	} else {
		p := float64(a.period)
		a.smoothedTR = a.smoothedTR - a.smoothedTR/p + tr
		a.smoothedPlus = a.smoothedPlus - a.smoothedPlus/p + plusDM
		a.smoothedMinus = a.smoothedMinus - a.smoothedMinus/p + minusDM
	}

	if a.smoothedTR == 0 {
		return 0
	}

	plusDI := 100 * a.smoothedPlus / a.smoothedTR
	minusDI := 100 * a.smoothedMinus / a.smoothedTR

	diSum := plusDI + minusDI
	var dx float64
	if diSum != 0 {
		dx = 100 * abs(plusDI-minusDI) / diSum
	}

	if !a.ready {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount < a.period {
			return 0
		}
		a.adx = a.dxSum / float64(a.period)
		a.ready = true
		return a.adx
	}

	a.adx = (a.adx*float64(a.period-1) + dx) / float64(a.period)
	return a.adx
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ADX computes the Average Directional Index over the full candle slice.
func ADX(candles []market.Candle, period int) []market.IndicatorPoint {
	out := make([]market.IndicatorPoint, len(candles))
	state := NewADX(period)
	for i, c := range candles {
		out[i] = market.IndicatorPoint{Time: c.Time, Value: state.Update(c)}
	}
	return out
}
