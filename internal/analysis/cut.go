package analysis

// cutTracker detects medium/long EMA crossovers (golden/death cross) and
// tracks how many candles have elapsed since the last one (§4.2).
type cutTracker struct {
	index        int
	prevAbove    bool
	hasPrev      bool
	lastCutIndex int
	hasCut       bool
}

// Update feeds the next medium-above-long boolean and returns the cut type
// for this candle (nil if no crossover occurred) and candles-since-cut
// (nil if no crossover has ever occurred).
func (t *cutTracker) Update(mediumAboveLong bool) (*CutType, *int) {
	var cutType *CutType
	if t.hasPrev && mediumAboveLong != t.prevAbove {
		ct := CutDownTrend
		if mediumAboveLong {
			ct = CutUpTrend
		}
		cutType = &ct
		t.lastCutIndex = t.index
		t.hasCut = true
	}

	var sinceCut *int
	if t.hasCut {
		v := t.index - t.lastCutIndex
		sinceCut = &v
	}

	t.prevAbove, t.hasPrev = mediumAboveLong, true
	t.index++

	return cutType, sinceCut
}
