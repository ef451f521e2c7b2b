package analysis

import "options-relay/internal/market"

// emaDirection applies the flat-threshold rule from §4.2: the comparison is
// on the magnitude of the change, never on the raw prev<curr ordering alone
// (the REDESIGN FLAG this spec corrects).
func emaDirection(prev, curr, flatThreshold float64) Direction {
	if abs(curr-prev) <= flatThreshold {
		return DirectionFlat
	}
	if prev < curr {
		return DirectionUp
	}
	return DirectionDown
}

// emaTurnType classifies a reversal using a fixed ±0.0001 deadband over the
// raw (non-thresholded) direction of the previous and current steps, per
// §4.2. Requires at least two prior EMA values (i>=2), reported by the
// caller via hasHistory.
func emaTurnType(prevPrev, prev, curr float64, hasHistory bool) TurnType {
	if !hasHistory {
		return TurnNone
	}
	prevStep := rawDirection(prevPrev, prev)
	currStep := rawDirection(prev, curr)
	switch {
	case prevStep == DirectionDown && currStep == DirectionUp:
		return TurnUp
	case prevStep == DirectionUp && currStep == DirectionDown:
		return TurnDown
	default:
		return TurnNone
	}
}

const turnDeadband = 0.0001

func rawDirection(prev, curr float64) Direction {
	diff := curr - prev
	if abs(diff) <= turnDeadband {
		return DirectionFlat
	}
	if diff > 0 {
		return DirectionUp
	}
	return DirectionDown
}

// emaAboveShortMedium classifies short vs medium (the "emaAbove" field).
func emaAboveShortMedium(short, medium float64) EMAAbove {
	switch {
	case short > medium:
		return ShortAbove
	case medium > short:
		return MediumAbove
	default:
		return ""
	}
}

// emaAboveMediumLong classifies medium vs long (the "emaLongAbove" field
// used directly in StatusDesc, scenario 6).
func emaAboveMediumLong(medium, long float64) EMAAbove {
	switch {
	case medium > long:
		return MediumAbove
	case long > medium:
		return LongAbove
	default:
		return ""
	}
}

func emaConvergenceType(macd, prevMACD float64) ConvergenceType {
	switch {
	case macd > prevMACD:
		return ConvergenceDivergence
	case macd < prevMACD:
		return ConvergenceConverging
	default:
		return ConvergenceNeutral
	}
}

func emaLongConvergenceType(macd23, prevMACD23 float64) LongConvergenceType {
	if abs(macd23) < 0.15 {
		return LongConvergenceNarrow
	}
	if macd23 > prevMACD23 {
		return LongConvergenceDiverging
	}
	return LongConvergenceConverging
}

// bollingerZone classifies close against the upper/lower third bands
// derived from the Bollinger range (§4.2).
func bollingerZone(close, upper, lower float64) BollingerZone {
	rng := upper - lower
	upperZone := upper - rng*0.33
	lowerZone := lower + rng*0.33
	switch {
	case close >= upperZone:
		return ZoneNearUpper
	case close <= lowerZone:
		return ZoneNearLower
	default:
		return ZoneMiddle
	}
}

// emaCutPosition classifies where emaShort falls relative to the candle
// into one of five zones, the middle one further split into thirds (§4.2).
func emaCutPosition(emaShort float64, c market.Candle, m candleMetrics) string {
	switch {
	case emaShort > c.High:
		return "1"
	case emaShort >= m.bodyTop && emaShort <= c.High:
		return "2"
	case emaShort >= m.bodyBottom && emaShort <= m.bodyTop:
		third := m.body / 3
		if third == 0 {
			return "B2"
		}
		switch {
		case emaShort >= m.bodyTop-third:
			return "B1"
		case emaShort >= m.bodyBottom+third:
			return "B2"
		default:
			return "B3"
		}
	case emaShort >= c.Low && emaShort < m.bodyBottom:
		return "3"
	default:
		return "4"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
