package indicator

import "math"

// Round rounds v to the given number of decimal places, matching the
// analysis generator's output precision (5 for indicator values, 2 for
// RSI/Choppiness/ADX per §4.2).
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
