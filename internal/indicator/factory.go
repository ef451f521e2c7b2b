package indicator

import "fmt"

// Kind selects which moving-average family backs a configured EMA
// short/medium/long slot (§6: "values in {EMA, HMA, EHMA}").
type Kind string

const (
	KindEMA  Kind = "EMA"
	KindHMA  Kind = "HMA"
	KindEHMA Kind = "EHMA"
)

// Mover is the common incremental interface shared by EMAState, HMAState,
// and EHMAState, letting the analysis generator treat the configured
// short/medium/long tiers uniformly regardless of which family backs them.
type Mover interface {
	Update(close float64) float64
	Value() float64
}

// NewMover constructs the incremental tracker for the given kind and
// period.
func NewMover(kind Kind, period int) (Mover, error) {
	switch kind {
	case KindEMA:
		return NewEMA(period), nil
	case KindHMA:
		return NewHMA(period), nil
	case KindEHMA:
		return NewEHMA(period), nil
	default:
		return nil, fmt.Errorf("indicator: unknown moving average kind %q", kind)
	}
}
