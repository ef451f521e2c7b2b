package analysis

import (
	"fmt"

	"options-relay/internal/indicator"

	"options-relay/config"
)

// Config holds the per-asset indicator configuration (§6: "Indicator
// config: periods and types for EMA short/medium/long ..., ATR
// period+multiplier, BB period, CI period, ADX period, RSI period,
// flatThreshold"). It does not carry macdNarrow: the narrow-convergence
// threshold is fixed at 0.15 in emaLongConvergenceType, and
// FromIndicatorConfig does not read config.IndicatorConfig.MACDNarrow.
type Config struct {
	ShortKind  indicator.Kind
	MediumKind indicator.Kind
	LongKind   indicator.Kind

	ShortPeriod  int
	MediumPeriod int
	LongPeriod   int

	ATRPeriod     int
	ATRMultiplier float64

	BollingerPeriod int
	ChoppyPeriod    int
	ADXPeriod       int
	RSIPeriod       int

	FlatThreshold float64
}

// DefaultConfig returns reasonable defaults matching common binary-options
// relay deployments: EMA(9)/EMA(21)/EMA(50), ATR(14)x2, BB(20), CI(14),
// ADX(14), RSI(14), flatThreshold 0.05.
func DefaultConfig() Config {
	return Config{
		ShortKind:  indicator.KindEMA,
		MediumKind: indicator.KindEMA,
		LongKind:   indicator.KindEMA,

		ShortPeriod:  9,
		MediumPeriod: 21,
		LongPeriod:   50,

		ATRPeriod:     14,
		ATRMultiplier: 2.0,

		BollingerPeriod: 20,
		ChoppyPeriod:    14,
		ADXPeriod:       14,
		RSIPeriod:       14,

		FlatThreshold: 0.05,
	}
}

func parseKind(s string) (indicator.Kind, error) {
	switch s {
	case "", "EMA":
		return indicator.KindEMA, nil
	case "HMA":
		return indicator.KindHMA, nil
	case "EHMA":
		return indicator.KindEHMA, nil
	default:
		return "", fmt.Errorf("analysis: unknown moving-average kind %q", s)
	}
}

// FromIndicatorConfig builds a Config from the config-file tree loaded at
// startup (§6.3).
func FromIndicatorConfig(ic config.IndicatorConfig) (Config, error) {
	shortKind, err := parseKind(ic.ShortKind)
	if err != nil {
		return Config{}, err
	}
	mediumKind, err := parseKind(ic.MediumKind)
	if err != nil {
		return Config{}, err
	}
	longKind, err := parseKind(ic.LongKind)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ShortKind:  shortKind,
		MediumKind: mediumKind,
		LongKind:   longKind,

		ShortPeriod:  ic.ShortPeriod,
		MediumPeriod: ic.MediumPeriod,
		LongPeriod:   ic.LongPeriod,

		ATRPeriod:     ic.ATRPeriod,
		ATRMultiplier: ic.ATRMultiplier,

		BollingerPeriod: ic.BollingerPeriod,
		ChoppyPeriod:    ic.ChoppyPeriod,
		ADXPeriod:       ic.ADXPeriod,
		RSIPeriod:       ic.RSIPeriod,

		FlatThreshold: ic.FlatThreshold,
	}, nil
}
