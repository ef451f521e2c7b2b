// Package analysis implements the Analysis Generator (§4.2): it consumes a
// candle window plus indicator outputs and emits one FullAnalysis record per
// closed candle.
package analysis

import "options-relay/internal/market"

// Direction classifies how an EMA value moved between two candles, given a
// flat threshold applied to the magnitude of the change (§4.2).
type Direction string

const (
	DirectionUp   Direction = "Up"
	DirectionDown Direction = "Down"
	DirectionFlat Direction = "Flat"
)

// Char returns the first character used when assembling StatusDesc.
func (d Direction) Char() string {
	if d == "" {
		return "-"
	}
	return string(d[0])
}

// TurnType classifies a direction reversal between two consecutive candles.
type TurnType string

const (
	TurnUp   TurnType = "TurnUp"
	TurnDown TurnType = "TurnDown"
	TurnNone TurnType = "-"
)

// CutType classifies a medium/long EMA crossover (golden/death cross).
type CutType string

const (
	CutUpTrend   CutType = "UpTrend"
	CutDownTrend CutType = "DownTrend"
)

// ConvergenceType classifies macd12 against its previous value.
type ConvergenceType string

const (
	ConvergenceDivergence ConvergenceType = "Divergence"
	ConvergenceConverging ConvergenceType = "Convergence"
	ConvergenceNeutral    ConvergenceType = "Neutral"
)

// LongConvergenceType is the single-character code derived from macd23,
// used directly inside StatusDesc (§4.2).
type LongConvergenceType string

const (
	LongConvergenceNarrow LongConvergenceType = "N"
	LongConvergenceDiverging LongConvergenceType = "D"
	LongConvergenceConverging LongConvergenceType = "C"
)

func (l LongConvergenceType) Char() string {
	if l == "" {
		return "-"
	}
	return string(l)
}

// EMAAbove records which EMA of a compared pair (short/medium or
// medium/long) is currently on top.
type EMAAbove string

const (
	ShortAbove  EMAAbove = "ShortAbove"
	MediumAbove EMAAbove = "MediumAbove"
	LongAbove   EMAAbove = "LongAbove"
)

// Char returns the first character used when assembling StatusDesc ('M' or
// 'L'), or '-' if the two EMAs are exactly equal.
func (a EMAAbove) Char() string {
	if a == "" {
		return "-"
	}
	return string(a[0])
}

// BollingerZone classifies where the close sits within the Bollinger bands.
type BollingerZone string

const (
	ZoneNearUpper BollingerZone = "NearUpper"
	ZoneMiddle    BollingerZone = "Middle"
	ZoneNearLower BollingerZone = "NearLower"
)

// FullAnalysis is the immutable per-candle record emitted by the generator
// (§3: glossary entry "FullAnalysis").
type FullAnalysis struct {
	Time  int64 `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
	Color market.Color `json:"color"`

	EMAShort  float64 `json:"emaShort"`
	EMAMedium float64 `json:"emaMedium"`
	EMALong   float64 `json:"emaLong"`

	EMAShortDirection  Direction `json:"emaShortDirection"`
	EMAMediumDirection Direction `json:"emaMediumDirection"`
	EMALongDirection   Direction `json:"emaLongDirection"`

	EMAShortTurnType TurnType `json:"emaShortTurnType"`

	EMAAbove     EMAAbove `json:"emaAbove"`     // short vs medium
	EMALongAbove EMAAbove `json:"emaLongAbove"` // medium vs long

	MACD12 float64 `json:"macd12"`
	MACD23 float64 `json:"macd23"`

	EMAConvergenceType     ConvergenceType     `json:"emaConvergenceType"`
	EMALongConvergenceType LongConvergenceType `json:"emaLongConvergenceType"`

	EMACutLongType     *CutType `json:"emaCutLongType,omitempty"`
	CandlesSinceEMACut *int     `json:"candlesSinceEmaCut,omitempty"`
	EMACutPosition     string   `json:"emaCutPosition"`

	UpConMediumEMA   int `json:"upConMediumEma"`
	DownConMediumEMA int `json:"downConMediumEma"`
	UpConLongEMA     int `json:"upConLongEma"`
	DownConLongEMA   int `json:"downConLongEma"`

	ChoppyIndicator float64 `json:"choppyIndicator"`
	ADXValue        float64 `json:"adxValue"`
	RSIValue        float64 `json:"rsiValue"`

	BollingerUpper  float64       `json:"bollingerUpper"`
	BollingerMiddle float64       `json:"bollingerMiddle"`
	BollingerLower  float64       `json:"bollingerLower"`
	BollingerZone   BollingerZone `json:"bollingerZone"`

	ATR float64 `json:"atr"`

	IsAbnormalCandle bool `json:"isAbnormalCandle"`
	IsAbnormalATR    bool `json:"isAbnormalAtr"`

	Body          float64 `json:"body"`
	FullCandleSize float64 `json:"fullCandleSize"`
	UpperWick     float64 `json:"upperWick"`
	LowerWick     float64 `json:"lowerWick"`

	StatusDesc string `json:"statusDesc"`
	StatusCode string `json:"statusCode"`
}

// candleMetrics bundles the body/wick measurements used by §4.2's abnormal
// flags and the emaCutPosition classifier.
type candleMetrics struct {
	bodyTop    float64
	bodyBottom float64
	body       float64
	fullSize   float64
	upperWick  float64
	lowerWick  float64
}

func measure(c market.Candle) candleMetrics {
	bodyTop := c.Open
	bodyBottom := c.Close
	if c.Close > c.Open {
		bodyTop, bodyBottom = c.Close, c.Open
	}
	return candleMetrics{
		bodyTop:    bodyTop,
		bodyBottom: bodyBottom,
		body:       bodyTop - bodyBottom,
		fullSize:   c.High - c.Low,
		upperWick:  c.High - bodyTop,
		lowerWick:  bodyBottom - c.Low,
	}
}
