package analysis

import (
	"fmt"

	"options-relay/internal/indicator"
	"options-relay/internal/market"
)

// Generator drives the Indicator Kernel incrementally and assembles one
// FullAnalysis record per candle (§4.2). A Generator is owned exclusively by
// one Per-Asset Worker; it carries no shared mutable state.
type Generator struct {
	cfg Config

	short  indicator.Mover
	medium indicator.Mover
	long   indicator.Mover

	rsi    *indicator.RSIState
	atr    *indicator.ATRState
	boll   *indicator.BollingerState
	choppy *indicator.ChoppinessState
	adx    *indicator.ADXState

	prevShort      float64
	prevPrevShort  float64
	hasPrevShort   bool
	hasPrevPrevShort bool

	prevMedium    float64
	hasPrevMedium bool
	prevLong      float64
	hasPrevLong   bool

	prevMACD12 float64
	prevMACD23 float64

	cut cutTracker

	upConMedium, downConMedium int
	upConLong, downConLong     int

	prevClose    float64
	hasPrevClose bool
}

// New constructs a Generator from the given indicator configuration.
func New(cfg Config) (*Generator, error) {
	short, err := indicator.NewMover(cfg.ShortKind, cfg.ShortPeriod)
	if err != nil {
		return nil, fmt.Errorf("analysis: short EMA: %w", err)
	}
	medium, err := indicator.NewMover(cfg.MediumKind, cfg.MediumPeriod)
	if err != nil {
		return nil, fmt.Errorf("analysis: medium EMA: %w", err)
	}
	long, err := indicator.NewMover(cfg.LongKind, cfg.LongPeriod)
	if err != nil {
		return nil, fmt.Errorf("analysis: long EMA: %w", err)
	}

	return &Generator{
		cfg:    cfg,
		short:  short,
		medium: medium,
		long:   long,
		rsi:    indicator.NewRSI(cfg.RSIPeriod),
		atr:    indicator.NewATR(cfg.ATRPeriod),
		boll:   indicator.NewBollinger(cfg.BollingerPeriod),
		choppy: indicator.NewChoppiness(cfg.ChoppyPeriod),
		adx:    indicator.NewADX(cfg.ADXPeriod),
	}, nil
}

// Next feeds the next closed candle and returns its FullAnalysis record.
func (g *Generator) Next(c market.Candle) FullAnalysis {
	m := measure(c)

	emaShort := g.short.Update(c.Close)
	emaMedium := g.medium.Update(c.Close)
	emaLong := g.long.Update(c.Close)

	rsiVal := g.rsi.Update(c.Close)
	atrVal := g.atr.Update(c)
	bb := g.boll.Update(c.Close)
	ciVal := g.choppy.Update(c)
	adxVal := g.adx.Update(c)

	tr := indicator.TrueRange(c, g.prevClose, g.hasPrevClose)
	g.prevClose = c.Close
	g.hasPrevClose = true

	shortDir := DirectionFlat
	if g.hasPrevShort {
		shortDir = emaDirection(g.prevShort, emaShort, g.cfg.FlatThreshold)
	}
	mediumDir := DirectionFlat
	if g.hasPrevMedium {
		mediumDir = emaDirection(g.prevMedium, emaMedium, g.cfg.FlatThreshold)
	}
	longDir := DirectionFlat
	if g.hasPrevLong {
		longDir = emaDirection(g.prevLong, emaLong, g.cfg.FlatThreshold)
	}

	turn := emaTurnType(g.prevPrevShort, g.prevShort, emaShort, g.hasPrevPrevShort && g.hasPrevShort)

	macd12 := abs(emaShort - emaMedium)
	macd23 := abs(emaMedium - emaLong)

	convergence := emaConvergenceType(macd12, g.prevMACD12)
	longConvergence := emaLongConvergenceType(macd23, g.prevMACD23)

	mediumAboveLong := emaMedium > emaLong
	cutType, candlesSinceCut := g.cut.Update(mediumAboveLong)

	switch mediumDir {
	case DirectionUp:
		g.upConMedium++
		g.downConMedium = 0
	case DirectionDown:
		g.downConMedium++
		g.upConMedium = 0
	}
	switch longDir {
	case DirectionUp:
		g.upConLong++
		g.downConLong = 0
	case DirectionDown:
		g.downConLong++
		g.upConLong = 0
	}

	isAbnormalCandle := tr > atrVal*g.cfg.ATRMultiplier
	isAbnormalATR := m.body > atrVal*g.cfg.ATRMultiplier || m.fullSize > atrVal*g.cfg.ATRMultiplier*1.5

	a := FullAnalysis{
		Time:  c.Time,
		Open:  c.Open,
		High:  c.High,
		Low:   c.Low,
		Close: c.Close,
		Color: market.CandleColor(c),

		EMAShort:  indicator.Round(emaShort, 5),
		EMAMedium: indicator.Round(emaMedium, 5),
		EMALong:   indicator.Round(emaLong, 5),

		EMAShortDirection:  shortDir,
		EMAMediumDirection: mediumDir,
		EMALongDirection:   longDir,
		EMAShortTurnType:   turn,

		EMAAbove:     emaAboveShortMedium(emaShort, emaMedium),
		EMALongAbove: emaAboveMediumLong(emaMedium, emaLong),

		MACD12: indicator.Round(macd12, 5),
		MACD23: indicator.Round(macd23, 5),

		EMAConvergenceType:     convergence,
		EMALongConvergenceType: longConvergence,

		EMACutLongType:     cutType,
		CandlesSinceEMACut: candlesSinceCut,
		EMACutPosition:     emaCutPosition(emaShort, c, m),

		UpConMediumEMA:   g.upConMedium,
		DownConMediumEMA: g.downConMedium,
		UpConLongEMA:     g.upConLong,
		DownConLongEMA:   g.downConLong,

		ChoppyIndicator: indicator.Round(ciVal, 2),
		ADXValue:        indicator.Round(adxVal, 2),
		RSIValue:        indicator.Round(rsiVal, 2),

		BollingerUpper:  indicator.Round(bb.Upper, 5),
		BollingerMiddle: indicator.Round(bb.Middle, 5),
		BollingerLower:  indicator.Round(bb.Lower, 5),
		BollingerZone:   bollingerZone(c.Close, bb.Upper, bb.Lower),

		ATR: indicator.Round(atrVal, 5),

		IsAbnormalCandle: isAbnormalCandle,
		IsAbnormalATR:    isAbnormalATR,

		Body:           indicator.Round(m.body, 5),
		FullCandleSize: indicator.Round(m.fullSize, 5),
		UpperWick:      indicator.Round(m.upperWick, 5),
		LowerWick:      indicator.Round(m.lowerWick, 5),
	}
	a.StatusDesc = buildStatusDesc(a)

	g.prevPrevShort, g.hasPrevPrevShort = g.prevShort, g.hasPrevShort
	g.prevShort, g.hasPrevShort = emaShort, true
	g.prevMedium, g.hasPrevMedium = emaMedium, true
	g.prevLong, g.hasPrevLong = emaLong, true
	g.prevMACD12 = macd12
	g.prevMACD23 = macd23

	return a
}
