package analysis

import (
	"testing"

	"options-relay/internal/market"
)

// §4.2's rule is explicit: the flat threshold is applied to the magnitude
// of the EMA change, never to the raw prev<curr comparison (the
// REDESIGN FLAG this repo corrects — see DESIGN.md). Scenario 1 in spec.md
// §8 is internally inconsistent about where the boundary falls (its own
// prose admits "verify implementers match the source's comparison"); this
// test instead pins down the §4.2 rule itself at its threshold boundary.
func TestEMADirectionFlatThreshold(t *testing.T) {
	const threshold = 0.2

	cases := []struct {
		prev, curr float64
		want       Direction
	}{
		{100, 100.05, DirectionFlat},  // |diff|=0.05 <= 0.2
		{0, 0.2, DirectionFlat},       // exactly at the boundary
		{100, 100.21, DirectionUp},    // just past the boundary
		{100.21, 100, DirectionDown},  // symmetric on the way down
	}
	for _, tc := range cases {
		got := emaDirection(tc.prev, tc.curr, threshold)
		if got != tc.want {
			t.Fatalf("emaDirection(%v,%v,%v) = %v, want %v", tc.prev, tc.curr, threshold, got, tc.want)
		}
	}
}

// Law 2: direction determinism — a pure function of (prev, curr) given a
// fixed threshold.
func TestEMADirectionDeterministic(t *testing.T) {
	a := emaDirection(10, 10.5, 0.1)
	b := emaDirection(10, 10.5, 0.1)
	if a != b {
		t.Fatalf("emaDirection not deterministic: %v vs %v", a, b)
	}
}

// Scenario 2: golden cross detection.
func TestCutTrackerGoldenCross(t *testing.T) {
	medium := []float64{10, 11, 12, 13, 14}
	long := []float64{12, 12, 12, 12, 12}

	var tracker cutTracker
	wantCut := []*CutType{nil, nil, nil, ptr(CutUpTrend), nil}
	wantSince := []*int{nil, nil, nil, ptrInt(0), ptrInt(1)}

	for i := range medium {
		cut, since := tracker.Update(medium[i] > long[i])
		if !cutEqual(cut, wantCut[i]) {
			t.Fatalf("index %d: cut = %v, want %v", i, deref(cut), deref(wantCut[i]))
		}
		if !intEqual(since, wantSince[i]) {
			t.Fatalf("index %d: candlesSinceCut = %v, want %v", i, derefInt(since), derefInt(wantSince[i]))
		}
	}
}

// Scenario 6: StatusDesc assembly.
func TestStatusDescAssembly(t *testing.T) {
	a := FullAnalysis{
		EMALongAbove:           MediumAbove,
		EMAMediumDirection:     DirectionUp,
		EMALongDirection:       DirectionUp,
		Color:                  market.ColorGreen,
		EMALongConvergenceType: LongConvergenceDiverging,
	}
	got := buildStatusDesc(a)
	want := "M-UU-G-D"
	if got != want {
		t.Fatalf("StatusDesc = %q, want %q", got, want)
	}
}

// Law 3: counter reset law — after Down then Up, up=1/down=0 and flat runs
// preserve both counters exactly.
func TestConsecutiveCounterReset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MediumKind, cfg.MediumPeriod = "EMA", 1 // track raw close changes directly
	cfg.FlatThreshold = 0.001
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	closes := []float64{100, 95, 105, 105, 110} // Down, Up, Flat, Up
	var lastUp, lastDown int
	for i, c := range closes {
		a := g.Next(market.Candle{Time: int64(i) * 60, Open: c, High: c, Low: c, Close: c})
		lastUp, lastDown = a.UpConMediumEMA, a.DownConMediumEMA
	}
	if lastUp != 2 {
		t.Fatalf("upConMediumEMA = %d, want 2 (one Flat, one Up run of 2 after a Flat)", lastUp)
	}
	if lastDown != 0 {
		t.Fatalf("downConMediumEMA = %d, want 0", lastDown)
	}
}

func ptr(c CutType) *CutType { return &c }
func ptrInt(v int) *int      { return &v }

func deref(c *CutType) string {
	if c == nil {
		return "<nil>"
	}
	return string(*c)
}
func derefInt(v *int) string {
	if v == nil {
		return "<nil>"
	}
	return string(rune('0' + *v))
}

func cutEqual(a, b *CutType) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
