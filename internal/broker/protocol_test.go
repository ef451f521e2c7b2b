package broker

import (
	"testing"
	"time"
)

func TestNormalizeMinuteAlignment(t *testing.T) {
	cases := []struct{ epoch, want int64 }{
		{1700000000, 1699999980},
		{60, 60},
		{119, 60},
		{0, 0},
	}
	for _, tc := range cases {
		if got := normalizeMinute(tc.epoch); got != tc.want {
			t.Fatalf("normalizeMinute(%d) = %d, want %d", tc.epoch, got, tc.want)
		}
	}
}

func TestCandlesFromHistoryNormalizesBothShapes(t *testing.T) {
	rows := []wireCandle{
		{Epoch: 125, Open: 1, High: 2, Low: 0.5, Close: 1.5},
	}
	candles := candlesFromHistory(rows)
	if candles[0].Time != 120 {
		t.Fatalf("history candle time = %d, want 120", candles[0].Time)
	}

	tick := &wireOHLC{Symbol: "R_100", Epoch: 185, Open: 1, High: 2, Low: 0.5, Close: 1.6}
	c := candleFromOHLC(tick)
	if c.Time != 180 {
		t.Fatalf("ohlc candle time = %d, want 180", c.Time)
	}
	if c.Close != 1.6 {
		t.Fatalf("ohlc candle close = %v, want 1.6", c.Close)
	}
}

func TestSortCandlesAscending(t *testing.T) {
	rows := []wireCandle{
		{Epoch: 180, Close: 3},
		{Epoch: 60, Close: 1},
		{Epoch: 120, Close: 2},
	}
	candles := candlesFromHistory(rows)
	sortCandlesAscending(candles)
	for i := 1; i < len(candles); i++ {
		if candles[i].Time < candles[i-1].Time {
			t.Fatalf("candles not ascending at %d: %+v", i, candles)
		}
	}
}

// §5: reconnection backoff is exactly 1s, 2s, 4s.
func TestReconnectBackoffSchedule(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(reconnectBackoff) != len(want) {
		t.Fatalf("backoff schedule length = %d, want %d", len(reconnectBackoff), len(want))
	}
	for i, d := range want {
		if reconnectBackoff[i] != d {
			t.Fatalf("backoff[%d] = %v, want %v", i, reconnectBackoff[i], d)
		}
	}
}
