package lifecycle

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-relay/internal/events"
)

func newManager(t *testing.T, onResolved ResolvedHandler) *Manager {
	t.Helper()
	return New(events.NewBus(), zerolog.Nop(), onResolved)
}

func TestMinMaxProfitMonotonic(t *testing.T) {
	m := newManager(t, nil)
	m.Open(Contract{ContractID: 1, Asset: "R_100", Profit: 0, DateExpiry: time.Now().Add(time.Hour).Unix()})

	pushes := []float64{0.5, -0.3, 1.2, 0.1, -0.8}
	wantMin, wantMax := 0.0, 0.0
	for i, p := range pushes {
		if p > wantMax {
			wantMax = p
		}
		if p < wantMin {
			wantMin = p
		}
		m.Update(1, p, 0, false, false)
		c, ok := m.Get(1)
		if !ok {
			t.Fatalf("push %d: contract missing", i)
		}
		if c.MaxProfit != wantMax {
			t.Fatalf("push %d: maxProfit = %v, want %v", i, c.MaxProfit, wantMax)
		}
		if c.MinProfit != wantMin {
			t.Fatalf("push %d: minProfit = %v, want %v", i, c.MinProfit, wantMin)
		}
	}
}

func TestTerminalUpdateResolvesWinOnNonNegativeProfit(t *testing.T) {
	var got Resolution
	done := make(chan struct{})
	m := newManager(t, func(r Resolution) {
		got = r
		close(done)
	})
	m.Open(Contract{ContractID: 2, Asset: "R_100", DateExpiry: time.Now().Add(time.Hour).Unix()})
	m.Update(2, 1.5, 0, true, false)

	<-done
	if got.Result != ResultWin {
		t.Fatalf("result = %v, want win", got.Result)
	}
	if m.OpenCount() != 0 {
		t.Fatalf("contract still tracked after terminal update")
	}
}

func TestTerminalUpdateResolvesLossOnNegativeProfit(t *testing.T) {
	var got Resolution
	done := make(chan struct{})
	m := newManager(t, func(r Resolution) {
		got = r
		close(done)
	})
	m.Open(Contract{ContractID: 3, Asset: "R_100", DateExpiry: time.Now().Add(time.Hour).Unix()})
	m.Update(3, -0.4, 0, false, true)

	<-done
	if got.Result != ResultLoss {
		t.Fatalf("result = %v, want loss", got.Result)
	}
}

// §5: contracts that never receive a terminal update are forced to loss
// 30s after expiry. Uses a near-past expiry so the real timer fires fast.
func TestTimeoutForcesLoss(t *testing.T) {
	var got Resolution
	done := make(chan struct{})
	m := newManager(t, func(r Resolution) {
		got = r
		close(done)
	})
	m.now = func() time.Time { return time.Unix(1000, 0).Add(timeoutGrace - 20*time.Millisecond) }
	m.Open(Contract{ContractID: 4, Asset: "R_100", Profit: 0.3, DateExpiry: 1000})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	if got.Result != ResultLoss {
		t.Fatalf("result = %v, want loss", got.Result)
	}
	if m.OpenCount() != 0 {
		t.Fatalf("contract still tracked after timeout")
	}
}
