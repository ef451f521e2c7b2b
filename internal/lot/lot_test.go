package lot

import "testing"

// §8 scenario 3: Martingale ladder, initial stake 1.0, ladder
// [1,2,6,8,16,54,162], trades L,L,W,L,L,L,L,L -> stakes 1,2,6,1,2,6,8,16.
func TestMartingaleLadderScenario(t *testing.T) {
	c := New(nil)
	c.Start(Config{
		Policy:       PolicyMartingale,
		Ladder:       []float64{1, 2, 6, 8, 16, 54, 162},
		InitialStake: 1.0,
		TargetProfit: 1e9,
		TargetWin:    1 << 30,
	})

	results := []float64{-1, -1, 1, -1, -1, -1, -1, -1}
	want := []float64{1, 2, 6, 1, 2, 6, 8, 16}

	for i, result := range results {
		stake, granted := c.RequestStake()
		if !granted {
			t.Fatalf("trade %d: stake request denied unexpectedly", i)
		}
		if stake != want[i] {
			t.Fatalf("trade %d: stake = %v, want %v", i, stake, want[i])
		}
		c.OnResult(result)
	}
}

// §8 scenario 4: targetProfit=10, targetWin=100, Fixed stake 1.0; wins of
// +0.9 each leave the lot active at 9.9 after the 11th and cross
// targetProfit at 10.8 on the 12th, so the thirteenth requestStake is
// Denied and lot_status reflects lot_active=false.
func TestLotStopOnTargetProfitScenario(t *testing.T) {
	c := New(nil)
	c.Start(Config{
		Policy:       PolicyFixed,
		InitialStake: 1.0,
		TargetProfit: 10,
		TargetWin:    100,
	})

	for i := 0; i < 11; i++ {
		if _, granted := c.RequestStake(); !granted {
			t.Fatalf("win %d: stake request unexpectedly denied", i)
		}
		c.OnResult(0.9)
	}

	snap := c.Snapshot()
	if !snap.LotActive {
		t.Fatalf("lot deactivated before target profit was reached: grandProfit=%v", snap.GrandProfit)
	}

	if _, granted := c.RequestStake(); !granted {
		t.Fatalf("win 11: stake request unexpectedly denied")
	}
	c.OnResult(0.9)

	_, granted := c.RequestStake()
	if granted {
		t.Fatalf("expected thirteenth requestStake to be Denied, got granted")
	}
	if c.Snapshot().LotActive {
		t.Fatalf("lot_status.lot_active = true after stop condition met, want false")
	}
}

// Law 7: grandProfit after N resolved contracts equals the sum of profits.
func TestLotConservation(t *testing.T) {
	c := New(nil)
	c.Start(Config{Policy: PolicyFixed, InitialStake: 1.0, TargetProfit: 1e9, TargetWin: 1 << 30})

	profits := []float64{1.2, -0.8, 0.5, -2.1, 3.0}
	var want float64
	for _, p := range profits {
		want += p
		c.OnResult(p)
	}
	if got := c.Snapshot().GrandProfit; got != want {
		t.Fatalf("grandProfit = %v, want %v", got, want)
	}
}

// Law 8: martingaleStep stays within [0, len(ladder)-1] and resets to 0 on
// every win.
func TestMartingaleStepBounded(t *testing.T) {
	c := New(nil)
	ladder := []float64{1, 2, 6, 8}
	c.Start(Config{Policy: PolicyMartingale, Ladder: ladder, InitialStake: 1, TargetProfit: 1e9, TargetWin: 1 << 30})

	for i := 0; i < 10; i++ {
		c.OnResult(-1)
		step := c.Snapshot().MartingaleStep
		if step < 0 || step > len(ladder)-1 {
			t.Fatalf("martingaleStep = %d out of bounds after %d losses", step, i+1)
		}
	}
	c.OnResult(1)
	if step := c.Snapshot().MartingaleStep; step != 0 {
		t.Fatalf("martingaleStep after win = %d, want 0", step)
	}
}

func TestStopIsImmediatelyDenied(t *testing.T) {
	c := New(nil)
	c.Start(Config{Policy: PolicyFixed, InitialStake: 1, TargetProfit: 1e9, TargetWin: 1 << 30})
	c.Stop()
	if _, granted := c.RequestStake(); granted {
		t.Fatalf("expected stake request to be denied after Stop")
	}
}

// UPDATE_PARAMS must tighten a running lot's stop condition without
// resetting its counters.
func TestUpdateParamsTightensStopCondition(t *testing.T) {
	c := New(nil)
	c.Start(Config{Policy: PolicyFixed, InitialStake: 1, TargetProfit: 1e9, TargetWin: 1 << 30})
	c.OnResult(5)
	c.UpdateParams(4, 0)

	if _, granted := c.RequestStake(); granted {
		t.Fatalf("expected stake request denied once tightened targetProfit is already exceeded")
	}
	if got := c.Snapshot().GrandProfit; got != 5 {
		t.Fatalf("grandProfit = %v, want 5 (UpdateParams must not reset counters)", got)
	}
}
