// Package lot implements the Lot Coordinator (§4.7): one mailbox-owned
// LotState, Fixed/Martingale stake policy, and atomic stop-condition
// evaluation. Grounded on the teacher's internal/risk.RiskManager (mutex-
// guarded running totals gating a request) and internal/circuit.Breaker
// (ladder/step state machine with a trip condition), generalized to the
// Martingale ladder and win/profit targets this spec requires.
package lot

import (
	"sync"

	"options-relay/internal/events"
)

// Policy selects how requestStake computes the next stake (§4.7).
type Policy string

const (
	PolicyFixed      Policy = "Fixed"
	PolicyMartingale Policy = "Martingale"
)

// Config seeds a fresh LotState on start (§4.7, spec.md §6.1 START_AUTO_TRADE).
type Config struct {
	Policy       Policy
	Ladder       []float64
	InitialStake float64
	TargetProfit float64
	TargetWin    int
}

// State is a read-only snapshot of the coordinator's internals, published
// by value on every state-changing operation (§3.3: "snapshots are
// published by value").
type State struct {
	LotActive      bool
	GrandProfit    float64
	WinCount       int
	LossCount      int
	MartingaleStep int
	TargetProfit   float64
	TargetWin      int
	CurrentStake   float64
	Policy         Policy
}

// Coordinator exclusively owns LotState (§3.3). All access is through its
// exported methods, each of which takes the single internal mutex for the
// duration of one logical operation — this is the "single mailbox"
// linearization point required by §5 ("stake requests and results are
// processed in arrival order... atomically between mailbox reads"), done
// with a mutex instead of an actual channel-backed mailbox because every
// caller already runs on its own goroutine (per-asset workers) and a
// mutex gives the same atomicity with less machinery than routing every
// call through an additional goroutine.
type Coordinator struct {
	mu     sync.Mutex
	cfg    Config
	active bool

	grandProfit    float64
	winCount       int
	lossCount      int
	martingaleStep int

	bus *events.Bus
}

// New constructs a Coordinator wired to the shared broadcast bus for
// lot_status publication (§6.2).
func New(bus *events.Bus) *Coordinator {
	return &Coordinator{bus: bus}
}

// Start resets all counters and activates the lot (§4.7 start(config)).
func (c *Coordinator) Start(cfg Config) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.active = true
	c.grandProfit = 0
	c.winCount = 0
	c.lossCount = 0
	c.martingaleStep = 0
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	return snap
}

// Stop deactivates the lot; subsequent RequestStake calls return Denied
// (§4.7 stop()).
func (c *Coordinator) Stop() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	return snap
}

// RequestStake implements §4.7's requestStake(): if the stop condition is
// already met, deactivates and returns (0, false). Otherwise returns the
// next stake for the configured policy.
func (c *Coordinator) RequestStake() (amount float64, granted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return 0, false
	}
	if c.stopConditionLocked() {
		c.active = false
		c.publishLocked(c.snapshotLocked())
		return 0, false
	}

	switch c.cfg.Policy {
	case PolicyMartingale:
		step := c.martingaleStep
		if n := len(c.cfg.Ladder); n > 0 && step >= n {
			step = n - 1
		}
		multiplier := 1.0
		if step >= 0 && step < len(c.cfg.Ladder) {
			multiplier = c.cfg.Ladder[step]
		}
		return c.cfg.InitialStake * multiplier, true
	default:
		return c.cfg.InitialStake, true
	}
}

// OnResult implements §4.7's onResult(profit): updates grandProfit and
// win/loss counters, resets or advances martingaleStep, broadcasts the
// updated lot_status, and re-checks the stop condition.
func (c *Coordinator) OnResult(profit float64) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.grandProfit += profit
	if profit >= 0 {
		c.winCount++
		c.martingaleStep = 0
	} else {
		c.lossCount++
		if n := len(c.cfg.Ladder); n > 0 && c.martingaleStep < n-1 {
			c.martingaleStep++
		}
	}

	if c.active && c.stopConditionLocked() {
		c.active = false
	}

	snap := c.snapshotLocked()
	c.publishLocked(snap)
	return snap
}

// UpdateParams applies a live UPDATE_PARAMS command (§6.1): adjusts the
// stop-condition targets of a running lot without resetting its counters.
// Zero values are treated as "leave unchanged".
func (c *Coordinator) UpdateParams(targetProfit float64, targetWin int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if targetProfit > 0 {
		c.cfg.TargetProfit = targetProfit
	}
	if targetWin > 0 {
		c.cfg.TargetWin = targetWin
	}
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	return snap
}

// Snapshot returns the current state without mutating anything.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) stopConditionLocked() bool {
	if c.cfg.TargetProfit > 0 && c.grandProfit >= c.cfg.TargetProfit {
		return true
	}
	if c.cfg.TargetWin > 0 && c.winCount >= c.cfg.TargetWin {
		return true
	}
	return false
}

func (c *Coordinator) snapshotLocked() State {
	stake := c.cfg.InitialStake
	if c.cfg.Policy == PolicyMartingale {
		step := c.martingaleStep
		if n := len(c.cfg.Ladder); n > 0 {
			if step >= n {
				step = n - 1
			}
			stake = c.cfg.InitialStake * c.cfg.Ladder[step]
		}
	}
	return State{
		LotActive:      c.active,
		GrandProfit:    c.grandProfit,
		WinCount:       c.winCount,
		LossCount:      c.lossCount,
		MartingaleStep: c.martingaleStep,
		TargetProfit:   c.cfg.TargetProfit,
		TargetWin:      c.cfg.TargetWin,
		CurrentStake:   stake,
		Policy:         c.cfg.Policy,
	}
}

func (c *Coordinator) publishLocked(s State) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{Type: events.TypeLotStatus, Data: s})
}
