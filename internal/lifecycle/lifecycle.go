// Package lifecycle implements the Trade Lifecycle Manager (§4.6): tracks
// every open Contract from buy to terminal resolution, maintains monotonic
// min/max profit, and times out contracts that never receive a terminal
// update within 30s of expiry. Grounded on internal/orders.PositionTracker
// (mutex-guarded in-memory map keyed by an id, zerolog component logger)
// generalized from a fill-to-close position to a buy-to-resolve option
// contract, and internal/settlement's snapshot-then-aggregate shape for
// the win/loss resolution record handed to the Lot Coordinator.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-relay/internal/events"
)

// Result is the terminal outcome of a contract (§4.6).
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

// Contract mirrors §3.1's Contract entity.
type Contract struct {
	ContractID  int64
	Asset       string
	TradeType   string // Call | Put
	Stake       float64
	EntrySpot   float64
	CurrentSpot float64
	Profit      float64
	MinProfit   float64
	MaxProfit   float64
	DateStart   int64
	DateExpiry  int64
	IsSold      bool
	IsExpired   bool
}

// Resolution is handed to OnResolved's caller once a contract closes.
type Resolution struct {
	Contract Contract
	Result   Result
}

// timeoutGrace is how long past DateExpiry an unresolved contract is given
// before the manager forces a loss (§5 Timeouts: "expiry + 30s").
const timeoutGrace = 30 * time.Second

// ResolvedHandler is invoked exactly once per contract, on whichever comes
// first: a terminal upstream update or the 30s timeout.
type ResolvedHandler func(Resolution)

// ContractLocker optionally enforces "no two open contracts may share the
// same contractId" (§4.3) across processes via an external lock, in
// addition to the in-process guarantee this Manager's own map keys already
// give. Wired to internal/cache.Service in production; nil by default, in
// which case the in-process map is the only enforcement, matching the
// teacher's own single-process PositionTracker.
type ContractLocker interface {
	LockContract(ctx context.Context, contractID int64) error
	ReleaseContract(ctx context.Context, contractID int64) error
}

const lockTimeout = 3 * time.Second

// Manager owns every open Contract exclusively; callers never mutate a
// Contract directly, only through Open/Update/timeout.
type Manager struct {
	mu         sync.Mutex
	open       map[int64]*trackedContract
	log        zerolog.Logger
	bus        *events.Bus
	onResolved ResolvedHandler
	now        func() time.Time
	locker     ContractLocker
}

type trackedContract struct {
	contract Contract
	timer    *time.Timer
	traceID  string
}

// New constructs a Manager. onResolved is typically the Lot Coordinator's
// OnResult plus whatever per-asset worker bookkeeping follows a close.
func New(bus *events.Bus, log zerolog.Logger, onResolved ResolvedHandler) *Manager {
	return &Manager{
		open:       make(map[int64]*trackedContract),
		log:        log.With().Str("component", "lifecycle").Logger(),
		bus:        bus,
		onResolved: onResolved,
		now:        time.Now,
	}
}

// SetLocker wires an external ContractLocker, called from main.go once
// internal/cache.Service is constructed. Calling it after Open has already
// been used is safe but only affects contracts opened afterward.
func (m *Manager) SetLocker(l ContractLocker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locker = l
}

// Open registers a newly bought contract and arms its expiry+30s timeout.
func (m *Manager) Open(c Contract) {
	c.MinProfit = c.Profit
	c.MaxProfit = c.Profit

	m.mu.Lock()
	entry := &trackedContract{contract: c, traceID: uuid.New().String()}
	m.open[c.ContractID] = entry
	m.armTimeoutLocked(entry)
	locker := m.locker
	m.mu.Unlock()

	m.log.Debug().Str("trace_id", entry.traceID).Int64("contract_id", c.ContractID).Msg("contract opened")
	m.bus.Publish(events.Event{Type: events.TypeTradeOpened, Symbol: c.Asset, Data: c})

	if locker != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
			defer cancel()
			if err := locker.LockContract(ctx, c.ContractID); err != nil {
				m.log.Warn().Str("trace_id", entry.traceID).Int64("contract_id", c.ContractID).Err(err).Msg("contract dedup lock failed")
			}
		}()
	}
}

// Update applies a streamed profit push (§4.6), updating min/max profit
// monotonically and resolving the contract if the update is terminal.
func (m *Manager) Update(contractID int64, profit, currentSpot float64, isSold, isExpired bool) {
	m.mu.Lock()
	entry, ok := m.open[contractID]
	if !ok {
		m.mu.Unlock()
		return
	}

	entry.contract.Profit = profit
	entry.contract.CurrentSpot = currentSpot
	if profit > entry.contract.MaxProfit {
		entry.contract.MaxProfit = profit
	}
	if profit < entry.contract.MinProfit {
		entry.contract.MinProfit = profit
	}
	entry.contract.IsSold = isSold
	entry.contract.IsExpired = isExpired

	terminal := isSold || isExpired
	var resolved Contract
	if terminal {
		resolved = entry.contract
		delete(m.open, contractID)
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.TypeTradeUpdate, Symbol: entry.contract.Asset, Data: entry.contract})

	if terminal {
		m.resolve(resolved, resultFor(resolved.Profit))
	}
}

// armTimeoutLocked schedules the 30s-past-expiry forced loss. Caller holds m.mu.
func (m *Manager) armTimeoutLocked(entry *trackedContract) {
	deadline := time.Unix(entry.contract.DateExpiry, 0).Add(timeoutGrace)
	delay := deadline.Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	entry.timer = time.AfterFunc(delay, func() { m.timeout(entry.contract.ContractID) })
}

func (m *Manager) timeout(contractID int64) {
	m.mu.Lock()
	entry, ok := m.open[contractID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.open, contractID)
	m.mu.Unlock()

	m.log.Warn().Str("trace_id", entry.traceID).Int64("contract_id", contractID).Msg("contract timed out without terminal update, forcing loss")
	m.resolve(entry.contract, ResultLoss)
}

func (m *Manager) resolve(c Contract, result Result) {
	m.bus.Publish(events.Event{
		Type:   events.TypeTradeResult,
		Symbol: c.Asset,
		Data: map[string]interface{}{
			"contract_id": c.ContractID,
			"status":      result,
			"profit":      c.Profit,
		},
	})
	if m.onResolved != nil {
		m.onResolved(Resolution{Contract: c, Result: result})
	}

	m.mu.Lock()
	locker := m.locker
	m.mu.Unlock()
	if locker != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
			defer cancel()
			if err := locker.ReleaseContract(ctx, c.ContractID); err != nil {
				m.log.Warn().Int64("contract_id", c.ContractID).Err(err).Msg("contract dedup lock release failed")
			}
		}()
	}
}

// resultFor implements §4.6: "win if profit >= 0, else loss".
func resultFor(profit float64) Result {
	if profit >= 0 {
		return ResultWin
	}
	return ResultLoss
}

// OpenCount reports how many contracts are currently tracked, used by
// workers deciding whether a SELL command targets a live contract.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Get returns a snapshot of one tracked contract.
func (m *Manager) Get(contractID int64) (Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.open[contractID]
	if !ok {
		return Contract{}, false
	}
	return entry.contract, true
}
