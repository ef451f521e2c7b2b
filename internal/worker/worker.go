// Package worker implements the Per-Asset Worker (§4.5): one goroutine per
// subscribed asset that owns its candle buffer and incremental indicator
// state, drives the Analysis Generator and Status Classifier on every
// closed candle, and — when its lot is active and the classified action is
// non-Idle — requests a stake from the shared Lot Coordinator and issues a
// buy through its Upstream Session. Grounded on internal/bot.TradingBot's
// per-strategy ticker-driven evaluate-then-execute loop, generalized from a
// polling ticker to a push-driven candle stream, and on
// internal/autopilot/user_autopilot_manager.go's per-user mailbox/command
// dispatch shape for the command channel.
package worker

import (
	"context"
	"time"

	"options-relay/internal/analysis"
	"options-relay/internal/broker"
	"options-relay/internal/classifier"
	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
	"options-relay/internal/market"
)

// TradeMode gates whether a closed-candle signal is acted on (§6.1
// UPDATE_MODE: trade_mode in {idle, fix, martingale}). fix/martingale only
// distinguish which Lot Coordinator policy this session was started with;
// a worker never selects its own policy, it only gates on Idle.
type TradeMode string

const (
	ModeIdle       TradeMode = "idle"
	ModeFix        TradeMode = "fix"
	ModeMartingale TradeMode = "martingale"
)

// Command is one message on a worker's mailbox (§6.1, §4.5).
type Command struct {
	Kind       CommandKind
	TradeMode  TradeMode // UPDATE_MODE
	Duration   int       // UPDATE_PARAMS
	DurationUnit string  // UPDATE_PARAMS
	ContractID int64     // SELL
}

type CommandKind string

const (
	CmdUpdateMode   CommandKind = "UPDATE_MODE"
	CmdUpdateParams CommandKind = "UPDATE_PARAMS"
	CmdStopStreams  CommandKind = "STOP_STREAMS"
	CmdSell         CommandKind = "SELL"
)

// Config seeds a Worker at spawn time (spec.md §6.1 START_DERIV / START_AUTO_TRADE).
type Config struct {
	Asset        string
	Granularity  int
	Duration     int
	DurationUnit string
	TradeMode    TradeMode
}

// Worker exclusively owns its AssetWorkerState (§3.3): the candle buffer,
// the Generator's incremental indicator state, and lastStatusCode/mode. No
// other goroutine reads or mutates these directly; everything else learns
// about them from the analysis_data broadcast.
type Worker struct {
	cfg Config

	session    *broker.Session
	generator  *analysis.Generator
	classifier *classifier.Table
	lifecycle  *lifecycle.Manager
	lot        *lot.Coordinator
	bus        *events.Bus
	log        *logging.Logger

	buffer *market.Buffer
	mode   TradeMode

	candleCh chan market.Candle
	mailbox  chan Command
	done     chan struct{}

	lastStatusCode string
}

// New constructs a Worker. The caller is responsible for wiring
// session.OnCandle to the returned Worker's PushCandle before calling Run.
func New(cfg Config, session *broker.Session, gen *analysis.Generator, table *classifier.Table, lc *lifecycle.Manager, coordinator *lot.Coordinator, bus *events.Bus, log *logging.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		session:    session,
		generator:  gen,
		classifier: table,
		lifecycle:  lc,
		lot:        coordinator,
		bus:        bus,
		log:        log.WithComponent("worker").WithAsset(cfg.Asset),
		buffer:     market.NewBuffer(200),
		mode:       cfg.TradeMode,
		candleCh:   make(chan market.Candle, 32),
		mailbox:    make(chan Command, 16),
		done:       make(chan struct{}),
	}
}

// Seed primes the candle buffer and indicator recurrence state from
// historical candles fetched at subscribe time (§4.4 FetchHistory), so the
// first live tick doesn't start the Analysis Generator from a cold state.
// Every historical candle except the most recent is treated as closed; the
// most recent becomes the buffer's open tail, exactly like a live same-
// minute merge would leave it.
func (w *Worker) Seed(history []market.Candle) {
	for i, c := range history {
		if i == len(history)-1 {
			w.buffer.Push(c)
			break
		}
		w.buffer.Push(c)
		a := w.generator.Next(c)
		a, _ = w.classifier.Resolve(w.cfg.Asset, a)
		w.lastStatusCode = a.StatusCode
	}
}

// PushCandle is the broker.CandleHandler wired for this worker's asset; it
// never blocks the Upstream Session's single read loop, matching §5's
// suspension-point discipline (the session hands off and moves on).
func (w *Worker) PushCandle(c market.Candle) {
	select {
	case w.candleCh <- c:
	default:
		w.log.Warn("candle channel full, dropping tick", "time", c.Time)
	}
}

// Send enqueues a command (§4.5: "commands are processed in arrival
// order"). The mailbox is bounded: when it is full, Send blocks until the
// worker takes a command or Run has returned.
func (w *Worker) Send(cmd Command) {
	select {
	case w.mailbox <- cmd:
	case <-w.done:
	}
}

// Run is the worker's task loop (§5: cooperative suspension at each candle
// boundary and each command read). It returns once STOP_STREAMS is
// processed or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-w.mailbox:
			if !w.handleCommand(cmd) {
				return
			}
		case c := <-w.candleCh:
			w.onCandle(c)
		}
	}
}

func (w *Worker) handleCommand(cmd Command) (keepRunning bool) {
	switch cmd.Kind {
	case CmdUpdateMode:
		w.mode = cmd.TradeMode
		w.log.Info("trade mode updated", "mode", cmd.TradeMode)
	case CmdUpdateParams:
		if cmd.Duration > 0 {
			w.cfg.Duration = cmd.Duration
		}
		if cmd.DurationUnit != "" {
			w.cfg.DurationUnit = cmd.DurationUnit
		}
	case CmdStopStreams:
		if err := w.session.Unsubscribe(w.cfg.Asset); err != nil {
			w.log.Warn("unsubscribe on stop failed", "error", err)
		}
		return false
	case CmdSell:
		w.sell(cmd.ContractID)
	}
	return true
}

func (w *Worker) sell(contractID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ack, err := w.session.Sell(ctx, contractID)
	if err != nil {
		w.bus.Publish(events.Event{Type: events.TypeTradeError, Symbol: w.cfg.Asset, Data: err.Error()})
		return
	}
	w.log.Info("contract sold", "contract_id", ack.ContractID, "sold_for", ack.SoldFor)
}

// onCandle implements §4.5 steps 1-6. The Generator and Classifier only
// ever see a candle once it is closed: a same-minute merge means the
// incoming candle is still open, so the previous tail (now closed by this
// arrival) is what gets analyzed, not the partial new one.
func (w *Worker) onCandle(c market.Candle) {
	prevTail, hadPrevTail := w.buffer.Last()
	closedPrevious := w.buffer.Push(c)

	if !closedPrevious {
		return
	}
	if !hadPrevTail {
		return
	}

	a := w.generator.Next(prevTail)
	a, action := w.classifier.Resolve(w.cfg.Asset, a)
	w.lastStatusCode = a.StatusCode

	w.bus.Publish(events.Event{Type: events.TypeAnalysis, Symbol: w.cfg.Asset, Data: a})

	if w.mode == ModeIdle || action == classifier.ActionIdle {
		return
	}

	snap := w.lot.Snapshot()
	if !snap.LotActive {
		return
	}

	stake, granted := w.lot.RequestStake()
	if !granted {
		return
	}

	w.buy(action, stake)
}

func (w *Worker) buy(action classifier.Action, stake float64) {
	contractType := "CALL"
	if action == classifier.ActionPut {
		contractType = "PUT"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	contractID, buyPrice, err := w.session.Buy(ctx, w.cfg.Asset, contractType, stake, w.cfg.Duration, w.cfg.DurationUnit)
	if err != nil {
		w.bus.Publish(events.Event{Type: events.TypeTradeError, Symbol: w.cfg.Asset, Data: err.Error()})
		return
	}

	w.lifecycle.Open(lifecycle.Contract{
		ContractID: contractID,
		Asset:      w.cfg.Asset,
		TradeType:  contractType,
		Stake:      stake,
		EntrySpot:  buyPrice,
		DateStart:  time.Now().Unix(),
		DateExpiry: time.Now().Add(durationToSeconds(w.cfg.Duration, w.cfg.DurationUnit)).Unix(),
	})

	ch, err := w.session.PollContract(ctx, contractID)
	if err != nil {
		w.log.Warn("poll contract failed", "contract_id", contractID, "error", err)
		return
	}
	go w.drainContractUpdates(contractID, ch)
}

func (w *Worker) drainContractUpdates(contractID int64, ch <-chan broker.ContractUpdate) {
	for u := range ch {
		w.lifecycle.Update(u.ContractID, u.Profit, 0, u.IsSold, u.IsExpired)
	}
	_ = contractID
}

func durationToSeconds(d int, unit string) time.Duration {
	switch unit {
	case "s":
		return time.Duration(d) * time.Second
	case "m":
		return time.Duration(d) * time.Minute
	case "h":
		return time.Duration(d) * time.Hour
	case "d":
		return time.Duration(d) * 24 * time.Hour
	default:
		return time.Duration(d) * time.Minute
	}
}
