// Package relay also implements the command demultiplexer half of the
// Relay Core (§4.8, §6.1): decode incoming JSON commands, fan worker
// commands out to every registered worker's bounded mailbox or hand lot
// commands to the Lot Coordinator, and own the asset-keyed worker registry (§9 Design Notes:
// "Worker discovery is a registry keyed by asset id held inside the Relay
// Core"). Grounded on internal/autopilot/user_autopilot_manager.go's
// per-user registry of running instances (spawn-on-demand, mutex-guarded
// map, stop-and-remove), generalized here from per-user to per-asset.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"options-relay/internal/analysis"
	"options-relay/internal/broker"
	"options-relay/internal/classifier"
	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
	"options-relay/internal/market"
	"options-relay/internal/worker"
)

// inboundCommand is the full union of fields across §6.1's command table;
// unused fields are simply left at their zero value for any given command.
type inboundCommand struct {
	Command      string   `json:"command"`
	Asset        string   `json:"asset"`
	Assets       []string `json:"assets"`
	TradeMode    string   `json:"trade_mode"`
	MoneyMode    string   `json:"money_mode"`
	InitialStake float64  `json:"initial_stake"`
	APIToken     string   `json:"api_token"`
	AppID        string   `json:"app_id"`
	Duration     int      `json:"duration"`
	DurationUnit string   `json:"duration_unit"`
	TargetProfit float64  `json:"target_profit"`
	TargetWin    int      `json:"target_win"`
	ContractID   int64    `json:"contract_id"`
}

// SessionFactory builds an Upstream Session for one asset; spawnWorker
// connects and authorizes it. Supplied by main.go, which knows the broker
// URL/timeouts from config.
type SessionFactory func(ctx context.Context, apiToken, appID string) (*broker.Session, error)

// Core owns the asset-keyed worker registry and the command demultiplexer.
// It never holds a reference back to any worker's internals, only its
// Send/Run surface — §9's cyclic-reference avoidance between workers and
// the coordinator.
type Core struct {
	mu      sync.Mutex
	workers map[string]registeredWorker

	hub         *Hub
	bus         *events.Bus
	lot         *lot.Coordinator
	lifecycle   *lifecycle.Manager
	classifier  *classifier.Table
	analysisCfg analysis.Config
	sessions    SessionFactory
	log         *logging.Logger
	ladder      []float64
	granularity int
	historyLen  int
}

type registeredWorker struct {
	w      *worker.Worker
	cancel context.CancelFunc
}

// NewCore wires the Relay Core to its collaborators. ladder is the default
// Martingale ladder applied when money_mode selects martingale; granularity
// and historyLen parameterize the FetchHistory/SubscribeCandles calls every
// spawned worker's session makes before going live.
func NewCore(hub *Hub, bus *events.Bus, lc *lot.Coordinator, lm *lifecycle.Manager, table *classifier.Table, analysisCfg analysis.Config, sessions SessionFactory, ladder []float64, granularity, historyLen int, log *logging.Logger) *Core {
	return &Core{
		workers:     make(map[string]registeredWorker),
		hub:         hub,
		bus:         bus,
		lot:         lc,
		lifecycle:   lm,
		classifier:  table,
		analysisCfg: analysisCfg,
		sessions:    sessions,
		ladder:      ladder,
		granularity: granularity,
		historyLen:  historyLen,
		log:         log.WithComponent("relay-core"),
	}
}

// Dispatch decodes and routes one inbound command (§6.1). Unknown or
// malformed commands are logged and ignored (§7: "Command error... log and
// ignore; do not crash the relay").
func (c *Core) Dispatch(raw []byte) {
	var cmd inboundCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.log.Warn("malformed command payload", "error", err)
		return
	}

	switch cmd.Command {
	case "START_DERIV":
		c.startLot(cmd)
		c.spawnWorker(cmd.Asset, cmd)
	case "START_AUTO_TRADE":
		c.startLot(cmd)
		for _, asset := range cmd.Assets {
			c.spawnWorker(asset, cmd)
		}
	case "UPDATE_MODE":
		c.broadcastCommand(worker.Command{Kind: worker.CmdUpdateMode, TradeMode: worker.TradeMode(cmd.TradeMode)})
	case "UPDATE_PARAMS":
		c.broadcastCommand(worker.Command{Kind: worker.CmdUpdateParams, Duration: cmd.Duration, DurationUnit: cmd.DurationUnit})
		c.lot.UpdateParams(cmd.TargetProfit, cmd.TargetWin)
	case "STOP_STREAMS":
		c.stopAll()
	case "STOP_AUTO_TRADE":
		c.lot.Stop()
	case "SELL":
		c.broadcastCommand(worker.Command{Kind: worker.CmdSell, ContractID: cmd.ContractID})
	case "SYNC_STATUS":
		c.bus.Publish(events.Event{Type: events.TypeLotStatus, Data: c.lot.Snapshot()})
	default:
		c.log.Warn("unknown command", "command", cmd.Command)
	}
}

func (c *Core) startLot(cmd inboundCommand) {
	policy := lot.PolicyFixed
	if cmd.MoneyMode == "martingale" || cmd.TradeMode == "martingale" {
		policy = lot.PolicyMartingale
	}
	c.lot.Start(lot.Config{
		Policy:       policy,
		Ladder:       c.ladder,
		InitialStake: cmd.InitialStake,
		TargetProfit: cmd.TargetProfit,
		TargetWin:    cmd.TargetWin,
	})
}

// spawnWorker builds the whole per-asset stack for one asset and registers
// it, replacing any previously running worker for the same asset.
func (c *Core) spawnWorker(asset string, cmd inboundCommand) {
	if asset == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	session, err := c.sessions(ctx, cmd.APIToken, cmd.AppID)
	if err != nil {
		c.log.Warn("session factory failed", "asset", asset, "error", err)
		cancel()
		return
	}

	if err := session.Connect(ctx); err != nil {
		c.log.Warn("upstream connect failed", "asset", asset, "error", err)
		cancel()
		return
	}
	if _, err := session.Authorize(ctx, cmd.APIToken); err != nil {
		c.bus.Publish(events.Event{Type: events.TypeUpstreamFatal, Symbol: asset, Data: err.Error()})
		cancel()
		_ = session.Close()
		return
	}

	gen, err := analysis.New(c.analysisCfg)
	if err != nil {
		c.log.Warn("analysis generator construction failed", "asset", asset, "error", err)
		cancel()
		_ = session.Close()
		return
	}

	tradeMode := worker.TradeMode(cmd.TradeMode)
	if tradeMode == "" {
		tradeMode = worker.ModeFix
	}

	w := worker.New(worker.Config{
		Asset:        asset,
		Granularity:  c.granularity,
		Duration:     cmd.Duration,
		DurationUnit: cmd.DurationUnit,
		TradeMode:    tradeMode,
	}, session, gen, c.classifier, c.lifecycle, c.lot, c.bus, c.log)

	session.OnCandle(func(_ string, candle market.Candle) { w.PushCandle(candle) })

	if history, err := session.FetchHistory(ctx, asset, c.granularity, c.historyLen); err != nil {
		c.log.Warn("history fetch failed, starting from a cold indicator state", "asset", asset, "error", err)
	} else {
		w.Seed(history)
	}

	if err := session.SubscribeCandles(ctx, asset, c.granularity); err != nil {
		c.bus.Publish(events.Event{Type: events.TypeUpstreamFatal, Symbol: asset, Data: err.Error()})
		cancel()
		_ = session.Close()
		return
	}

	c.mu.Lock()
	if existing, ok := c.workers[asset]; ok {
		existing.cancel()
	}
	c.workers[asset] = registeredWorker{w: w, cancel: cancel}
	c.mu.Unlock()

	go w.Run(ctx)
}

func (c *Core) broadcastCommand(cmd worker.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rw := range c.workers {
		rw.w.Send(cmd)
	}
}

func (c *Core) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for asset, rw := range c.workers {
		rw.w.Send(worker.Command{Kind: worker.CmdStopStreams})
		rw.cancel()
		delete(c.workers, asset)
	}
}

// WorkerCount reports how many assets currently have a running worker.
func (c *Core) WorkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workers)
}
