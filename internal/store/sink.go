package store

import (
	"context"
	"sync"
	"time"

	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
)

// writeTimeout bounds how long one audit insert may block the background
// goroutine that issues it; the trading path itself never waits on this.
const writeTimeout = 5 * time.Second

// Sink is the audit log's only consumer-facing surface: it turns a
// resolved contract or a finished lot session into one INSERT, off the
// trading path, logging (never propagating) any failure. A slow or down
// Postgres must never stall a worker or the Lot Coordinator.
type Sink struct {
	repo *Repository
	log  *logging.Logger

	mu            sync.Mutex
	lastLotActive bool
}

// NewSink wraps a Repository for async, fire-and-forget audit writes.
func NewSink(repo *Repository, log *logging.Logger) *Sink {
	return &Sink{repo: repo, log: log.WithComponent("store-sink")}
}

// RecordResolution is a lifecycle.ResolvedHandler: wire it alongside the
// Lot Coordinator's OnResult so every resolved contract is both scored and
// archived.
func (s *Sink) RecordResolution(res lifecycle.Resolution) {
	row := tradeResolutionRow(res)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.repo.InsertTradeResolution(ctx, row); err != nil {
			s.log.Warn("failed to archive trade resolution", "contract_id", row.ContractID, "error", err)
		}
	}()
}

// WireLotSessions subscribes to lot_status broadcasts and archives a
// LotSession row every time a running lot transitions to inactive (§4.7
// stop()), which is the only point a session summary is final.
func (s *Sink) WireLotSessions(bus *events.Bus) {
	bus.SubscribeAll(func(e events.Event) {
		if e.Type != events.TypeLotStatus {
			return
		}
		state, ok := e.Data.(lot.State)
		if !ok {
			return
		}

		s.mu.Lock()
		wasActive := s.lastLotActive
		s.lastLotActive = state.LotActive
		s.mu.Unlock()

		row, ok := lotSessionRow(wasActive, state)
		if !ok {
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			if err := s.repo.InsertLotSession(ctx, row); err != nil {
				s.log.Warn("failed to archive lot session", "error", err)
			}
		}()
	})
}

func tradeResolutionRow(res lifecycle.Resolution) TradeResolution {
	c := res.Contract
	return TradeResolution{
		ContractID: c.ContractID,
		Asset:      c.Asset,
		TradeType:  c.TradeType,
		Stake:      c.Stake,
		EntrySpot:  c.EntrySpot,
		Profit:     c.Profit,
		MinProfit:  c.MinProfit,
		MaxProfit:  c.MaxProfit,
		Result:     string(res.Result),
		DateStart:  time.Unix(c.DateStart, 0),
		DateExpiry: time.Unix(c.DateExpiry, 0),
	}
}

// lotSessionRow reports the session row to archive on a wasActive -> stopped
// transition, and false when this state update isn't a stop (still active,
// or was already inactive).
func lotSessionRow(wasActive bool, state lot.State) (LotSession, bool) {
	if !wasActive || state.LotActive {
		return LotSession{}, false
	}
	return LotSession{
		Policy:       string(state.Policy),
		GrandProfit:  state.GrandProfit,
		WinCount:     state.WinCount,
		LossCount:    state.LossCount,
		TargetProfit: state.TargetProfit,
		TargetWin:    state.TargetWin,
	}, true
}
