package store

import (
	"context"
	"time"
)

// TradeResolution is one row of the trade_resolutions audit table.
type TradeResolution struct {
	ContractID int64
	Asset      string
	TradeType  string
	Stake      float64
	EntrySpot  float64
	Profit     float64
	MinProfit  float64
	MaxProfit  float64
	Result     string
	DateStart  time.Time
	DateExpiry time.Time
}

// LotSession is one row of the lot_sessions audit table, written once a
// running lot deactivates (§4.7 stop()).
type LotSession struct {
	Policy       string
	GrandProfit  float64
	WinCount     int
	LossCount    int
	TargetProfit float64
	TargetWin    int
}

// Repository provides the audit log's two insert paths. There are no reads:
// this data is for reporting outside the relay process, never for
// reconstructing in-memory state.
type Repository struct {
	db *DB
}

// NewRepository wraps a connected DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// InsertTradeResolution appends one resolved contract to the audit log.
func (r *Repository) InsertTradeResolution(ctx context.Context, t TradeResolution) error {
	const query = `
		INSERT INTO trade_resolutions
			(contract_id, asset, trade_type, stake, entry_spot, profit, min_profit, max_profit, result, date_start, date_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		t.ContractID, t.Asset, t.TradeType, t.Stake, t.EntrySpot,
		t.Profit, t.MinProfit, t.MaxProfit, t.Result, t.DateStart, t.DateExpiry,
	)
	return err
}

// InsertLotSession appends a finished lot session's summary to the audit log.
func (r *Repository) InsertLotSession(ctx context.Context, s LotSession) error {
	const query = `
		INSERT INTO lot_sessions
			(policy, grand_profit, win_count, loss_count, target_profit, target_win)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		s.Policy, s.GrandProfit, s.WinCount, s.LossCount, s.TargetProfit, s.TargetWin,
	)
	return err
}
