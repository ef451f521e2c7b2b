package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"options-relay/internal/market"
)

// Config configures one Upstream Session.
type Config struct {
	URL              string
	AppID            string
	ConnectTimeout   time.Duration
	AuthorizeTimeout time.Duration
	HistoryTimeout   time.Duration
}

// reconnectBackoff is the fixed exponential schedule from §5: 1s, 2s, 4s,
// after which the session gives up and reports fatal.
var reconnectBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// CandleHandler is invoked for every normalized live candle update on a
// subscribed asset.
type CandleHandler func(asset string, c market.Candle)

// FatalHandler is invoked once a session gives up after exhausting the
// reconnect backoff schedule or hits an unrecoverable auth failure.
type FatalHandler func(err error)

// WarningHandler is invoked on a transient upstream error (§7): each failed
// dial attempt inside Connect, and a read error in the read loop. After a
// read error the read loop exits and the connection is not redialed.
type WarningHandler func(err error)

// Session is one Upstream Session (§4.4): it owns its own WebSocket
// connection and state machine, and is driven exclusively by its owning
// Per-Asset Worker — no other task touches it concurrently except through
// its exported methods, which are the session's message-passing surface.
type Session struct {
	cfg       Config
	sessionID string
	log       zerolog.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	nextReqID int64
	pending   map[int64]chan json.RawMessage

	candleHandler  CandleHandler
	fatalHandler   FatalHandler
	warningHandler WarningHandler

	subByID      map[string]string // asset -> subscription target (forget key)
	contractSubs map[int64]chan ContractUpdate

	writeMu sync.Mutex

	closed atomic.Bool
}

// NewSession constructs an idle session; call Connect to open the socket.
// sessionID is a fresh UUID used only to correlate this session's log lines
// across its Connect/reconnect lifetime — it never goes on the wire.
func NewSession(cfg Config, log zerolog.Logger) *Session {
	sessionID := uuid.New().String()
	return &Session{
		cfg:          cfg,
		sessionID:    sessionID,
		log:          log.With().Str("component", "broker").Str("session_id", sessionID).Logger(),
		state:        StateIdle,
		pending:      make(map[int64]chan json.RawMessage),
		subByID:      make(map[string]string),
		contractSubs: make(map[int64]chan ContractUpdate),
	}
}

// SessionID returns this session's correlation id.
func (s *Session) SessionID() string { return s.sessionID }

// OnCandle registers the callback invoked for normalized live candles.
func (s *Session) OnCandle(h CandleHandler) { s.candleHandler = h }

// OnFatal registers the callback invoked when the session gives up.
func (s *Session) OnFatal(h FatalHandler) { s.fatalHandler = h }

// OnWarning registers the callback invoked on a recovered transient error.
func (s *Session) OnWarning(h WarningHandler) { s.warningHandler = h }

// State returns the session's current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect opens the WebSocket connection and starts the read loop. It
// retries internally per the reconnect backoff schedule (§5); it only
// returns an error (*UpstreamConnectError) once every attempt failed.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	var lastErr error
	for attempt := 0; attempt <= len(reconnectBackoff); attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cfg.URL, nil)
		cancel()
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			s.setState(StateAuthenticated) // pre-auth socket open; caller must Authorize next
			go s.readLoop()
			return nil
		}

		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("upstream connect failed")
		if s.warningHandler != nil {
			s.warningHandler(fmt.Errorf("broker: connect attempt %d: %w", attempt+1, err))
		}
		if attempt < len(reconnectBackoff) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectBackoff[attempt]):
			}
		}
	}

	s.setState(StateClosed)
	err := &UpstreamConnectError{URL: s.cfg.URL, Err: lastErr}
	if s.fatalHandler != nil {
		s.fatalHandler(err)
	}
	return err
}

// Authorize sends the authorize envelope and awaits the reply (§4.4).
func (s *Session) Authorize(ctx context.Context, token string) (balance float64, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AuthorizeTimeout)
	defer cancel()

	reqID := s.issueReqID()
	raw, err := s.roundTrip(ctx, reqID, authorizeRequest{Authorize: token, ReqID: reqID})
	if err != nil {
		return 0, err
	}

	var resp authorizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, &UpstreamParseError{Context: "authorize response", Err: err}
	}
	if resp.Error != nil {
		authErr := &AuthError{Reason: resp.Error.Message}
		s.setState(StateClosed)
		if s.fatalHandler != nil {
			s.fatalHandler(authErr)
		}
		return 0, authErr
	}

	s.setState(StateAuthenticated)
	return resp.Authorize.Balance, nil
}

// FetchHistory sends a ticks_history request and returns the normalized,
// ascending-by-time candle history (§4.4).
func (s *Session) FetchHistory(ctx context.Context, asset string, granularity, count int) ([]market.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HistoryTimeout)
	defer cancel()

	reqID := s.issueReqID()
	req := historyRequest{
		TicksHistory: asset,
		Style:        "candles",
		Granularity:  granularity,
		Count:        count,
		End:          "latest",
		ReqID:        reqID,
	}
	raw, err := s.roundTrip(ctx, reqID, req)
	if err != nil {
		return nil, err
	}

	var resp historyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &UpstreamParseError{Context: "history response", Err: err}
	}
	if resp.Error != nil {
		return nil, errMsg(resp.Error.Code, resp.Error.Message)
	}

	candles := candlesFromHistory(resp.Candles)
	sortCandlesAscending(candles)
	return candles, nil
}

// SubscribeCandles subscribes to live candle updates for asset (§4.4). Live
// updates are delivered to the registered CandleHandler from the read loop;
// cancel via Unsubscribe. ctx is not observed.
func (s *Session) SubscribeCandles(ctx context.Context, asset string, granularity int) error {
	reqID := s.issueReqID()
	req := subscribeRequest{
		TicksHistory: asset,
		Style:        "candles",
		Granularity:  granularity,
		Subscribe:    1,
		ReqID:        reqID,
	}
	if err := s.send(req); err != nil {
		return err
	}
	s.mu.Lock()
	s.subByID[asset] = asset
	s.mu.Unlock()
	s.setState(StateStreaming)
	return nil
}

// Unsubscribe cancels a candle subscription for asset (§5 cancellation:
// "cancel its upstream subscription").
func (s *Session) Unsubscribe(asset string) error {
	s.mu.Lock()
	_, subscribed := s.subByID[asset]
	delete(s.subByID, asset)
	s.mu.Unlock()
	if !subscribed {
		return nil
	}
	return s.send(forgetRequest{Forget: asset, ReqID: s.issueReqID()})
}

// Buy sends a proposal followed by a buy request and returns the opened
// contract id and buy price (§4.4).
func (s *Session) Buy(ctx context.Context, asset, contractType string, stake float64, duration int, durationUnit string) (contractID int64, buyPrice float64, err error) {
	propReqID := s.issueReqID()
	propReq := proposalRequest{
		Proposal:     1,
		Amount:       stake,
		Basis:        "stake",
		ContractType: contractType,
		Currency:     "USD",
		Duration:     duration,
		DurationUnit: durationUnit,
		Symbol:       asset,
		ReqID:        propReqID,
	}
	raw, err := s.roundTrip(ctx, propReqID, propReq)
	if err != nil {
		return 0, 0, err
	}

	var propResp proposalResponse
	if err := json.Unmarshal(raw, &propResp); err != nil {
		return 0, 0, &UpstreamParseError{Context: "proposal response", Err: err}
	}
	if propResp.Error != nil {
		return 0, 0, fmt.Errorf("broker: proposal rejected: %s", propResp.Error.Message)
	}

	buyReqID := s.issueReqID()
	buyReq := buyRequest{Buy: propResp.Proposal.ID, Price: propResp.Proposal.AskPrice, ReqID: buyReqID}
	raw, err = s.roundTrip(ctx, buyReqID, buyReq)
	if err != nil {
		return 0, 0, err
	}

	var resp buyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, 0, &UpstreamParseError{Context: "buy response", Err: err}
	}
	if resp.Error != nil {
		return 0, 0, fmt.Errorf("broker: buy rejected: %s", resp.Error.Message)
	}

	return resp.Buy.ContractID, resp.Buy.BuyPrice, nil
}

// Sell force-sells an open contract (§4.4).
func (s *Session) Sell(ctx context.Context, contractID int64) (SellAck, error) {
	reqID := s.issueReqID()
	raw, err := s.roundTrip(ctx, reqID, sellRequest{Sell: contractID, Price: 0, ReqID: reqID})
	if err != nil {
		return SellAck{}, err
	}

	var resp sellResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return SellAck{}, &UpstreamParseError{Context: "sell response", Err: err}
	}
	if resp.Error != nil {
		return SellAck{}, fmt.Errorf("broker: sell rejected: %s", resp.Error.Message)
	}
	return SellAck{ContractID: contractID, SoldFor: resp.Sell.SoldFor}, nil
}

// PollContract subscribes to updates for an open contract and returns a
// channel that yields a ContractUpdate for every push until a terminal
// update (is_sold or is_expired), at which point the channel is closed
// (§4.4 pollContract).
func (s *Session) PollContract(ctx context.Context, contractID int64) (<-chan ContractUpdate, error) {
	ch := make(chan ContractUpdate, 8)
	s.mu.Lock()
	s.contractSubs[contractID] = ch
	s.mu.Unlock()

	reqID := s.issueReqID()
	req := struct {
		ProposalOpenContract int   `json:"proposal_open_contract"`
		ContractID           int64 `json:"contract_id"`
		Subscribe            int   `json:"subscribe"`
		ReqID                int64 `json:"req_id"`
	}{ProposalOpenContract: 1, ContractID: contractID, Subscribe: 1, ReqID: reqID}

	if err := s.send(req); err != nil {
		s.mu.Lock()
		delete(s.contractSubs, contractID)
		s.mu.Unlock()
		close(ch)
		return nil, err
	}
	return ch, nil
}

// Close transitions the session to Closing then Closed and releases the
// socket (§5 cancellation).
func (s *Session) Close() error {
	s.setState(StateClosing)
	s.closed.Store(true)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	s.setState(StateClosed)
	return err
}

func (s *Session) issueReqID() int64 {
	return atomic.AddInt64(&s.nextReqID, 1)
}

func (s *Session) send(v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("broker: send on unconnected session")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// roundTrip registers a pending reply channel for reqID, sends v, and waits
// for the correlated reply or ctx cancellation (§4.4 req_id correlation).
func (s *Session) roundTrip(ctx context.Context, reqID int64, v any) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	s.mu.Lock()
	s.pending[reqID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
	}()

	if err := s.send(v); err != nil {
		return nil, err
	}

	select {
	case raw := <-ch:
		return raw, nil
	case <-ctx.Done():
		return nil, &RequestTimeoutError{ReqID: reqID, What: "roundtrip"}
	}
}

// readLoop is the session's single reader task: it demultiplexes replies
// (by req_id) from subscription pushes (ohlc ticks, contract updates).
func (s *Session) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil || s.closed.Load() {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.log.Warn().Err(err).Msg("upstream read error")
			if s.warningHandler != nil {
				s.warningHandler(&UpstreamParseError{Context: "read", Err: err})
			}
			return
		}

		s.handleMessage(message)
	}
}

func (s *Session) handleMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse envelope")
		return
	}

	if env.ReqID != 0 {
		s.mu.Lock()
		ch, ok := s.pending[env.ReqID]
		s.mu.Unlock()
		if ok {
			ch <- json.RawMessage(message)
			return
		}
	}

	var tick ohlcTick
	if err := json.Unmarshal(message, &tick); err == nil && tick.OHLC != nil {
		if s.candleHandler != nil {
			s.candleHandler(tick.OHLC.Symbol, candleFromOHLC(tick.OHLC))
		}
		return
	}

	var cu contractUpdate
	if err := json.Unmarshal(message, &cu); err == nil && cu.ProposalOpenContract != nil {
		poc := cu.ProposalOpenContract
		s.mu.Lock()
		ch, ok := s.contractSubs[poc.ContractID]
		terminal := poc.IsSold != 0 || poc.IsExpired != 0
		if ok && terminal {
			delete(s.contractSubs, poc.ContractID)
		}
		s.mu.Unlock()
		if ok {
			ch <- ContractUpdate{
				ContractID: poc.ContractID,
				Profit:     poc.Profit,
				IsSold:     poc.IsSold != 0,
				IsExpired:  poc.IsExpired != 0,
				DateExpiry: poc.DateExpiry,
			}
			if terminal {
				close(ch)
			}
		}
	}
}

func sortCandlesAscending(candles []market.Candle) {
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
}
