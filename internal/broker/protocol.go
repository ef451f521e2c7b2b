package broker

import (
	"fmt"

	"options-relay/internal/market"
)

// envelope is the generic shape used to peek at req_id/msg_type before
// decoding the full payload, mirroring the teacher's two-pass decode in
// UserDataStream.handleMessage (peek EventType, then unmarshal the typed
// struct).
type envelope struct {
	ReqID   int64  `json:"req_id,omitempty"`
	MsgType string `json:"msg_type,omitempty"`
}

// authorizeRequest/authorizeResponse implement §4.4's authorize(token).
type authorizeRequest struct {
	Authorize string `json:"authorize"`
	ReqID     int64  `json:"req_id"`
}

type authorizeResponse struct {
	ReqID     int64 `json:"req_id"`
	Authorize *struct {
		Balance  float64 `json:"balance"`
		LoginID  string  `json:"loginid"`
	} `json:"authorize,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// historyRequest/historyResponse implement §4.4's fetchHistory.
type historyRequest struct {
	TicksHistory string `json:"ticks_history"`
	Style        string `json:"style"`
	Granularity  int    `json:"granularity"`
	Count        int    `json:"count"`
	End          string `json:"end"`
	ReqID        int64  `json:"req_id"`
}

type historyResponse struct {
	ReqID   int64 `json:"req_id"`
	Candles []wireCandle `json:"candles,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// wireCandle is the history-array candle shape.
type wireCandle struct {
	Epoch int64   `json:"epoch"`
	Open  float64 `json:"open,string"`
	High  float64 `json:"high,string"`
	Low   float64 `json:"low,string"`
	Close float64 `json:"close,string"`
}

// wireOHLC is the live streaming candle shape (§6.4: "OHLC messages have
// fields open, high, low, close, epoch, symbol").
type wireOHLC struct {
	Symbol string  `json:"symbol"`
	Epoch  int64   `json:"epoch"`
	Open   float64 `json:"open,string"`
	High   float64 `json:"high,string"`
	Low    float64 `json:"low,string"`
	Close  float64 `json:"close,string"`
	ID     string  `json:"id"`
}

type ohlcTick struct {
	OHLC           *wireOHLC `json:"ohlc,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
}

// subscribeRequest implements §4.4's subscribeCandles.
type subscribeRequest struct {
	TicksHistory string `json:"ticks_history"`
	Style        string `json:"style"`
	Granularity  int    `json:"granularity"`
	Subscribe    int    `json:"subscribe"`
	ReqID        int64  `json:"req_id"`
}

// forgetRequest cancels a subscription.
type forgetRequest struct {
	Forget string `json:"forget"`
	ReqID  int64  `json:"req_id"`
}

// proposalRequest/proposalResponse and buyRequest/buyResponse implement
// §4.4's buy(asset, type, stake, duration).
type proposalRequest struct {
	Proposal     int     `json:"proposal"`
	Amount       float64 `json:"amount"`
	Basis        string  `json:"basis"`
	ContractType string  `json:"contract_type"`
	Currency     string  `json:"currency"`
	Duration     int     `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Symbol       string  `json:"symbol"`
	ReqID        int64   `json:"req_id"`
}

type proposalResponse struct {
	ReqID    int64 `json:"req_id"`
	Proposal *struct {
		ID           string  `json:"id"`
		AskPrice     float64 `json:"ask_price,string"`
	} `json:"proposal,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type buyRequest struct {
	Buy   string  `json:"buy"`
	Price float64 `json:"price"`
	ReqID int64   `json:"req_id"`
}

type buyResponse struct {
	ReqID int64 `json:"req_id"`
	Buy   *struct {
		ContractID  int64   `json:"contract_id"`
		BuyPrice    float64 `json:"buy_price"`
		TransactionID int64 `json:"transaction_id"`
		Longcode    string  `json:"longcode"`
	} `json:"buy,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sellRequest/sellResponse implement §4.4's sell(contractId).
type sellRequest struct {
	Sell  int64 `json:"sell"`
	Price int   `json:"price"`
	ReqID int64 `json:"req_id"`
}

type sellResponse struct {
	ReqID int64 `json:"req_id"`
	Sell  *struct {
		SoldFor float64 `json:"sold_for"`
	} `json:"sell,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SellAck is returned from Session.Sell.
type SellAck struct {
	ContractID int64
	SoldFor    float64
}

// contractUpdate is the subscription-based poll message for §4.4's
// pollContract.
type contractUpdate struct {
	ProposalOpenContract *struct {
		ContractID int64   `json:"contract_id"`
		Profit     float64 `json:"profit"`
		IsSold     int     `json:"is_sold"`
		IsExpired  int     `json:"is_expired"`
		DateExpiry int64   `json:"date_expiry"`
	} `json:"proposal_open_contract,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// ContractUpdate is the decoded form handed to the Trade Lifecycle Manager.
type ContractUpdate struct {
	ContractID int64
	Profit     float64
	IsSold     bool
	IsExpired  bool
	DateExpiry int64
}

// normalizeMinute truncates an epoch-seconds timestamp to its minute
// boundary (§4.4: "time coerced to minute-aligned epoch seconds").
func normalizeMinute(epoch int64) int64 {
	return epoch - (epoch % 60)
}

func (w wireCandle) toCandle() market.Candle {
	return market.Candle{
		Time:  normalizeMinute(w.Epoch),
		Open:  w.Open,
		High:  w.High,
		Low:   w.Low,
		Close: w.Close,
	}
}

func candlesFromHistory(rows []wireCandle) []market.Candle {
	out := make([]market.Candle, len(rows))
	for i, r := range rows {
		out[i] = r.toCandle()
	}
	return out
}

// candleFromOHLC normalizes a live tick into the shared Candle shape.
func candleFromOHLC(o *wireOHLC) market.Candle {
	return market.Candle{
		Time:  normalizeMinute(o.Epoch),
		Open:  o.Open,
		High:  o.High,
		Low:   o.Low,
		Close: o.Close,
	}
}

func errMsg(code, message string) error {
	if message == "" {
		return fmt.Errorf("broker: request rejected (%s)", code)
	}
	return fmt.Errorf("broker: request rejected: %s", message)
}
