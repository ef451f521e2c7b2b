// Package events is the broadcast channel's pub/sub backbone (§4.8, §6.2):
// a multi-producer/multi-subscriber bus that the Relay Core drains to fan
// messages out to every connected client, plus a direct-subscribe escape
// hatch for components (lifecycle, lot) that want to react to each other's
// events in-process rather than round-tripping through a client.
package events

import "sync"

// Type discriminates broadcast messages per §6.2.
type Type string

const (
	TypeServerTime  Type = "server_time"
	TypeBalance     Type = "balance"
	TypeEMAData     Type = "ema_data"
	TypeAnalysis    Type = "analysis_data"
	TypeTradeOpened Type = "trade_opened"
	TypeTradeUpdate Type = "trade_update"
	TypeTradeResult Type = "trade_result"
	TypeLotStatus   Type = "lot_status"
	TypeCandle      Type = "candle"

	TypeUpstreamWarning Type = "upstream_warning"
	TypeUpstreamFatal   Type = "upstream_fatal"
	TypeTradeError      Type = "trade_error"
)

// Event is one broadcast message. Symbol is set for per-asset message types
// (ema_data, analysis_data, candle, trade_*) and empty for process-wide ones
// (lot_status, server_time).
type Event struct {
	Type   Type        `json:"type"`
	Symbol string      `json:"symbol,omitempty"`
	Data   interface{} `json:"data"`
}

// Subscriber receives every event published after it subscribes.
type Subscriber func(Event)

// Bus is a lock-free-reader MPMC fan-out: Publish takes an RLock so
// concurrent publishers never block each other, and each subscriber runs in
// its own goroutine so a slow subscriber can't stall publication (the
// client-facing backpressure point is the per-connection mailbox in
// internal/relay, not this bus).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Subscriber
	allSubs     []Subscriber
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Subscriber)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], s)
}

// SubscribeAll registers a handler invoked for every published event,
// regardless of type — used by the Relay Core to drain the bus into client
// mailboxes.
func (b *Bus) SubscribeAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, s)
}

// Publish fans the event out to type-specific and all-event subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers[e.Type] {
		go s(e)
	}
	for _, s := range b.allSubs {
		go s(e)
	}
}
