// Package broker implements the Upstream Session (§4.4): the WebSocket
// connection to the broker, its connect/authorize/history/subscribe/trade
// operations, and the Idle->Connecting->Authenticated->Streaming->
// Closing->Closed state machine with exponential-backoff reconnection.
package broker

// State is one stage of an Upstream Session's lifecycle (§4.4).
type State string

const (
	StateIdle          State = "Idle"
	StateConnecting    State = "Connecting"
	StateAuthenticated State = "Authenticated"
	StateStreaming     State = "Streaming"
	StateClosing       State = "Closing"
	StateClosed        State = "Closed"
)
