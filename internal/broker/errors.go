package broker

import "fmt"

// UpstreamConnectError wraps a WebSocket handshake failure (§4.4 connect).
type UpstreamConnectError struct {
	URL string
	Err error
}

func (e *UpstreamConnectError) Error() string {
	return fmt.Sprintf("broker: connect to %s: %v", e.URL, e.Err)
}

func (e *UpstreamConnectError) Unwrap() error { return e.Err }

// AuthError wraps a negative authorize response (§4.4 authorize); fatal,
// no reconnect is attempted.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("broker: authorization rejected: %s", e.Reason)
}

// UpstreamParseError wraps a malformed or unrecognized message from the
// upstream connection.
type UpstreamParseError struct {
	Context string
	Err     error
}

func (e *UpstreamParseError) Error() string {
	return fmt.Sprintf("broker: parse %s: %v", e.Context, e.Err)
}

func (e *UpstreamParseError) Unwrap() error { return e.Err }

// RequestTimeoutError wraps a request/response correlation that never
// received a reply within its deadline.
type RequestTimeoutError struct {
	ReqID int64
	What  string
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("broker: request %d (%s) timed out", e.ReqID, e.What)
}
