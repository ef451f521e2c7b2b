package relay

import (
	"encoding/json"
	"testing"
	"time"

	"options-relay/internal/events"
	"options-relay/internal/logging"
)

func TestHubBroadcastEventMarshalsTypeAndSymbol(t *testing.T) {
	bus := events.NewBus()
	log := logging.New(logging.Config{Level: "ERROR"})
	hub := NewHub(bus, log)

	c := &Client{send: make(chan []byte, 1), hub: hub, done: make(chan struct{})}
	hub.register(c)

	bus.Publish(events.Event{Type: events.TypeAnalysis, Symbol: "R_100", Data: map[string]interface{}{"status_code": "X"}})

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Fatal("expected a non-empty broadcast payload")
		}
		var got map[string]interface{}
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("broadcast payload is not JSON: %v", err)
		}
		if got["type"] != string(events.TypeAnalysis) || got["symbol"] != "R_100" {
			t.Fatalf("payload type/symbol = %v/%v, want %v/R_100", got["type"], got["symbol"], events.TypeAnalysis)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the registered client to receive the broadcast")
	}
}

func TestHubDropsOverflowingClient(t *testing.T) {
	bus := events.NewBus()
	log := logging.New(logging.Config{Level: "ERROR"})
	hub := NewHub(bus, log)

	c := &Client{send: make(chan []byte, 1), hub: hub, done: make(chan struct{})}
	hub.register(c)
	c.send <- []byte("fill the one slot")

	hub.Broadcast([]byte("second message"))

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected overflowing client to be dropped, clientCount=%d", hub.ClientCount())
	}
}
