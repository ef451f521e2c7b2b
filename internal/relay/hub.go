// Package relay implements the Relay Core (§4.8): a multi-producer/
// multi-subscriber broadcast hub and a JSON command demultiplexer that sits
// between browser clients and the per-asset workers / lot coordinator.
// Grounded on internal/api/websocket.go's WSHub (register/unregister/
// broadcast channels driven by a single Run loop, per-client bounded send
// mailbox, write/read pumps with ping keepalive), generalized from a single
// global hub broadcasting marshaled events to a hub that also demultiplexes
// inbound client commands to per-asset workers and the lot coordinator.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"options-relay/internal/events"
	"options-relay/internal/logging"
)

// pingInterval and writeWait mirror the teacher's websocket keepalive
// discipline for long-lived dashboard connections.
const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	sendBuffer   = 256
)

// Client is one connected browser's send-side mailbox (§4.8: "each with a
// send-side mailbox"). A full mailbox means a slow subscriber; the hub
// closes it rather than block upstream broadcast.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	done chan struct{}
}

// Hub owns the broadcast channel and the client registry. It never blocks
// on a slow client: Broadcast is a non-blocking send per subscriber, and an
// overflowing subscriber is dropped (§4.8, §5 "bounded mailbox; on overflow,
// close that subscriber's connection, never block upstream").
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	log     *logging.Logger
}

// NewHub constructs a Hub and wires it to receive every bus event.
func NewHub(bus *events.Bus, log *logging.Logger) *Hub {
	h := &Hub{
		clients: make(map[*Client]bool),
		log:     log.WithComponent("relay"),
	}
	bus.SubscribeAll(h.broadcastEvent)
	return h
}

func (h *Hub) broadcastEvent(e events.Event) {
	payload := map[string]interface{}{"type": string(e.Type)}
	if e.Symbol != "" {
		payload["symbol"] = e.Symbol
	}
	if m, ok := e.Data.(map[string]interface{}); ok {
		for k, v := range m {
			payload[k] = v
		}
	} else if e.Data != nil {
		payload["data"] = e.Data
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("failed to marshal broadcast event", "error", err)
		return
	}
	h.Broadcast(data)
}

// Broadcast fans a raw message out to every connected client (§4.8: "forwards
// all broadcast messages to every subscriber").
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("client mailbox full, dropping subscriber")
			go h.dropClient(c)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades one HTTP connection to a WebSocket client, registers it,
// and starts its read/write pumps. Inbound frames are handed to dispatch
// (the command demultiplexer) rather than interpreted here.
func (h *Hub) Serve(conn *websocket.Conn, dispatch func([]byte)) {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
		done: make(chan struct{}),
	}
	h.register(c)

	go c.writePump()
	go c.readPump(dispatch)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump decodes inbound command frames (§6.1) and hands each one to the
// demultiplexer; it never blocks the hub on a slow or silent client.
func (c *Client) readPump(dispatch func([]byte)) {
	defer func() {
		c.hub.dropClient(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if dispatch != nil {
			dispatch(message)
		}
	}
}
