package cansil

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// BridgeSubscriber is the narrow broker interface the Bridge needs;
// satisfied by *Broker.
type BridgeSubscriber interface {
	Subscribe(filter string, fn func(topic string, payload []byte)) error
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Bridge subscribes to every broker topic and fans the latest retained
// value per topic out to websocket clients as a periodic JSON snapshot.
// It carries no decode logic of its own: topics map straight to raw
// payload bytes, left for a telemetry consumer to interpret.
type Bridge struct {
	sub      BridgeSubscriber
	interval time.Duration

	mu       sync.Mutex
	snapshot map[string]json.RawMessage

	clientsMu sync.RWMutex
	clients   map[*wsClient]struct{}

	upgrader websocket.Upgrader
	log      *log.Entry
}

// NewBridge wires a Bridge against sub, snapshotting at the given
// interval (spec default: matched to the 1s telemetry rate-counter
// publish cadence).
func NewBridge(sub BridgeSubscriber, interval time.Duration) *Bridge {
	if interval <= 0 {
		interval = time.Second
	}
	return &Bridge{
		sub:      sub,
		interval: interval,
		snapshot: make(map[string]json.RawMessage),
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log.WithField("component", "bridge"),
	}
}

// Start subscribes to every topic under the broker's namespace and
// begins the periodic broadcast loop, until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.sub.Subscribe("#", b.capture); err != nil {
		return err
	}
	go b.broadcastLoop(ctx)
	return nil
}

func (b *Bridge) capture(topic string, payload []byte) {
	var raw json.RawMessage
	if json.Valid(payload) {
		raw = json.RawMessage(payload)
	} else {
		encoded, _ := json.Marshal(string(payload))
		raw = json.RawMessage(encoded)
	}
	b.mu.Lock()
	b.snapshot[topic] = raw
	b.mu.Unlock()
}

func (b *Bridge) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.broadcast()
		}
	}
}

func (b *Bridge) broadcast() {
	b.mu.Lock()
	snap := make(map[string]json.RawMessage, len(b.snapshot))
	for k, v := range b.snapshot {
		snap[k] = v
	}
	b.mu.Unlock()

	data, err := json.Marshal(map[string]any{
		"topics": snap,
		"stamp":  time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			b.log.Warn("slow websocket client, dropping snapshot")
		}
	}
}

// ServeHTTP upgrades to a websocket connection and streams snapshots.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 16)}
	b.clientsMu.Lock()
	b.clients[client] = struct{}{}
	b.clientsMu.Unlock()

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			b.clientsMu.Lock()
			delete(b.clients, client)
			b.clientsMu.Unlock()
			close(client.send)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
