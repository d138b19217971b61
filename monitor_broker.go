package cansil

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/vectorlane/cansil/internal/ringbuffer"
)

// BrokerSubscriber is the narrow interface the broker monitor needs;
// satisfied by *Broker.
type BrokerSubscriber interface {
	Subscribe(filter string, fn func(topic string, payload []byte)) error
}

// BrokerMessage is one captured MQTT publish, decoded as a generic JSON
// object (or left nil when the payload isn't a JSON object, e.g. plain
// signal values such as "1234").
type BrokerMessage struct {
	Topic   string
	Raw     []byte
	Decoded map[string]any
}

// BrokerMonitor subscribes to every topic under a prefix and keeps a
// per-topic capture ring, mirroring CANMonitor for the mqtt_message
// verdict family.
type BrokerMonitor struct {
	sub BrokerSubscriber

	mu     sync.Mutex
	byTopic map[string]*ringbuffer.Buffer[BrokerMessage]
}

// NewBrokerMonitor creates a monitor bound to sub. Start must be called
// before any Since query.
func NewBrokerMonitor(sub BrokerSubscriber) *BrokerMonitor {
	return &BrokerMonitor{sub: sub, byTopic: make(map[string]*ringbuffer.Buffer[BrokerMessage])}
}

// Start subscribes to filter (e.g. "cansil/#") and begins capturing.
func (m *BrokerMonitor) Start(filter string) error {
	return m.sub.Subscribe(filter, m.capture)
}

func (m *BrokerMonitor) capture(topic string, payload []byte) {
	msg := BrokerMessage{Topic: topic, Raw: payload}
	var decoded map[string]any
	if json.Unmarshal(payload, &decoded) == nil {
		msg.Decoded = decoded
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.byTopic[topic]
	if !ok {
		buf = ringbuffer.New[BrokerMessage](1000, 500)
		m.byTopic[topic] = buf
	}
	buf.Append(time.Now(), msg)
}

// Reset clears all captured topics.
func (m *BrokerMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTopic = make(map[string]*ringbuffer.Buffer[BrokerMessage])
}

// Since returns every message captured on topic since the given time.
func (m *BrokerMonitor) Since(topic string, since time.Time) []ringbuffer.Entry[BrokerMessage] {
	m.mu.Lock()
	buf, ok := m.byTopic[topic]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return buf.Since(since)
}

// FieldPath navigates a dotted path (e.g. "freeze_frame.0" or
// "score") through a decoded JSON document, per the mqtt_message
// verdict's "field.path" dotted navigation.
func FieldPath(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if ok {
			cur, ok = m[p]
			if !ok {
				return nil, false
			}
			continue
		}
		arr, ok := cur.([]any)
		if !ok {
			return nil, false
		}
		idx, err := parseIndex(p)
		if err != nil || idx < 0 || idx >= len(arr) {
			return nil, false
		}
		cur = arr[idx]
	}
	return cur, true
}

func parseIndex(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotAnIndex
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
