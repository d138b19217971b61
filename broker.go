package cansil

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// DTCAlert is the JSON body published on <prefix>/alerts/dtc/<code>.
type DTCAlert struct {
	DTC         uint16    `json:"dtc"`
	Status      uint8     `json:"status"`
	ECUSource   uint8     `json:"ecu_source"`
	Occurrence  uint8     `json:"occurrence"`
	FreezeFrame [3]uint8  `json:"freeze_frame"`
	Timestamp   time.Time `json:"ts"`
}

// ResetEvent is the JSON body published on <prefix>/command/reset.
type ResetEvent struct {
	Timestamp time.Time `json:"ts"`
}

// LockState is the JSON body published on <prefix>/control/lock.
type LockState struct {
	Holder string `json:"holder"`
	Held   bool   `json:"held"`
}

// Broker wraps a paho MQTT client with the topic layout of spec §6. It
// satisfies DTCPublisher (plant.go), ResetPublisher (faultinjector.go),
// and LockPublisher (lock.go).
type Broker struct {
	client mqtt.Client
	prefix string

	mu       sync.Mutex
	msgCount int64
	log      *log.Entry
}

// NewBroker dials host:port and returns a connected Broker publishing
// under the given topic prefix (e.g. "cansil").
func NewBroker(host string, port int, prefix, clientID string) (*Broker, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	b := &Broker{prefix: prefix, log: log.WithField("component", "broker")}
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	b.client = client
	return b, nil
}

func (b *Broker) topic(parts ...string) string {
	t := b.prefix
	for _, p := range parts {
		t += "/" + p
	}
	return t
}

func (b *Broker) publish(topic string, qos byte, retained bool, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.WithError(err).Debug("marshal failed, dropping publish")
		return
	}
	token := b.client.Publish(topic, qos, retained, data)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		b.log.WithError(token.Error()).WithField("topic", topic).Debug("publish failed")
	}
}

// PublishSignal republishes a decoded CAN signal as a retained string
// value on <prefix>/can/<MessageName>/<SignalName>, and bumps the
// messages-per-second telemetry counter.
func (b *Broker) PublishSignal(messageName, signalName, value string) {
	b.mu.Lock()
	b.msgCount++
	b.mu.Unlock()
	b.client.Publish(b.topic("can", messageName, signalName), 0, true, value)
}

// PublishRate publishes the can_msgs_per_sec value supplied by the caller
// as a retained string; it does not compute the rate itself.
func (b *Broker) PublishRate(perSecond int64) {
	b.client.Publish(b.topic("telemetry", "stats", "can_msgs_per_sec"), 0, true, fmt.Sprintf("%d", perSecond))
}

// PublishDTC implements DTCPublisher.
func (b *Broker) PublishDTC(dtc DTC) {
	alert := DTCAlert{
		DTC: dtc.Code, Status: dtc.Status, ECUSource: dtc.ECUSource,
		Occurrence: dtc.OccurrenceCount, FreezeFrame: dtc.FreezeFrame, Timestamp: time.Now(),
	}
	b.publish(b.topic("alerts", "dtc", fmt.Sprintf("%d", dtc.Code)), 1, false, alert)
}

// AnomalyScore is the JSON body published on <prefix>/anomaly/score.
type AnomalyScore struct {
	Score     float64            `json:"score"`
	Raw       float64            `json:"raw"`
	Timestamp time.Time          `json:"ts"`
	Features  map[string]float64 `json:"features"`
}

// anomalyScore maps a raw feature-pipeline output to the published score.
// The mapping is an opaque calibration per spec §9's open question;
// callers supply raw already in that scale.
func anomalyScore(raw float64) float64 {
	return 0.15 - raw/0.30
}

// PublishAnomaly publishes a feature-vector anomaly score.
func (b *Broker) PublishAnomaly(raw float64, features map[string]float64) {
	score := AnomalyScore{Score: anomalyScore(raw), Raw: raw, Timestamp: time.Now(), Features: features}
	b.publish(b.topic("anomaly", "score"), 0, false, score)
}

// PublishReset implements ResetPublisher.
func (b *Broker) PublishReset() {
	b.publish(b.topic("command", "reset"), 1, false, ResetEvent{Timestamp: time.Now()})
}

// PublishLockState implements LockPublisher.
func (b *Broker) PublishLockState(holder string, held bool) {
	b.publish(b.topic("control", "lock"), 0, true, LockState{Holder: holder, Held: held})
}

// Subscribe registers fn against a topic filter (supports MQTT wildcards
// +/#), used by the Verdict Checker's broker monitor.
func (b *Broker) Subscribe(filter string, fn func(topic string, payload []byte)) error {
	token := b.client.Subscribe(filter, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Close disconnects the client, waiting up to 250ms for in-flight
// publishes to flush.
func (b *Broker) Close() {
	b.client.Disconnect(250)
}
