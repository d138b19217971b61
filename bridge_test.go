package cansil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeCaptureStoresJSONAndQuotesRaw(t *testing.T) {
	b := NewBridge(&fakeBrokerSub{}, time.Hour)
	b.capture("taktflow/anomaly/score", []byte(`{"score":0.5}`))
	b.capture("taktflow/can/Motor_Status/RPM", []byte("1234 rpm"))

	assert.Equal(t, json.RawMessage(`{"score":0.5}`), b.snapshot["taktflow/anomaly/score"])
	assert.Equal(t, json.RawMessage(`"1234 rpm"`), b.snapshot["taktflow/can/Motor_Status/RPM"])
}

func TestBridgeStartSubscribesToWildcard(t *testing.T) {
	sub := &fakeBrokerSub{}
	b := NewBridge(sub, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))
	require.NotNil(t, sub.fn)

	sub.fn("taktflow/x", []byte(`{"v":1}`))
	assert.Equal(t, json.RawMessage(`{"v":1}`), b.snapshot["taktflow/x"])
}

func TestBridgeBroadcastSendsSnapshotToClients(t *testing.T) {
	b := NewBridge(&fakeBrokerSub{}, time.Hour)
	b.capture("taktflow/x", []byte(`{"v":1}`))

	client := &wsClient{send: make(chan []byte, 1)}
	b.clients[client] = struct{}{}

	b.broadcast()

	select {
	case msg := <-client.send:
		var out struct {
			Topics map[string]json.RawMessage `json:"topics"`
			Stamp  int64                      `json:"stamp"`
		}
		require.NoError(t, json.Unmarshal(msg, &out))
		assert.Equal(t, json.RawMessage(`{"v":1}`), out.Topics["taktflow/x"])
		assert.NotZero(t, out.Stamp)
	default:
		t.Fatal("expected a snapshot on the client's send channel")
	}
}

func TestBridgeBroadcastDropsOnSlowClient(t *testing.T) {
	b := NewBridge(&fakeBrokerSub{}, time.Hour)
	client := &wsClient{send: make(chan []byte)}
	b.clients[client] = struct{}{}

	assert.NotPanics(t, func() { b.broadcast() })
}

func TestBridgeServeHTTPStreamsSnapshots(t *testing.T) {
	b := NewBridge(&fakeBrokerSub{}, 10*time.Millisecond)
	b.capture("taktflow/x", []byte(`{"v":42}`))

	srv := httptest.NewServer(b)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.broadcastLoop(ctx)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var out struct {
		Topics map[string]json.RawMessage `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(msg, &out))
	assert.Equal(t, json.RawMessage(`{"v":42}`), out.Topics["taktflow/x"])
}
