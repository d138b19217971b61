package cansil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFaultAPI(addr string) *FaultAPI {
	inj := NewInjector(dialTestBus(addr), nil, 300*time.Second)
	return NewFaultAPI(inj)
}

func TestHandleScenarioSuccess(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18911")
	req := httptest.NewRequest(http.MethodPost, "/api/fault/scenario/normal_drive", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleScenarioUnknownReturns404(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18912")
	req := httptest.NewRequest(http.MethodPost, "/api/fault/scenario/nope", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleScenarioLockHeldReturns403(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18913")
	api.inj.AcquireLock("alice")

	body, _ := json.Marshal(controlBody{ClientID: "bob"})
	req := httptest.NewRequest(http.MethodPost, "/api/fault/scenario/normal_drive", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleListScenarios(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18914")
	req := httptest.NewRequest(http.MethodGet, "/api/fault/scenarios", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Scenarios map[string]string `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Contains(t, out.Scenarios, "normal_drive")
}

func TestHandleControlAcquireAndConflict(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18915")

	bodyA, _ := json.Marshal(controlBody{ClientID: "alice"})
	reqA := httptest.NewRequest(http.MethodPost, "/api/fault/control/acquire", bytes.NewReader(bodyA))
	wA := httptest.NewRecorder()
	api.Router().ServeHTTP(wA, reqA)
	assert.Equal(t, http.StatusOK, wA.Code)

	bodyB, _ := json.Marshal(controlBody{ClientID: "bob"})
	reqB := httptest.NewRequest(http.MethodPost, "/api/fault/control/acquire", bytes.NewReader(bodyB))
	wB := httptest.NewRecorder()
	api.Router().ServeHTTP(wB, reqB)
	assert.Equal(t, http.StatusConflict, wB.Code)
	assert.NotEmpty(t, wB.Header().Get("X-Remaining-Sec"))
}

func TestHandleControlReleaseWithoutOwnershipForbidden(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18916")
	api.inj.AcquireLock("alice")

	body, _ := json.Marshal(controlBody{ClientID: "bob"})
	req := httptest.NewRequest(http.MethodPost, "/api/fault/control/release", bytes.NewReader(body))
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleControlUnknownAction(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18917")
	req := httptest.NewRequest(http.MethodPost, "/api/fault/control/bogus", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPFaultClientTriggerScenario(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18918")
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	client := NewHTTPFaultClient(srv.URL, "verdictchecker")
	assert.NoError(t, client.TriggerScenario("normal_drive"))
	assert.NoError(t, client.Reset())
}

func TestHTTPFaultClientUnknownScenarioReturnsError(t *testing.T) {
	api := newTestFaultAPI("127.0.0.1:18919")
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	client := NewHTTPFaultClient(srv.URL, "verdictchecker")
	err := client.TriggerScenario("does_not_exist")
	assert.Error(t, err)
}
