package cansil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// FaultAPI exposes the Injector over HTTP per spec §6.
type FaultAPI struct {
	inj *Injector
	log *log.Entry
}

// NewFaultAPI wires a router against inj.
func NewFaultAPI(inj *Injector) *FaultAPI {
	return &FaultAPI{inj: inj, log: log.WithField("component", "fault_api")}
}

// Router builds the gorilla/mux router for the fault-injector HTTP API.
func (a *FaultAPI) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/fault/scenario/{name}", a.handleScenario).Methods(http.MethodPost)
	r.HandleFunc("/api/fault/reset", a.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/api/fault/scenarios", a.handleListScenarios).Methods(http.MethodGet)
	r.HandleFunc("/api/fault/control/{action}", a.handleControl).Methods(http.MethodPost)
	return r
}

type controlBody struct {
	ClientID string `json:"client_id"`
}

func clientIDOf(r *http.Request) string {
	var body controlBody
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err == nil {
		_ = json.Unmarshal(data, &body)
	}
	if body.ClientID == "" {
		return r.RemoteAddr
	}
	return body.ClientID
}

func (a *FaultAPI) handleScenario(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	clientID := clientIDOf(r)

	result, err := a.inj.Run(name, clientID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"scenario": name, "result": result})
	case errors.Is(err, ErrUnknownScenario):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrLockHeld):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		a.log.WithError(err).WithField("scenario", name).Error("scenario execution failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (a *FaultAPI) handleReset(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)
	result, err := a.inj.Run("reset", clientID)
	if err != nil {
		a.log.WithError(err).Error("reset failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (a *FaultAPI) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": Scenarios()})
}

func (a *FaultAPI) handleControl(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	clientID := clientIDOf(r)

	switch action {
	case "acquire":
		remaining, ok := a.inj.AcquireLock(clientID)
		if !ok {
			w.Header().Set("X-Remaining-Sec", fmt.Sprintf("%.0f", remaining.Seconds()))
			writeJSON(w, http.StatusConflict, map[string]string{"error": "control lock held by another client"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"held": true, "ttl_sec": remaining.Seconds()})

	case "release":
		if !a.inj.ReleaseLock(clientID) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": ErrLockNotOwned.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"held": false})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown control action"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HTTPFaultClient implements FaultAPIClient (runner.go) against a running
// FaultAPI server, for the verdict checker's --fault-api-url flag.
type HTTPFaultClient struct {
	BaseURL  string
	ClientID string
	HTTP     *http.Client
}

// NewHTTPFaultClient builds a client bound to baseURL (e.g.
// "http://localhost:8091").
func NewHTTPFaultClient(baseURL, clientID string) *HTTPFaultClient {
	return &HTTPFaultClient{
		BaseURL:  baseURL,
		ClientID: clientID,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// TriggerScenario implements FaultAPIClient.
func (c *HTTPFaultClient) TriggerScenario(name string) error {
	return c.post(fmt.Sprintf("/api/fault/scenario/%s", name))
}

// Reset implements FaultAPIClient.
func (c *HTTPFaultClient) Reset() error {
	return c.post("/api/fault/reset")
}

func (c *HTTPFaultClient) post(path string) error {
	body, _ := json.Marshal(controlBody{ClientID: c.ClientID})
	resp, err := c.HTTP.Post(c.BaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cansil: fault API %s returned %d: %s", path, resp.StatusCode, string(data))
	}
	return nil
}
