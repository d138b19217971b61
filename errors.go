package cansil

import "errors"

// Error taxonomy (spec §7).
//
// Decode/parse failures and transient send errors are recoverable-local:
// callers log at debug and continue. Unknown-scenario, lock-conflict, and
// invalid-transition errors are user-reportable: the HTTP edge
// (httpapi.go) maps them to a status code. Fatal-to-component conditions
// (failure to open the CAN device at startup) are returned as plain
// errors and the caller's main() decides to exit non-zero.
var (
	// Codec errors (recoverable-local).
	ErrUnknownMessage = errors.New("cansil: unknown message name")
	ErrDecodeLength   = errors.New("cansil: payload length does not match message schema")
	ErrBuildLength    = errors.New("cansil: payload shorter than minimum E2E header size")

	// Bus errors (recoverable-local, except at startup where they are
	// fatal-to-component).
	ErrBusNotConnected = errors.New("cansil: bus is not connected")
	ErrBusClosed       = errors.New("cansil: bus is closed")
	ErrRecvTimeout     = errors.New("cansil: receive timed out")

	// Fault injector errors (user-reportable).
	ErrUnknownScenario = errors.New("cansil: unknown scenario")
	ErrLockHeld        = errors.New("cansil: control lock held by another client")
	ErrLockNotOwned    = errors.New("cansil: control lock is held by a different client")

	// Verdict checker errors.
	ErrScenarioTimeout = errors.New("cansil: scenario step timed out")
	ErrWaitTimeout     = errors.New("cansil: condition was not observed within the window")

	errNotAnIndex = errors.New("cansil: not a numeric array index")
)
