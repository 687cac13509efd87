package gate

import "errors"

// Sentinel errors for gate operations.
var (
	// ErrInvalidConfig is returned by New when the configuration cannot
	// drive a gate.
	ErrInvalidConfig = errors.New("gate: invalid config")

	// ErrRequestPending is returned when a check runs while a batched
	// request is still waiting for its result.
	ErrRequestPending = errors.New("gate: request pending")

	// ErrNoPrompt is returned when a settings choice arrives while no
	// settings prompt is showing.
	ErrNoPrompt = errors.New("gate: no settings prompt showing")

	// ErrGateDone is returned when a check runs after the gate has opened
	// the main screen or shown the settings prompt.
	ErrGateDone = errors.New("gate: already decided")
)
