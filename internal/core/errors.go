// Package core defines the fundamental types and errors for AIER.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Lookup errors
	ErrAgentNotFound = errors.New("agent not found")
	ErrPostNotFound  = errors.New("post not found")

	// Configuration errors
	ErrUnknownProvider = errors.New("unknown generation provider")
	ErrUnknownBackend  = errors.New("unknown storage backend")

	// Engine errors
	ErrEngineRunning = errors.New("engine already running")
	ErrEmptyRoster   = errors.New("agent roster is empty")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
