package domain

import "errors"

var (
	// ErrInvalidRequest marks a malformed inbound turn. It is the only error
	// class the orchestrator surfaces to callers.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned by lookups that resolve to no record.
	ErrNotFound = errors.New("not found")
)
