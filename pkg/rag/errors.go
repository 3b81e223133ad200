package rag

import (
	"errors"

	"zara-assistant-be/pkg/fallback"
)

// Stage-level failures. All but ErrConnectionLost are recovered at the stage
// boundary and turned into that stage's degraded output.
var (
	ErrProviderUnavailable    = fallback.ErrProviderUnavailable
	ErrMalformedPlannerOutput = errors.New("malformed planner output")
	ErrRetrievalFailure       = errors.New("retrieval failure")
	ErrToolArgumentInvalid    = errors.New("invalid tool arguments")
	ErrConnectionLost         = errors.New("connection lost")
)
