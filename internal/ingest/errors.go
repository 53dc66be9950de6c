package ingest

import "errors"

var (
	ErrOrchestratorNil = errors.New("orchestrator cannot be nil")
	ErrInvalidCommand  = errors.New("invalid notification command")
	ErrUnknownAction   = errors.New("unknown command action")
)
