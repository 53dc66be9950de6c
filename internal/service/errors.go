package service

import "errors"

var (
	ErrBackend   = errors.New("failed to connect backend")
	ErrBuild     = errors.New("failed to build component")
	ErrUnhealthy = errors.New("backend is unhealthy")
)
