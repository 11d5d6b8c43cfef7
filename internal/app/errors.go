package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrNoScenario      = errors.New("no scenario loaded")
	ErrNoSnapshot      = errors.New("no aggregate snapshot derived yet")
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownScope    = errors.New("unknown rollup scope")
)
