package model

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyPatch              = errors.New("override patch has no fields")
	ErrNegativeVotes           = errors.New("vote counts must not be negative")
	ErrInvalidReportingPercent = errors.New("reporting percent must be between 0 and 100")
)
