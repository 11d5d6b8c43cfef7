package playback

import (
	"errors"
	"fmt"

	"github.com/okian/precinct/internal/domain/model"
)

// Sentinel kinds for playback errors.
var (
	ErrNoScenario   = errors.New("no scenario loaded")
	ErrPlaybackDown = errors.New("playback in error state")
	ErrInvalidSpeed = errors.New("speed must be positive")
	ErrSpeedTooHigh = errors.New("speed exceeds the configured maximum")
)

// stateError maps a non-operable state to its sentinel.
func stateError(st model.PlaybackState) error {
	switch st {
	case model.PlaybackIdle:
		return ErrNoScenario
	case model.PlaybackError:
		return ErrPlaybackDown
	default:
		return fmt.Errorf("operation not valid in state %s", st)
	}
}
