package playback

import (
	"time"

	"github.com/okian/precinct/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithTickInterval sets the scheduler tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithDefaultSpeed sets the initial speed multiplier.
func WithDefaultSpeed(speed float64) Option {
	return func(c *Controller) {
		if speed > 0 {
			c.speed = speed
		}
	}
}

// WithMaxSpeed caps the speed multiplier accepted by SetSpeed.
func WithMaxSpeed(speed float64) Option {
	return func(c *Controller) {
		if speed > 0 {
			c.maxSpeed = speed
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
