package travel

import (
	"fmt"
	"math"
)

const (
	// DefaultAcceptableSpeedKmh is the implied speed above which two logins
	// are considered implausible.
	DefaultAcceptableSpeedKmh = 80.0
	// DefaultLookbackCount is how many prior logins are compared.
	DefaultLookbackCount = 1
	// MaxLookbackCount keeps the heuristic cheap: one or two prior logins.
	MaxLookbackCount = 2
)

// Options is process-wide detector configuration. It is read on every
// evaluation and never mutated after construction.
type Options struct {
	AcceptableSpeedKmh float64
	LookbackCount      int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		AcceptableSpeedKmh: DefaultAcceptableSpeedKmh,
		LookbackCount:      DefaultLookbackCount,
	}
}

// Validate rejects configurations the detector cannot run with.
func (o Options) Validate() error {
	if math.IsNaN(o.AcceptableSpeedKmh) || math.IsInf(o.AcceptableSpeedKmh, 0) || o.AcceptableSpeedKmh <= 0 {
		return fmt.Errorf("acceptable speed must be a positive number of km/h, got %v", o.AcceptableSpeedKmh)
	}
	if o.LookbackCount < 1 || o.LookbackCount > MaxLookbackCount {
		return fmt.Errorf("lookback count must be between 1 and %d, got %d", MaxLookbackCount, o.LookbackCount)
	}
	return nil
}

// Option adjusts detector settings at construction.
type Option func(*settings)

type settings struct {
	options  Options
	ipSource IPSource
}

func WithAcceptableSpeed(kmh float64) Option {
	return func(s *settings) {
		s.options.AcceptableSpeedKmh = kmh
	}
}

func WithLookbackCount(n int) Option {
	return func(s *settings) {
		s.options.LookbackCount = n
	}
}

// WithOptions replaces the whole option set, typically from config.
func WithOptions(opts Options) Option {
	return func(s *settings) {
		s.options = opts
	}
}

// WithIPSource overrides where the client address comes from. The default
// reads it from the request context.
func WithIPSource(src IPSource) Option {
	return func(s *settings) {
		if src != nil {
			s.ipSource = src
		}
	}
}
