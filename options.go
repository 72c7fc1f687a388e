package latencytracker

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
	"k8s.io/utils/clock"
)

// trackerOptions holds configuration options for Tracker creation.
type trackerOptions struct {
	logger      *logiface.Logger[logiface.Event]
	clock       clock.Clock
	monotonic   MonotonicClock
	scheduler   Scheduler
	hash        HashFunc
	match       MatchFunc
	userContext any
	capacity    int
	gcPeriod    time.Duration
	gcThreshold time.Duration
}

// --- Tracker Options ---

// Option configures a Tracker instance.
type Option interface {
	applyTracker(*trackerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyTrackerFunc func(*trackerOptions) error
}

func (o *optionImpl) applyTracker(opts *trackerOptions) error {
	return o.applyTrackerFunc(opts)
}

// WithCapacity sets the number of event slots, allocated up front. Defaults
// to DefaultCapacity, if 0.
func WithCapacity(capacity int) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		if capacity < 0 {
			return fmt.Errorf(`%w: negative capacity: %d`, ErrInvalidArgument, capacity)
		}
		opts.capacity = capacity
		return nil
	}}
}

// WithGCPeriod sets the interval between GC sweeps. GC is enabled only if
// both the period and the threshold (see WithGCThreshold) are non-zero.
// See also Tracker.SetGCPeriod.
func WithGCPeriod(period time.Duration) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		if period < 0 {
			return fmt.Errorf(`%w: negative gc period: %s`, ErrInvalidArgument, period)
		}
		opts.gcPeriod = period
		return nil
	}}
}

// WithGCThreshold sets the age after which open events are evicted by the
// GC sweep. See also WithGCPeriod and Tracker.SetGCThreshold.
func WithGCThreshold(threshold time.Duration) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		if threshold < 0 {
			return fmt.Errorf(`%w: negative gc threshold: %s`, ErrInvalidArgument, threshold)
		}
		opts.gcThreshold = threshold
		return nil
	}}
}

// WithHashFunc overrides DefaultHash. A nil value is ignored.
func WithHashFunc(hash HashFunc) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		if hash != nil {
			opts.hash = hash
		}
		return nil
	}}
}

// WithMatchFunc overrides DefaultMatch. A nil value is ignored.
func WithMatchFunc(match MatchFunc) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		if match != nil {
			opts.match = match
		}
		return nil
	}}
}

// WithUserContext sets an opaque value, available via Tracker.UserContext.
func WithUserContext(v any) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		opts.userContext = v
		return nil
	}}
}

// WithLogger configures structured logging. Logging is disabled by default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock sets the clock, used for both timestamps (unless
// WithMonotonicClock is also provided), and the default Scheduler (unless
// WithScheduler is also provided). Defaults to clock.RealClock.
//
// Primarily useful for testing, e.g. using k8s.io/utils/clock/testing.
func WithClock(c clock.Clock) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		opts.clock = c
		return nil
	}}
}

// WithMonotonicClock overrides the source of event timestamps.
func WithMonotonicClock(c MonotonicClock) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		opts.monotonic = c
		return nil
	}}
}

// WithScheduler overrides the default Scheduler, a deadline heap serviced by
// a single goroutine, owned by the Tracker.
func WithScheduler(s Scheduler) Option {
	return &optionImpl{func(opts *trackerOptions) error {
		opts.scheduler = s
		return nil
	}}
}

// resolveOptions applies Option instances to trackerOptions.
func resolveOptions(opts []Option) (*trackerOptions, error) {
	cfg := &trackerOptions{
		hash:  DefaultHash,
		match: DefaultMatch,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTracker(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.capacity == 0 {
		cfg.capacity = DefaultCapacity
	}
	if cfg.clock == nil {
		cfg.clock = clock.RealClock{}
	}
	return cfg, nil
}
