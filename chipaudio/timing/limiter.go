package timing

import "time"

// Limiter paces a refresh loop.
type Limiter interface {
	// Wait blocks until the next tick is due.
	Wait()

	// Reset restarts the schedule, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that never blocks, for offline rendering.
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) Wait()  {}
func (n *noOpLimiter) Reset() {}

// Period returns the duration of one tick at hz ticks per second.
func Period(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// FramesToDuration converts a frame count at rate frames per second.
func FramesToDuration(frames, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(rate))
}

// DurationToFrames converts a duration to a whole frame count at rate.
func DurationToFrames(d time.Duration, rate int) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(int64(d) * int64(rate) / int64(time.Second))
}
