package vacs

import "time"

// PreviewTime is the constant time fed to the kernels when the driver is visualized without
// playback, chosen so time dependent effects are visibly non-degenerate.
const PreviewTime float32 = 10

// TimeSource supplies the Time value each frame's kernels read.
type TimeSource interface {
	// Now returns the current time in seconds.
	//
	// Returns:
	//   - float32: seconds
	Now() float32
}

// TimeSourceFunc adapts a plain function, such as a window's clock, to a TimeSource.
type TimeSourceFunc func() float32

func (f TimeSourceFunc) Now() float32 {
	return f()
}

type liveClock struct {
	start time.Time
}

// LiveClock returns a TimeSource counting seconds on the monotonic clock since its creation.
func LiveClock() TimeSource {
	return &liveClock{start: time.Now()}
}

func (c *liveClock) Now() float32 {
	return float32(time.Since(c.start).Seconds())
}

type fixedTime float32

// FixedTime returns a TimeSource that always reports t.
func FixedTime(t float32) TimeSource {
	return fixedTime(t)
}

func (f fixedTime) Now() float32 {
	return float32(f)
}
