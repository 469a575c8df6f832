package tools

import "time"

// FrameSamples returns the number of pcm samples covering duration at the
// given rate and channel count.
func FrameSamples(duration time.Duration, rate, channels int) int {
	return int(duration.Seconds() * float64(channels) * float64(rate))
}

// FrameBytes is FrameSamples in bytes for 16-bit pcm.
func FrameBytes(duration time.Duration, rate, channels int) int {
	return FrameSamples(duration, rate, channels) * 2
}
