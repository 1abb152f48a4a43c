package probe

import "math"

// Jitter returns the mean absolute deviation of the samples from their mean,
// or nil when fewer than two samples exist (deviation of a single sample is
// not meaningful).
func Jitter(samples []float64) *float64 {
	if len(samples) < 2 {
		return nil
	}
	m := *mean(samples)
	var dev float64
	for _, s := range samples {
		dev += math.Abs(s - m)
	}
	v := dev / float64(len(samples))
	return &v
}
