package mathutil

import "math"

// Round2 rounds to 2 decimal places, the precision used for all millisecond
// and percentage values leaving the service.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round3 rounds to 3 decimal places, used for byte-to-KB style conversions.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Percent returns part/total as a rounded percentage, 0 when total is 0.
func Percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return Round2(part / total * 100)
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BucketIndex maps a timestamp into one of n buckets covering [from, to),
// clamping out-of-range values into [0, n-1]. A zero-duration window maps
// everything to bucket 0.
func BucketIndex(t, from, to float64, n int) int {
	if n <= 1 || to <= from {
		return 0
	}
	i := int((t - from) / (to - from) * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
