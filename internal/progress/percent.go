package progress

import "math"

// Percent converts committed and in-flight byte counts into a whole
// percentage of total. It floors, clamps to [0, 100] and returns 0 while
// total is unknown.
func Percent(committed, inFlight, total int64) int {
	if total <= 0 {
		return 0
	}
	done := committed + inFlight
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	if done > math.MaxInt64/100 {
		return int(float64(done) / float64(total) * 100)
	}
	return int(done * 100 / total)
}
