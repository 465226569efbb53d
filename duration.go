package initz

import "time"

// measure derives total and self duration for one finished span.
//
// Children that never ended report a zero total, so they are not
// subtracted and self time overestimates that branch.
func measure(start, end time.Time, childTotals []time.Duration) (total, self time.Duration) {
	total = end.Sub(start)
	if total < 0 {
		total = 0
	}

	self = total
	for _, d := range childTotals {
		self -= d
	}
	return total, self
}
