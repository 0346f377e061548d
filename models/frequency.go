package models

import (
	"time"

	"github.com/mmdatafocus/church_backend/utils"
)

// NextOccurrence advances t by one period of f. Monthly steps keep anchorDay,
// clamped to the month's last day (Jan 31 -> Feb 28 -> Mar 31).
func NextOccurrence(t time.Time, f Frequency, anchorDay int) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return utils.AddMonthsClamped(t, 1, anchorDay)
	case FrequencyQuarterly:
		return utils.AddMonthsClamped(t, 3, anchorDay)
	case FrequencyAnnually:
		return utils.AddMonthsClamped(t, 12, anchorDay)
	}
	// one_time never repeats
	return time.Time{}
}

// occurrencesBetween counts period starts from start up to and including end.
func occurrencesBetween(start, end time.Time, f Frequency) int {
	if end.Before(start) {
		return 0
	}
	if f == FrequencyOneTime {
		return 1
	}
	count := 0
	anchor := start.Day()
	for t := start; !t.After(end); t = NextOccurrence(t, f, anchor) {
		count++
		// sanity cap: 100 years of weekly periods
		if count > 5300 {
			break
		}
	}
	return count
}
