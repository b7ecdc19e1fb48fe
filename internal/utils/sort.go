package utils

import (
	"sort"
	"time"
)

func SortDates(dates []time.Time, asc bool) []time.Time {
	sort.Slice(dates, func(i, j int) bool {
		if asc {
			return dates[i].Before(dates[j])
		}
		return dates[i].After(dates[j])
	})
	return dates
}

func GetSortedKeys[T any](m map[time.Time]T, asc bool) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return SortDates(keys, asc)
}

// MonthlyEnds returns the end dates of the months back windows before now,
// oldest first. Day overflow is clamped so March 31 steps back to
// February 28/29.
func MonthlyEnds(now time.Time, months int) []time.Time {
	ends := make([]time.Time, 0, months)
	y, m, d := now.Date()
	for i := 1; i <= months; i++ {
		first := time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		last := first.AddDate(0, 1, -1).Day()
		day := d
		if day > last {
			day = last
		}
		ends = append(ends, time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, now.Location()))
	}
	return SortDates(ends, true)
}
