package planner

import (
	"fmt"

	"railplan/internal/domain"
)

// DurationUnknown is returned when fewer than two dated events exist.
const DurationUnknown = "Unknown"

// SummarizeDuration renders the elapsed time between the first and last
// dated events as "D days H hours", dropping the days clause at zero.
// Segment markers never count.
func SummarizeDuration(events []domain.ScheduleEvent) string {
	var first, last domain.ScheduleEvent
	count := 0
	for _, e := range events {
		if !e.Valid() {
			continue
		}
		if count == 0 {
			first = e
		}
		last = e
		count++
	}
	if count < 2 {
		return DurationUnknown
	}

	minutes := int(last.When().Sub(first.When()).Minutes())
	hours := minutes / 60
	days := hours / 24
	hours = hours % 24

	if days == 0 {
		return plural(hours, "hour")
	}
	return plural(days, "day") + " " + plural(hours, "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
