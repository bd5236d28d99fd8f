package utils

import (
	"time"
)

const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateWindow returns [today-daysBack, today] as midnight-aligned dates in loc.
func DateWindow(now time.Time, loc *time.Location, daysBack int) (time.Time, time.Time) {
	end := StartOfDay(now.In(loc))
	return end.AddDate(0, 0, -daysBack), end
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
