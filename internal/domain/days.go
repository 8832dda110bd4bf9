package domain

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysOpen computes floor((closure ?? now) - identified) in whole days.
func DaysOpen(identified time.Time, closure *time.Time, now time.Time) int {
	end := now
	if closure != nil {
		end = *closure
	}
	return int(math.Floor(float64(end.Sub(identified)) / float64(day)))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekOfMonth returns the 1-based Sunday-start week of the month containing t.
func WeekOfMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return (t.Day()+int(first.Weekday())-1)/7 + 1
}
