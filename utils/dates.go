// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func DaysBetween(start, end time.Time) int {
	start = BeginningOfDay(start)
	end = BeginningOfDay(end)
	return int(end.Sub(start).Hours() / 24)
}

// MinutesOfDay returns the minutes elapsed since local midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// WeekdayBit maps a weekday to its bit in a send-days mask (bit 0 = Sunday).
func WeekdayBit(d time.Weekday) uint8 {
	return 1 << uint(d)
}

func WeekdaySetHas(mask uint8, d time.Weekday) bool {
	return mask&WeekdayBit(d) != 0
}

// WeekdayMask builds a send-days mask from weekday numbers (0 = Sunday).
// Out-of-range values are ignored.
func WeekdayMask(days []int) uint8 {
	var mask uint8
	for _, d := range days {
		if d >= 0 && d <= 6 {
			mask |= 1 << uint(d)
		}
	}
	return mask
}

// WeekdaysFromMask is the inverse of WeekdayMask, for API responses.
func WeekdaysFromMask(mask uint8) []int {
	days := []int{}
	for d := 0; d <= 6; d++ {
		if mask&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
