package utils

import (
	"time"
)

// GetDayStartFrom возвращает начало дня (00:00:00 UTC) для указанного времени
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDailyBoundary возвращает ближайший момент после now, равный началу дня UTC + offset.
//
// Пример:
//
//	// now: 2024-01-15 14:30 UTC, offset: 0
//	NextDailyBoundary(now, 0) // 2024-01-16 00:00 UTC
//	// now: 2024-01-15 14:30 UTC, offset: 16h
//	NextDailyBoundary(now, 16*time.Hour) // 2024-01-15 16:00 UTC
func NextDailyBoundary(now time.Time, offset time.Duration) time.Time {
	next := GetDayStartFrom(now).Add(offset)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// FormatDuration форматирует продолжительность с точностью до секунды ("45s", "5m30s", "26h15m0s")
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Truncate(time.Second).String()
}
