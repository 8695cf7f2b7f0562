// Package market determines market session state for NSE trading hours.
package market

import (
	"time"

	"paper-trader/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// DefaultOffsetMinutes is the IST offset from UTC in minutes.
const DefaultOffsetMinutes = 330

// Session boundaries in minutes from local midnight. The market is open
// on weekdays for 09:15 <= t < 15:30; 15:30 itself is closed.
const (
	openMinute  = 9*60 + 15
	closeMinute = 15*60 + 30
)

// IsOpenAt reports whether the market is open at the given instant,
// evaluated in Indian local time.
func IsOpenAt(t time.Time) bool {
	local := t.In(IndiaLocation)
	return isOpenLocal(local)
}

// IsOpenAtOffset reports whether the market is open at the given instant,
// evaluated in a fixed timezone offset (minutes east of UTC). Useful when
// the caller supplies the offset instead of relying on the host tzdata.
func IsOpenAtOffset(t time.Time, offsetMinutes int) bool {
	zone := time.FixedZone("", offsetMinutes*60)
	return isOpenLocal(t.In(zone))
}

// IsOpen reports whether the market is open right now.
func IsOpen() bool {
	return IsOpenAt(time.Now())
}

func isOpenLocal(local time.Time) bool {
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= openMinute && minutes < closeMinute
}

// StatusAt returns the market status at the given instant.
func StatusAt(t time.Time) models.MarketStatus {
	if IsOpenAt(t) {
		return models.MarketOpen
	}
	return models.MarketClosed
}

// Status returns the current market status.
func Status() models.MarketStatus {
	return StatusAt(time.Now())
}

// NextOpen returns the next market opening time after t.
func NextOpen(t time.Time) time.Time {
	now := t.In(IndiaLocation)

	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 15, 0, 0, IndiaLocation)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// CloseTime returns the market close time on t's trading day.
func CloseTime(t time.Time) time.Time {
	local := t.In(IndiaLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 15, 30, 0, 0, IndiaLocation)
}
