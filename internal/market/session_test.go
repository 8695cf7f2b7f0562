package market

import (
	"testing"
	"time"

	"paper-trader/internal/models"
)

func ist(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, IndiaLocation)
}

func TestIsOpenAt_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday at open", ist(2024, time.January, 8, 9, 15), true},
		{"monday one minute before open", ist(2024, time.January, 8, 9, 14), false},
		{"monday at close", ist(2024, time.January, 8, 15, 30), false},
		{"monday last tradable minute", ist(2024, time.January, 8, 15, 29), true},
		{"monday mid session", ist(2024, time.January, 8, 12, 0), true},
		{"monday after close", ist(2024, time.January, 8, 15, 45), false},
		{"monday early morning", ist(2024, time.January, 8, 8, 0), false},
		{"friday mid session", ist(2024, time.January, 12, 11, 30), true},
		{"saturday noon", ist(2024, time.January, 13, 12, 0), false},
		{"sunday noon", ist(2024, time.January, 14, 12, 0), false},
		{"midnight", ist(2024, time.January, 8, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOpenAt(tt.at); got != tt.want {
				t.Errorf("IsOpenAt(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIsOpenAtOffset(t *testing.T) {
	// 2024-01-08 is a Monday. 03:45 UTC is 09:15 IST.
	utc := time.Date(2024, time.January, 8, 3, 45, 0, 0, time.UTC)

	if !IsOpenAtOffset(utc, DefaultOffsetMinutes) {
		t.Errorf("expected open at 09:15 IST (+330)")
	}
	if IsOpenAtOffset(utc.Add(-time.Minute), DefaultOffsetMinutes) {
		t.Errorf("expected closed at 09:14 IST (+330)")
	}
	// Same instant in a UTC-evaluated market would be closed (03:45 local).
	if IsOpenAtOffset(utc, 0) {
		t.Errorf("expected closed at 03:45 local with zero offset")
	}
}

func TestStatusAt(t *testing.T) {
	if got := StatusAt(ist(2024, time.January, 8, 12, 0)); got != models.MarketOpen {
		t.Errorf("StatusAt(monday noon) = %v, want OPEN", got)
	}
	if got := StatusAt(ist(2024, time.January, 13, 12, 0)); got != models.MarketClosed {
		t.Errorf("StatusAt(saturday noon) = %v, want CLOSED", got)
	}
}

func TestNextOpen(t *testing.T) {
	// Friday after close rolls over the weekend to Monday.
	fridayEvening := ist(2024, time.January, 12, 18, 0)
	next := NextOpen(fridayEvening)

	if next.Weekday() != time.Monday {
		t.Errorf("NextOpen(friday evening).Weekday() = %v, want Monday", next.Weekday())
	}
	if next.Hour() != 9 || next.Minute() != 15 {
		t.Errorf("NextOpen time = %02d:%02d, want 09:15", next.Hour(), next.Minute())
	}

	// Before open on a weekday, next open is the same day.
	mondayMorning := ist(2024, time.January, 8, 8, 0)
	next = NextOpen(mondayMorning)
	if next.Day() != 8 {
		t.Errorf("NextOpen(monday morning).Day() = %d, want 8", next.Day())
	}
}
