package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func TestCalendarIsOpen(t *testing.T) {
	cal := NewCalendar()
	// 2024-01-03 is a Wednesday, 2024-01-06 a Saturday.
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", ist(2024, 1, 3, 9, 14), false},
		{"at open", ist(2024, 1, 3, 9, 15), true},
		{"midday", ist(2024, 1, 3, 12, 0), true},
		{"at close", ist(2024, 1, 3, 15, 30), true},
		{"after close", ist(2024, 1, 3, 15, 31), false},
		{"saturday noon", ist(2024, 1, 6, 12, 0), false},
		{"sunday noon", ist(2024, 1, 7, 12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cal.IsOpen(tc.at))
		})
	}
}

func TestCalendarConvertsFromUTC(t *testing.T) {
	cal := NewCalendar()
	// 03:45 UTC is 09:15 IST.
	assert.True(t, cal.IsOpen(time.Date(2024, 1, 3, 3, 45, 0, 0, time.UTC)))
	assert.False(t, cal.IsOpen(time.Date(2024, 1, 3, 3, 44, 0, 0, time.UTC)))
	// Friday 20:00 UTC is already Saturday in IST.
	assert.False(t, cal.IsOpen(time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)))
}

func TestCalendarState(t *testing.T) {
	cal := NewCalendar()
	assert.Equal(t, StateOpen, cal.State(ist(2024, 1, 3, 10, 0)))
	assert.Equal(t, StateClosed, cal.State(ist(2024, 1, 3, 16, 0)))
}

func TestCalendarNextOpen(t *testing.T) {
	cal := NewCalendar()
	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"early morning same day", ist(2024, 1, 3, 8, 0), ist(2024, 1, 3, 9, 15)},
		{"during session rolls to next day", ist(2024, 1, 3, 10, 0), ist(2024, 1, 4, 9, 15)},
		{"friday evening skips weekend", ist(2024, 1, 5, 18, 0), ist(2024, 1, 8, 9, 15)},
		{"saturday", ist(2024, 1, 6, 12, 0), ist(2024, 1, 8, 9, 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(cal.NextOpen(tc.at)), "got %s", cal.NextOpen(tc.at))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("5d")
	assert.NoError(t, err)
	iv, ok := r.Interval()
	assert.True(t, ok)
	assert.Equal(t, "15m", iv)

	_, err = ParseRange("10y")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
