package market

import "time"

const (
	defaultOpenMinute  = 9*60 + 15
	defaultCloseMinute = 15*60 + 30
	istOffsetSeconds   = 5*3600 + 30*60
)

// IST is the fixed +05:30 zone; India observes no daylight saving.
var IST = time.FixedZone("IST", istOffsetSeconds)

// Calendar maps wall-clock time to the trading session state. Both window
// bounds are inclusive minutes-of-day in Location.
type Calendar struct {
	Location    *time.Location
	OpenMinute  int
	CloseMinute int
}

func NewCalendar() Calendar {
	return Calendar{Location: IST, OpenMinute: defaultOpenMinute, CloseMinute: defaultCloseMinute}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return IST
	}
	return c.Location
}

func (c Calendar) IsOpen(now time.Time) bool {
	local := now.In(c.loc())
	if isWeekend(local.Weekday()) {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.OpenMinute && minute <= c.CloseMinute
}

func (c Calendar) State(now time.Time) MarketState {
	if c.IsOpen(now) {
		return StateOpen
	}
	return StateClosed
}

// NextOpen returns the start of the next session strictly after now.
func (c Calendar) NextOpen(now time.Time) time.Time {
	local := now.In(c.loc())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc())
	for i := 0; i < 8; i++ {
		start := day.AddDate(0, 0, i).Add(time.Duration(c.OpenMinute) * time.Minute)
		if isWeekend(start.Weekday()) || !start.After(local) {
			continue
		}
		return start
	}
	return day.AddDate(0, 0, 8)
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
