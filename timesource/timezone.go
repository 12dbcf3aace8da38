package timesource

import "time"

// LastWeek selects the final occurrence of a weekday in the month instead
// of a counted one.
const LastWeek = 0

// Rule is one seasonal offset change, keyed calendar-relatively: the nth
// occurrence of a weekday in a month, at a given local hour.
type Rule struct {
	Name    string // zone abbreviation, e.g. "EDT"
	Week    int    // 1-4, or LastWeek
	Weekday time.Weekday
	Month   time.Month
	Hour    int // hour, in the offset that was in effect before the change
	Offset  int // minutes east of UTC
}

// Zone is a rule pair for one geographic timezone: the daylight rule and
// the standard rule.  Rules are fixed at startup.
type Zone struct {
	DST Rule
	STD Rule
}

// USEastern is the reference configuration's zone.
var USEastern = Zone{
	DST: Rule{Name: "EDT", Week: 2, Weekday: time.Sunday, Month: time.March, Hour: 2, Offset: -4 * 60},
	STD: Rule{Name: "EST", Week: 1, Weekday: time.Sunday, Month: time.November, Hour: 2, Offset: -5 * 60},
}

// changeAt returns the UTC instant the rule takes effect in the given
// year.  prevOffset is the offset in effect just before the change, which
// is what the rule's Hour is expressed in.
func (r Rule) changeAt(year, prevOffset int) time.Time {
	var t time.Time
	if r.Week == LastWeek {
		// Work backwards from the first occurrence in the next month.
		t = nthWeekday(year, r.Month+1, 1, r.Weekday, r.Hour).AddDate(0, 0, -7)
	} else {
		t = nthWeekday(year, r.Month, r.Week, r.Weekday, r.Hour)
	}
	return t.Add(-time.Duration(prevOffset) * time.Minute)
}

// nthWeekday returns the nth occurrence of a weekday in a month, at the
// given hour, with no offset applied.
func nthWeekday(year int, month time.Month, week int, weekday time.Weekday, hour int) time.Time {
	t := time.Date(year, month, 1, hour, 0, 0, 0, time.UTC)
	days := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, days+(week-1)*7)
}

// active returns the rule in effect at the given UTC instant.
func (z Zone) active(utc time.Time) Rule {
	year := utc.Year()
	dstStart := z.DST.changeAt(year, z.STD.Offset)
	stdStart := z.STD.changeAt(year, z.DST.Offset)
	if dstStart.Before(stdStart) {
		// Northern hemisphere: daylight time in the middle of the year.
		if !utc.Before(dstStart) && utc.Before(stdStart) {
			return z.DST
		}
		return z.STD
	}
	// Southern hemisphere: standard time in the middle of the year.
	if !utc.Before(stdStart) && utc.Before(dstStart) {
		return z.STD
	}
	return z.DST
}

// ToLocal converts an instant to the zone's local time.
func (z Zone) ToLocal(t time.Time) time.Time {
	r := z.active(t.UTC())
	return t.In(time.FixedZone(r.Name, r.Offset*60))
}
