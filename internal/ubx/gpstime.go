package ubx

const (
	// LeapSeconds is the GPS-UTC offset in seconds. GPS time has been 18s ahead
	// of UTC since 2017-01-01.
	LeapSeconds = 18

	SecondsPerDay  = 24 * 60 * 60
	SecondsPerWeek = 7 * SecondsPerDay

	maxSecondOfWeek = SecondsPerWeek - 1
)

// GPS epoch: 1980-01-06 00:00:00 UTC.
const (
	gpsEpochYear  = 1980
	gpsEpochMonth = 1
	gpsEpochDay   = 6
)

// TimeOfWeek converts a UTC date and time of day into iTOW, milliseconds since
// the start of the GPS week. Inputs are trusted to be a valid calendar date.
//
// The leap second offset may push the result past the end of the week, in
// which case it wraps into the next one.
func TimeOfWeek(year, month, day, hour, minute, second, millisecond int) uint32 {
	days := DaysSinceEpoch(year, month, day)
	ws := floorMod(days, 7)*SecondsPerDay + hour*3600 + minute*60 + second + LeapSeconds
	if ws > maxSecondOfWeek {
		ws -= SecondsPerWeek
	}
	return uint32(ws*1000 + millisecond)
}

// WeekNumber returns whole GPS weeks since the epoch, without the 1024-week
// rollover applied by legacy receivers.
func WeekNumber(year, month, day int) int {
	return floorDiv(DaysSinceEpoch(year, month, day), 7)
}

// DaysSinceEpoch returns the number of whole days between the GPS epoch and the
// given date in the proleptic Gregorian calendar.
func DaysSinceEpoch(year, month, day int) int {
	return daysFromCivil(year, month, day) - daysFromCivil(gpsEpochYear, gpsEpochMonth, gpsEpochDay)
}

// daysFromCivil returns the day number relative to 1970-01-01 using 400-year
// eras, so leap years need no table.
func daysFromCivil(y, m, d int) int {
	if m <= 2 {
		y--
	}
	era := floorDiv(y, 400)
	yoe := y - era*400
	mp := (m + 9) % 12 // March = 0
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
