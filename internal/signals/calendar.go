package signals

import "time"

// holiday is a calendar entry. Major holidays shift refill behavior ahead
// of the closure; minor ones reduce walk-in traffic.
type holiday struct {
	name  string
	major bool
}

// Fixed-date national and religious holidays, keyed by (month, day).
var fixedHolidays = map[[2]int]holiday{
	{1, 1}:   {"New Year's Day", true},
	{1, 6}:   {"Epiphany", false},
	{3, 25}:  {"Independence Day", true},
	{5, 1}:   {"Labour Day", false},
	{8, 15}:  {"Dormition of the Mother of God", true},
	{10, 28}: {"Ochi Day", true},
	{12, 25}: {"Christmas Day", true},
	{12, 26}: {"Synaxis of the Mother of God", false},
}

// Moveable holidays as day offsets from Orthodox Easter Sunday.
var easterHolidays = []struct {
	offset int
	holiday
}{
	{-48, holiday{"Clean Monday", false}},
	{-2, holiday{"Good Friday", false}},
	{0, holiday{"Easter Sunday", true}},
	{1, holiday{"Easter Monday", true}},
	{50, holiday{"Whit Monday", false}},
}

// holidaysOn returns the holidays falling on one calendar day.
func holidaysOn(day time.Time) []holiday {
	var out []holiday
	if h, ok := fixedHolidays[[2]int{int(day.Month()), day.Day()}]; ok {
		out = append(out, h)
	}
	easter := orthodoxEaster(day.Year())
	for _, eh := range easterHolidays {
		if sameDate(easter.AddDate(0, 0, eh.offset), day) {
			out = append(out, eh.holiday)
		}
	}
	return out
}

// orthodoxEaster computes Orthodox Easter Sunday on the Gregorian calendar
// using the Meeus Julian algorithm. The 13-day Julian offset holds for
// years 1900-2099.
func orthodoxEaster(year int) time.Time {
	a := year % 4
	b := year % 7
	c := year % 19
	d := (19*c + 15) % 30
	e := (2*a + 4*b - d + 34) % 7
	month := (d + e + 114) / 31
	day := (d+e+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 13)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
