package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampResolver resolves the free-text timestamp header of a block
// into an absolute instant and a quality tier, disambiguating ambiguous
// numeric dates with DateOrder and localizing naive times to Location.
type TimestampResolver struct {
	JobDate   time.Time
	DateOrder string // "DMY" or "MDY"
	Location  *time.Location
}

// NewTimestampResolver builds a resolver anchored at jobDate (used when no
// prior absolute timestamp has been seen yet in the stream).
func NewTimestampResolver(jobDate time.Time, dateOrder string, loc *time.Location) *TimestampResolver {
	return &TimestampResolver{JobDate: jobDate, DateOrder: dateOrder, Location: loc}
}

// Resolve parses tsText, the trimmed contents of a timestamp header line
// (e.g. "Yesterday at 3:04 PM", "10/5/2023 15:04", "3:04 PM"), anchored
// against lastAbsolute if set, else r.JobDate.
func (r *TimestampResolver) Resolve(tsText string, lastAbsolute *time.Time) (*time.Time, Quality) {
	tsText = strings.TrimPrefix(tsText, "at ")
	relText := tsText
	tsText = strings.ReplaceAll(tsText, "at ", "")
	lower := strings.ToLower(tsText)

	anchor := r.JobDate
	if lastAbsolute != nil {
		anchor = *lastAbsolute
	}

	if timeOnlyPattern.MatchString(strings.TrimSpace(tsText)) {
		dt, ok := r.combineTimeOnly(tsText, anchor)
		if !ok {
			return nil, QualityUnknown
		}
		return &dt, QualityTimeOnly
	}

	if strings.Contains(lower, "yesterday") {
		base := anchor.AddDate(0, 0, -1)
		dt, ok := r.combineTimeOnly(trailingTimePart(relText), base)
		if !ok {
			return nil, QualityUnknown
		}
		return &dt, QualityRelative
	}
	if strings.Contains(lower, "today") {
		dt, ok := r.combineTimeOnly(trailingTimePart(relText), anchor)
		if !ok {
			return nil, QualityUnknown
		}
		return &dt, QualityRelative
	}

	dt, ok := r.parseAbsolute(tsText)
	if !ok {
		return nil, QualityUnknown
	}
	return &dt, QualityAbsolute
}

func trailingTimePart(tsText string) string {
	parts := strings.Split(tsText, "at")
	return strings.TrimSpace(parts[len(parts)-1])
}

// combineTimeOnly parses a bare time-of-day (e.g. "3:04 PM" or "15:04")
// and combines it with base's calendar date, in r.Location.
func (r *TimestampResolver) combineTimeOnly(timePart string, base time.Time) (time.Time, bool) {
	h, m, ok := parseClock(timePart)
	if !ok {
		return time.Time{}, false
	}
	y, mo, d := base.In(r.Location).Date()
	return time.Date(y, mo, d, h, m, 0, 0, r.Location), true
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([APap][Mm])?$`)

func parseClock(s string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if ampm := strings.ToUpper(m[3]); ampm != "" {
		if hour == 12 {
			hour = 0
		}
		if ampm == "PM" {
			hour += 12
		}
	}
	return hour, minute, true
}

// numericDatePattern matches D/M/Y, D-M-Y or D.M.Y style dates, optionally
// followed by a time-of-day and/or comma.
var numericDatePattern = regexp.MustCompile(`^(\d{1,4})[/\-.](\d{1,2})[/\-.](\d{1,4}),?\s*(.*)$`)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var monthFirstPattern = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4}),?\s*(.*)$`)

// parseAbsolute parses a fully-specified date, handling both
// "<Month> <day>, <year> [at] <time>" and slash/dash/dot-separated
// numeric dates whose day/month order is disambiguated by r.DateOrder.
func (r *TimestampResolver) parseAbsolute(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)

	if m := monthFirstPattern.FindStringSubmatch(s); m != nil {
		month, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		day, err1 := strconv.Atoi(m[2])
		year, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			return time.Time{}, false
		}
		hour, minute := 0, 0
		if rest := strings.TrimSpace(m[4]); rest != "" {
			h, mi, ok := parseClock(rest)
			if !ok {
				return time.Time{}, false
			}
			hour, minute = h, mi
		}
		return time.Date(year, month, day, hour, minute, 0, 0, r.Location), true
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		a, err1 := strconv.Atoi(m[1])
		b, err2 := strconv.Atoi(m[2])
		c, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		var day, month, year int
		switch {
		case a > 31: // YYYY/M/D
			year, month, day = a, b, c
		case c > 31 || c >= 100: // D/M/YYYY or M/D/YYYY, year last
			year = c
			if year < 100 {
				year += 2000
			}
			if r.DateOrder == "MDY" {
				month, day = a, b
			} else {
				day, month = a, b
			}
		default:
			return time.Time{}, false
		}
		hour, minute := 0, 0
		if rest := strings.TrimSpace(m[4]); rest != "" {
			h, mi, ok := parseClock(rest)
			if !ok {
				return time.Time{}, false
			}
			hour, minute = h, mi
		}
		return time.Date(year, time.Month(month), day, hour, minute, 0, 0, r.Location), true
	}

	return time.Time{}, false
}
