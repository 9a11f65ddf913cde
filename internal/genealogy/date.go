package genealogy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateModifier qualifies a date.
type DateModifier string

const (
	ModNone   DateModifier = ""
	ModBefore DateModifier = "before"
	ModAfter  DateModifier = "after"
	ModAbout  DateModifier = "about"
)

// dateRange is how far before/after/about stretch a date, in years.
const dateRange = 50

var modifierAliases = map[string]DateModifier{
	"before": ModBefore,
	"bef":    ModBefore,
	"bef.":   ModBefore,
	"after":  ModAfter,
	"aft":    ModAfter,
	"aft.":   ModAfter,
	"about":  ModAbout,
	"abt":    ModAbout,
	"abt.":   ModAbout,
	"circa":  ModAbout,
	"c.":     ModAbout,
}

// Date is a partial calendar date: year, optionally month and day, with an
// optional modifier. A zero Year means the date is empty.
type Date struct {
	Modifier DateModifier
	Year     int
	Month    int
	Day      int
}

// ParseDate reads "[modifier] YYYY[-MM[-DD]]". Empty text yields an empty date.
func ParseDate(text string) (Date, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Date{}, nil
	}

	var d Date
	fields := strings.Fields(text)
	if len(fields) == 2 {
		mod, ok := modifierAliases[strings.ToLower(fields[0])]
		if !ok {
			return Date{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidDate, fields[0])
		}
		d.Modifier = mod
		text = fields[1]
	} else if len(fields) != 1 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}

	parts := strings.Split(text, "-")
	if len(parts) > 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, text)
		}
		nums[i] = n
	}

	d.Year = nums[0]
	if d.Year == 0 {
		return Date{}, fmt.Errorf("%w: year must be positive", ErrInvalidDate)
	}
	if len(nums) > 1 {
		d.Month = nums[1]
		if d.Month < 1 || d.Month > 12 {
			return Date{}, fmt.Errorf("%w: month out of range", ErrInvalidDate)
		}
	}
	if len(nums) > 2 {
		d.Day = nums[2]
		if d.Day < 1 || d.Day > daysIn(d.Year, d.Month) {
			return Date{}, fmt.Errorf("%w: day out of range", ErrInvalidDate)
		}
	}
	return d, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(text string) Date {
	d, err := ParseDate(text)
	if err != nil {
		panic(err)
	}
	return d
}

// IsEmpty reports whether the date carries no value.
func (d Date) IsEmpty() bool { return d.Year == 0 }

// IsRegular reports whether the date is an exact, unmodified day.
func (d Date) IsRegular() bool {
	return d.Modifier == ModNone && d.Year > 0 && d.Month > 0 && d.Day > 0
}

// Weekday returns the day of the week with Monday = 0. It reports false for
// dates that do not name a single day.
func (d Date) Weekday() (int, bool) {
	if !d.IsRegular() {
		return 0, false
	}
	wd := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % 7, true
}

// Match reports whether two dates may describe the same day. Partial dates
// cover their whole month or year; modifiers widen the span by dateRange
// years in the indicated direction. Empty dates never match.
func (d Date) Match(other Date) bool {
	if d.IsEmpty() || other.IsEmpty() {
		return false
	}
	aStart, aStop := d.span()
	bStart, bStop := other.span()
	return !aStop.Before(bStart) && !bStop.Before(aStart)
}

func (d Date) span() (time.Time, time.Time) {
	start := time.Date(d.Year, time.Month(max(d.Month, 1)), max(d.Day, 1), 0, 0, 0, 0, time.UTC)
	var stop time.Time
	switch {
	case d.Month == 0:
		stop = time.Date(d.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	case d.Day == 0:
		stop = time.Date(d.Year, time.Month(d.Month), daysIn(d.Year, d.Month), 0, 0, 0, 0, time.UTC)
	default:
		stop = start
	}

	switch d.Modifier {
	case ModBefore:
		return start.AddDate(-dateRange, 0, 0), start
	case ModAfter:
		return stop, stop.AddDate(dateRange, 0, 0)
	case ModAbout:
		return start.AddDate(-dateRange, 0, 0), stop.AddDate(dateRange, 0, 0)
	}
	return start, stop
}

func (d Date) String() string {
	if d.IsEmpty() {
		return ""
	}
	s := fmt.Sprintf("%04d", d.Year)
	if d.Month > 0 {
		s += fmt.Sprintf("-%02d", d.Month)
		if d.Day > 0 {
			s += fmt.Sprintf("-%02d", d.Day)
		}
	}
	if d.Modifier != ModNone {
		s = string(d.Modifier) + " " + s
	}
	return s
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
