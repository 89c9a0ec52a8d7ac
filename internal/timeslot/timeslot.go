// Package timeslot holds minute-resolution time-of-day arithmetic and
// half-open interval checks used by availability and admission.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// DateLayout is the storage format of calendar days.
const DateLayout = "2006-01-02"

var (
	ErrOutOfRange = errors.New("time of day out of range")
	ErrBadFormat  = errors.New("malformed time of day")
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// Valid values are in [00:00, 24:00).
type TimeOfDay int

func New(hour, minute int) (TimeOfDay, error) {
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: minute %d", ErrOutOfRange, minute)
	}
	t := TimeOfDay(hour*60 + minute)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrOutOfRange, hour, minute)
	}
	return t, nil
}

// Hour returns the start of the given hour. Hour(24) is allowed as a
// closing boundary even though it is not a valid TimeOfDay.
func Hour(h int) TimeOfDay {
	return TimeOfDay(h * 60)
}

// Parse accepts "HH:MM" and "HH:MM:SS"; seconds must be zero.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadFormat, s)
		}
		nums[i] = n
	}
	if len(nums) == 3 && nums[2] != 0 {
		return 0, fmt.Errorf("%w: %q has seconds", ErrBadFormat, s)
	}
	return New(nums[0], nums[1])
}

// MustParse is Parse for constants and tests.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AddMinutes shifts t without wrapping past either end of the day.
func AddMinutes(t TimeOfDay, minutes int) (TimeOfDay, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, int(t))
	}
	res := t + TimeOfDay(minutes)
	if !res.Valid() {
		return 0, fmt.Errorf("%w: %s%+d min", ErrOutOfRange, t, minutes)
	}
	return res, nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewInterval builds [start, start+duration). The end may be 24:00 but not
// later.
func NewInterval(start TimeOfDay, durationMinutes int) (Interval, error) {
	if durationMinutes <= 0 {
		return Interval{}, fmt.Errorf("%w: duration %d", ErrOutOfRange, durationMinutes)
	}
	if !start.Valid() {
		return Interval{}, fmt.Errorf("%w: %d", ErrOutOfRange, int(start))
	}
	end := start + TimeOfDay(durationMinutes)
	if end > MinutesPerDay {
		return Interval{}, fmt.Errorf("%w: %s%+d min", ErrOutOfRange, start, durationMinutes)
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

// Within reports whether i lies entirely inside outer.
func (i Interval) Within(outer Interval) bool {
	return i.Start >= outer.Start && i.End <= outer.End
}

func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// ParseDate parses a calendar day into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf drops the clock part of t, keeping its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// At places a time of day on a calendar day in loc.
func At(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
}

// Of returns the time of day of t in its own location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}
