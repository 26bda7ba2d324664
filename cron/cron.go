// Package cron parses five-field cron expressions and evaluates them against
// wall-clock times.
//
// Fields are minute (0-59), hour (0-23), day of month (1-31), month (1-12)
// and day of week (0-6, Sunday is 0). Months and weekdays may also be given
// by their three-letter English names (JAN-DEC, SUN-SAT), in any case. Each
// field accepts "*", comma lists,
// ranges "a-b" and steps "base/n" where base is "*", a range or a single
// start value. A time matches when every field matches; day of month and day
// of week are not OR-combined.
package cron

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/flowkit/errors"
)

// SearchHorizon is the number of minutes Next scans before giving up.
const SearchHorizon = 525600

type bounds struct {
	name     string
	min, max int
	// names[i] is an alias for min+i.
	names []string
}

var fieldBounds = [5]bounds{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12, names: []string{
		"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
	}},
	{name: "day-of-week", min: 0, max: 6, names: []string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}},
}

// field is the explicit value set of one cron field.
type field struct {
	values []int
	set    [64]bool
}

func (f *field) has(v int) bool {
	return v >= 0 && v < len(f.set) && f.set[v]
}

// Schedule is a parsed cron expression.
type Schedule struct {
	expr   string
	fields [5]field
}

// Parse parses a five-field cron expression.
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, errors.CronParse(expr, "expected 5 fields, got "+strconv.Itoa(len(parts)))
	}
	s := &Schedule{expr: strings.Join(parts, " ")}
	for i, part := range parts {
		f, err := parseField(part, fieldBounds[i])
		if err != nil {
			return nil, errors.CronParse(expr, err.Error())
		}
		s.fields[i] = f
	}
	return s, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) *Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the normalized expression.
func (s *Schedule) String() string { return s.expr }

// Minutes returns the sorted minute values.
func (s *Schedule) Minutes() []int { return clone(s.fields[0].values) }

// Hours returns the sorted hour values.
func (s *Schedule) Hours() []int { return clone(s.fields[1].values) }

// DaysOfMonth returns the sorted day-of-month values.
func (s *Schedule) DaysOfMonth() []int { return clone(s.fields[2].values) }

// Months returns the sorted month values (1-12).
func (s *Schedule) Months() []int { return clone(s.fields[3].values) }

// DaysOfWeek returns the sorted day-of-week values (0 = Sunday).
func (s *Schedule) DaysOfWeek() []int { return clone(s.fields[4].values) }

// Matches reports whether t, in its own location, satisfies every field.
func (s *Schedule) Matches(t time.Time) bool {
	return s.fields[0].has(t.Minute()) &&
		s.fields[1].has(t.Hour()) &&
		s.fields[2].has(t.Day()) &&
		s.fields[3].has(int(t.Month())) &&
		s.fields[4].has(int(t.Weekday()))
}

// Next returns the first matching minute strictly after from. The search
// starts at from truncated to the minute plus one minute and gives up after
// SearchHorizon minutes with a CRON_NO_MATCH error.
func (s *Schedule) Next(from time.Time) (time.Time, error) {
	t := truncateMinute(from).Add(time.Minute)
	for i := 0; i < SearchHorizon; i++ {
		if s.Matches(t) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, errors.CronNoMatch(s.expr)
}

// Matches parses expr and evaluates it against t.
func Matches(t time.Time, expr string) (bool, error) {
	s, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return s.Matches(t), nil
}

// Next parses expr and returns its next occurrence after from.
func Next(expr string, from time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(from)
}

// truncateMinute drops seconds and sub-second precision in t's location.
func truncateMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

func parseField(spec string, b bounds) (field, error) {
	var f field
	if spec == "" {
		return f, fieldError(b, spec, "empty field")
	}
	for _, item := range strings.Split(spec, ",") {
		if err := parseItem(item, b, &f); err != nil {
			return f, err
		}
	}
	for v := b.min; v <= b.max; v++ {
		if f.set[v] {
			f.values = append(f.values, v)
		}
	}
	sort.Ints(f.values)
	return f, nil
}

func parseItem(item string, b bounds, f *field) error {
	if item == "" {
		return fieldError(b, item, "empty list element")
	}
	base, stepSpec, hasStep := strings.Cut(item, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepSpec)
		if err != nil || n <= 0 {
			return fieldError(b, item, "step must be a positive integer")
		}
		step = n
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = b.min, b.max
	case strings.Contains(base, "-"):
		from, to, _ := strings.Cut(base, "-")
		var err error
		if lo, err = parseValue(from, b, item); err != nil {
			return err
		}
		if hi, err = parseValue(to, b, item); err != nil {
			return err
		}
		if lo > hi {
			return fieldError(b, item, "range start exceeds end")
		}
	default:
		v, err := parseValue(base, b, item)
		if err != nil {
			return err
		}
		lo, hi = v, v
		if hasStep {
			hi = b.max
		}
	}

	for v := lo; v <= hi; v += step {
		f.set[v] = true
	}
	return nil
}

func parseValue(s string, b bounds, item string) (int, error) {
	if i := slices.Index(b.names, strings.ToUpper(s)); i >= 0 {
		return b.min + i, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fieldError(b, item, "not a number")
	}
	if v < b.min || v > b.max {
		return 0, fieldError(b, item, "value out of range "+strconv.Itoa(b.min)+"-"+strconv.Itoa(b.max))
	}
	return v, nil
}

type parseError struct {
	field, item, reason string
}

func (e *parseError) Error() string {
	return e.field + " field " + strconv.Quote(e.item) + ": " + e.reason
}

func fieldError(b bounds, item, reason string) error {
	return &parseError{field: b.name, item: item, reason: reason}
}

func clone(v []int) []int {
	out := make([]int, len(v))
	copy(out, v)
	return out
}
