package cron

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/flowkit/errors"
)

func utc(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

// --- Parse tests ---

func TestParse_FieldSets(t *testing.T) {
	s, err := Parse("*/15 9-17/4 1,15 */3 1-5")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	checks := []struct {
		name string
		got  []int
		want []int
	}{
		{"minutes", s.Minutes(), []int{0, 15, 30, 45}},
		{"hours", s.Hours(), []int{9, 13, 17}},
		{"days of month", s.DaysOfMonth(), []int{1, 15}},
		{"months", s.Months(), []int{1, 4, 7, 10}},
		{"days of week", s.DaysOfWeek(), []int{1, 2, 3, 4, 5}},
	}
	for _, c := range checks {
		if diff := cmp.Diff(c.want, c.got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.name, diff)
		}
	}
}

func TestParse_StepFromValue(t *testing.T) {
	s := MustParse("5/20 * * * *")
	if diff := cmp.Diff([]int{5, 25, 45}, s.Minutes()); diff != "" {
		t.Errorf("minutes mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"*/x * * * *",
		"a * * * *",
		"5-1 * * * *",
		"1,,2 * * * *",
	}
	for _, expr := range bad {
		_, err := Parse(expr)
		if err == nil {
			t.Errorf("expected parse error for %q", expr)
			continue
		}
		if !errors.HasCode(err, errors.ErrCodeCronParse) {
			t.Errorf("expected CRON_PARSE_ERROR for %q, got %v", expr, err)
		}
	}
}

func TestParse_NormalizesWhitespace(t *testing.T) {
	s := MustParse("  0   12 *  * * ")
	if s.String() != "0 12 * * *" {
		t.Errorf("expected normalized expression, got %q", s.String())
	}
}

// --- Matches tests ---

func TestMatches_EveryFifteenMinutes(t *testing.T) {
	s := MustParse("*/15 * * * *")
	for m := 0; m < 60; m++ {
		got := s.Matches(utc(2024, time.March, 10, 7, m))
		want := m%15 == 0
		if got != want {
			t.Errorf("minute %d: expected %v, got %v", m, want, got)
		}
	}
}

func TestMatches_AndSemanticsForDays(t *testing.T) {
	// 2024-06-15 is a Saturday; 2024-06-17 is a Monday.
	s := MustParse("0 0 15 * 1")
	if s.Matches(utc(2024, time.June, 15, 0, 0)) {
		t.Error("day-of-month alone must not match when day-of-week differs")
	}
	if s.Matches(utc(2024, time.June, 17, 0, 0)) {
		t.Error("day-of-week alone must not match when day-of-month differs")
	}
	// 2024-07-15 is a Monday.
	if !s.Matches(utc(2024, time.July, 15, 0, 0)) {
		t.Error("expected match when both day fields agree")
	}
}

func TestParse_MonthAndWeekdayNames(t *testing.T) {
	s := MustParse("0 9 * jan,JUL Mon-Fri")
	want := MustParse("0 9 * 1,7 1-5")
	for _, at := range []time.Time{
		utc(2024, time.July, 15, 9, 0),    // Monday
		utc(2024, time.July, 13, 9, 0),    // Saturday
		utc(2024, time.June, 17, 9, 0),    // Monday in June
		utc(2024, time.January, 31, 9, 0), // Wednesday
	} {
		if got := s.Matches(at); got != want.Matches(at) {
			t.Errorf("%s: names matched %v, numbers matched %v", at, got, want.Matches(at))
		}
	}
	if !s.Matches(utc(2024, time.July, 15, 9, 0)) {
		t.Error("expected a Monday in July to match")
	}
	for _, expr := range []string{"0 0 * * FUN", "0 0 * SAT *", "MON * * * *"} {
		if _, err := Parse(expr); !errors.HasCode(err, errors.ErrCodeCronParse) {
			t.Errorf("expected CRON_PARSE_ERROR for %q, got %v", expr, err)
		}
	}
}

func TestMatches_SundayIsZero(t *testing.T) {
	s := MustParse("30 8 * * 0")
	if !s.Matches(utc(2024, time.June, 16, 8, 30)) {
		t.Error("2024-06-16 is a Sunday and should match")
	}
}

func TestMatches_Helper(t *testing.T) {
	ok, err := Matches(utc(2024, time.January, 1, 0, 0), "0 0 1 1 *")
	if err != nil || !ok {
		t.Errorf("expected match, got %v, %v", ok, err)
	}
	if _, err := Matches(time.Now(), "bad"); err == nil {
		t.Error("expected parse error from helper")
	}
}

// --- Next tests ---

func TestNext_NewYear(t *testing.T) {
	got, err := Next("0 0 1 1 *", utc(2024, time.June, 15, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2025, time.January, 1, 0, 0); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNext_StrictlyAfterAndTruncated(t *testing.T) {
	s := MustParse("*/15 * * * *")
	from := time.Date(2024, time.June, 15, 10, 15, 42, 500, time.UTC)
	got, err := s.Next(from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2024, time.June, 15, 10, 30); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("expected seconds truncated, got %v", got)
	}
}

func TestNext_RespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	from := time.Date(2024, time.June, 15, 8, 0, 0, 0, loc)
	got, err := Next("0 9 * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 9 || got.Location() != loc {
		t.Errorf("expected 09:00 in the caller's zone, got %v", got)
	}
}

func TestNext_NoMatch(t *testing.T) {
	_, err := Next("0 0 31 2 *", utc(2024, time.January, 1, 0, 0))
	if !errors.HasCode(err, errors.ErrCodeCronNoMatch) {
		t.Fatalf("expected CRON_NO_MATCH, got %v", err)
	}
}

// --- Cache tests ---

func TestCache(t *testing.T) {
	c := NewCache()
	a, err := c.Get("0 * * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := c.Get("0 * * * *")
	if a != b {
		t.Error("expected cached instance to be reused")
	}
	if _, err := c.Get("nope"); err == nil {
		t.Error("expected parse error")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", c.Len())
	}
}
