package famcal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// untilLayout is the compact UTC timestamp used for UNTIL values.
const untilLayout = "20060102T150405Z"

var validFrequencies = map[Frequency]bool{
	FreqDaily:   true,
	FreqWeekly:  true,
	FreqMonthly: true,
	FreqYearly:  true,
}

var validWeekdays = map[Weekday]bool{
	Monday: true, Tuesday: true, Wednesday: true, Thursday: true,
	Friday: true, Saturday: true, Sunday: true,
}

// weekdayOrder fixes the emission order of BYDAY codes so that compiled
// rules are deterministic regardless of caller ordering.
var weekdayOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Compile turns the rule into its wire form, e.g.
// "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE;COUNT=11". INTERVAL is omitted when
// 1 and BYDAY when empty. COUNT is emitted as Count+1: the remote store
// excludes the seed occurrence from its count, and the compensation lives
// here because the compiler is the only producer of wire rules. COUNT and
// UNTIL are mutually exclusive in the output; COUNT wins.
func (r RecurrenceRule) Compile() (string, error) {
	if !validFrequencies[r.Frequency] {
		return "", validationf("unknown frequency %q", r.Frequency)
	}
	if r.Interval < 0 {
		return "", validationf("negative interval %d", r.Interval)
	}
	if r.Count < 0 {
		return "", validationf("negative count %d", r.Count)
	}
	for _, d := range r.ByDay {
		if !validWeekdays[d] {
			return "", validationf("unknown weekday code %q", d)
		}
	}

	parts := []string{"FREQ=" + string(r.Frequency)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		parts = append(parts, "BYDAY="+joinWeekdays(r.ByDay))
	}
	switch {
	case r.Count > 0:
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count+1))
	case !r.Until.IsZero():
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	}
	return strings.Join(parts, ";"), nil
}

func joinWeekdays(days []Weekday) string {
	seen := make(map[Weekday]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}
	var ordered []string
	for _, d := range weekdayOrder {
		if seen[d] {
			ordered = append(ordered, string(d))
		}
	}
	return strings.Join(ordered, ",")
}

// ParseRecurrence is the inverse of Compile over the dialect Compile
// emits. It exists so a master's stored rule can be rewritten (the
// this-and-future split fetches the rule, terminates it, and re-emits).
// The COUNT compensation is undone on the way in, so parse(compile(r))
// restores r's termination. An optional "RRULE:" prefix is accepted.
func ParseRecurrence(s string) (RecurrenceRule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	if s == "" {
		return RecurrenceRule{}, validationf("empty recurrence rule")
	}

	var rule RecurrenceRule
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return RecurrenceRule{}, validationf("malformed rule part %q", part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			f := Frequency(strings.ToUpper(value))
			if !validFrequencies[f] {
				return RecurrenceRule{}, validationf("unknown frequency %q", value)
			}
			rule.Frequency = f
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return RecurrenceRule{}, validationf("bad interval %q", value)
			}
			rule.Interval = n
		case "BYDAY":
			for _, code := range strings.Split(value, ",") {
				d := Weekday(strings.ToUpper(code))
				if !validWeekdays[d] {
					return RecurrenceRule{}, validationf("unknown weekday code %q", code)
				}
				rule.ByDay = append(rule.ByDay, d)
			}
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return RecurrenceRule{}, validationf("bad count %q", value)
			}
			// Undo the seed-occurrence compensation applied by Compile.
			rule.Count = n - 1
		case "UNTIL":
			t, err := parseUntil(value)
			if err != nil {
				return RecurrenceRule{}, validationf("bad until %q", value)
			}
			rule.Until = t
		default:
			return RecurrenceRule{}, validationf("unsupported rule part %q", key)
		}
	}
	if rule.Frequency == "" {
		return RecurrenceRule{}, validationf("rule missing FREQ")
	}
	return rule, nil
}

func parseUntil(value string) (time.Time, error) {
	if t, err := time.Parse(untilLayout, value); err == nil {
		return t, nil
	}
	// Some producers emit date-only UNTIL values.
	return time.Parse("20060102", value)
}

// SeriesBoundary returns the latest instant strictly before the calendar
// day of start that can terminate a series so that the given occurrence
// and everything after it falls outside the rule while earlier
// occurrences stay in.
//
// Timed occurrences use 23:59:59 of the previous day in the occurrence's
// own zone. All-day occurrences use 23:59:59 UTC of the previous day:
// all-day semantics are date-only and must not shift with local offsets,
// matching the remote store's own all-day UNTIL convention.
func SeriesBoundary(start time.Time, allDay bool) time.Time {
	loc := start.Location()
	if allDay {
		start = start.UTC()
		loc = time.UTC
	}
	prev := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	return time.Date(prev.Year(), prev.Month(), prev.Day(), 23, 59, 59, 0, loc)
}

// splitRule derives the two rules of a this-and-future split from a
// master's current rule. The predecessor keeps the cadence but is
// terminated at boundary (its COUNT, if any, is discarded: a count-based
// split loses its count semantics). The successor keeps the original,
// unsplit tail of the rule minus any COUNT.
func splitRule(master RecurrenceRule, boundary time.Time) (predecessor, successor RecurrenceRule) {
	predecessor = master
	predecessor.Count = 0
	predecessor.Until = boundary

	successor = master
	successor.Count = 0
	return predecessor, successor
}

// Describe renders the rule for logs and CLI output, e.g.
// "every 2 weeks on MO, WE until 2024-06-01".
func (r RecurrenceRule) Describe() string {
	unit := map[Frequency]string{
		FreqDaily:   "day",
		FreqWeekly:  "week",
		FreqMonthly: "month",
		FreqYearly:  "year",
	}[r.Frequency]

	var b strings.Builder
	if r.Interval > 1 {
		fmt.Fprintf(&b, "every %d %ss", r.Interval, unit)
	} else {
		fmt.Fprintf(&b, "every %s", unit)
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			codes[i] = string(d)
		}
		sort.Strings(codes)
		fmt.Fprintf(&b, " on %s", strings.Join(codes, ", "))
	}
	switch {
	case r.Count > 0:
		fmt.Fprintf(&b, ", %d times", r.Count)
	case !r.Until.IsZero():
		fmt.Fprintf(&b, " until %s", r.Until.UTC().Format("2006-01-02"))
	}
	return b.String()
}
