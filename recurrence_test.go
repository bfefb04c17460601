package famcal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRecurrenceRuleCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule RecurrenceRule
		want string
	}{
		{
			name: "unbounded daily",
			rule: RecurrenceRule{Frequency: FreqDaily},
			want: "FREQ=DAILY",
		},
		{
			name: "daily with count carries the seed compensation",
			rule: RecurrenceRule{Frequency: FreqDaily, Count: 10},
			want: "FREQ=DAILY;COUNT=11",
		},
		{
			name: "weekly interval 1 and empty byday are omitted",
			rule: RecurrenceRule{Frequency: FreqWeekly, Interval: 1, ByDay: []Weekday{}},
			want: "FREQ=WEEKLY",
		},
		{
			name: "weekly with interval and days",
			rule: RecurrenceRule{Frequency: FreqWeekly, Interval: 2, ByDay: []Weekday{Wednesday, Monday}},
			want: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE",
		},
		{
			name: "byday order independent",
			rule: RecurrenceRule{Frequency: FreqWeekly, ByDay: []Weekday{Sunday, Friday, Monday}},
			want: "FREQ=WEEKLY;BYDAY=MO,FR,SU",
		},
		{
			name: "monthly with until",
			rule: RecurrenceRule{
				Frequency: FreqMonthly,
				Until:     time.Date(2024, 6, 1, 21, 59, 59, 0, time.UTC),
			},
			want: "FREQ=MONTHLY;UNTIL=20240601T215959Z",
		},
		{
			name: "until is rendered in UTC",
			rule: RecurrenceRule{
				Frequency: FreqDaily,
				Until:     time.Date(2024, 6, 1, 23, 59, 59, 0, time.FixedZone("CEST", 2*60*60)),
			},
			want: "FREQ=DAILY;UNTIL=20240601T215959Z",
		},
		{
			name: "count wins over until",
			rule: RecurrenceRule{
				Frequency: FreqYearly,
				Count:     3,
				Until:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			want: "FREQ=YEARLY;COUNT=4",
		},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.rule.Compile()
			if err != nil {
				t.Fatalf("Compile() unexpected error: %v", err)
			}
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("Compile() mismatch (-got +want):\n%s", diff)
			}
			if !strings.HasPrefix(got, "FREQ=") {
				t.Errorf("Compile() = %q, want FREQ= prefix", got)
			}
			if strings.Contains(got, "COUNT=") && strings.Contains(got, "UNTIL=") {
				t.Errorf("Compile() = %q contains both COUNT and UNTIL", got)
			}
		})
	}
}

func TestRecurrenceRuleCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule RecurrenceRule
	}{
		{name: "missing frequency", rule: RecurrenceRule{}},
		{name: "unknown frequency", rule: RecurrenceRule{Frequency: "HOURLY"}},
		{name: "negative interval", rule: RecurrenceRule{Frequency: FreqDaily, Interval: -1}},
		{name: "negative count", rule: RecurrenceRule{Frequency: FreqDaily, Count: -2}},
		{name: "bad weekday", rule: RecurrenceRule{Frequency: FreqWeekly, ByDay: []Weekday{"XX"}}},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := tt.rule.Compile()
			if err == nil {
				t.Fatal("Compile() expected error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Compile() error = %T, want *ValidationError", err)
			}
		})
	}
}

func TestParseRecurrenceRoundTrip(t *testing.T) {
	t.Parallel()

	rules := []RecurrenceRule{
		{Frequency: FreqDaily},
		{Frequency: FreqDaily, Count: 10},
		{Frequency: FreqWeekly, Interval: 3, ByDay: []Weekday{Monday, Wednesday}},
		{Frequency: FreqMonthly, Until: time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)},
	}

	for _, rule := range rules {
		rule := rule
		t.Run(string(rule.Frequency), func(t *testing.T) {
			t.Parallel()

			compiled := mustCompile(t, rule)
			parsed, err := ParseRecurrence(compiled)
			if err != nil {
				t.Fatalf("ParseRecurrence(%q) unexpected error: %v", compiled, err)
			}
			recompiled := mustCompile(t, parsed)
			if diff := cmp.Diff(recompiled, compiled); diff != "" {
				t.Errorf("round trip mismatch (-got +want):\n%s", diff)
			}
			if parsed.Count != rule.Count {
				t.Errorf("ParseRecurrence() Count = %d, want %d (compensation must be undone)", parsed.Count, rule.Count)
			}
		})
	}
}

func TestParseRecurrence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    RecurrenceRule
		wantErr bool
	}{
		{
			name: "rrule prefix accepted",
			in:   "RRULE:FREQ=WEEKLY;BYDAY=MO",
			want: RecurrenceRule{Frequency: FreqWeekly, ByDay: []Weekday{Monday}},
		},
		{
			name: "date only until",
			in:   "FREQ=DAILY;UNTIL=20240131",
			want: RecurrenceRule{
				Frequency: FreqDaily,
				Until:     time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		{name: "empty", in: "", wantErr: true},
		{name: "missing freq", in: "INTERVAL=2", wantErr: true},
		{name: "malformed part", in: "FREQ=DAILY;COUNT", wantErr: true},
		{name: "unsupported key", in: "FREQ=DAILY;BYSETPOS=1", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRecurrence(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRecurrence(%q) expected error, got nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecurrence(%q) unexpected error: %v", tt.in, err)
			}
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("ParseRecurrence() mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestSeriesBoundary(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name   string
		start  time.Time
		allDay bool
		want   time.Time
	}{
		{
			name:  "timed previous day local",
			start: time.Date(2024, 2, 1, 10, 0, 0, 0, berlin),
			want:  time.Date(2024, 1, 31, 23, 59, 59, 0, berlin),
		},
		{
			name:  "timed mid month",
			start: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			want:  time.Date(2024, 3, 14, 23, 59, 59, 0, time.UTC),
		},
		{
			name:  "timed year boundary rolls over",
			start: time.Date(2024, 1, 1, 8, 0, 0, 0, berlin),
			want:  time.Date(2023, 12, 31, 23, 59, 59, 0, berlin),
		},
		{
			name:   "all day is anchored to UTC",
			start:  NormalizeAllDay(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
			allDay: true,
			want:   time.Date(2024, 1, 14, 23, 59, 59, 0, time.UTC),
		},
		{
			name:   "all day month boundary",
			start:  NormalizeAllDay(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			allDay: true,
			want:   time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SeriesBoundary(tt.start, tt.allDay)
			if !got.Equal(tt.want) {
				t.Errorf("SeriesBoundary() = %v, want %v", got, tt.want)
			}
			if !got.Before(tt.start) {
				t.Errorf("SeriesBoundary() = %v, want before %v", got, tt.start)
			}
		})
	}
}

func TestSplitRule(t *testing.T) {
	t.Parallel()

	boundary := time.Date(2024, 2, 14, 23, 59, 59, 0, time.UTC)
	master := RecurrenceRule{Frequency: FreqWeekly, Interval: 2, Count: 8}

	pred, succ := splitRule(master, boundary)

	if pred.Count != 0 {
		t.Errorf("predecessor Count = %d, want 0 (count discarded on split)", pred.Count)
	}
	if !pred.Until.Equal(boundary) {
		t.Errorf("predecessor Until = %v, want %v", pred.Until, boundary)
	}
	if succ.Count != 0 || !succ.Until.IsZero() {
		t.Errorf("successor termination = (count %d, until %v), want unbounded", succ.Count, succ.Until)
	}
	if succ.Interval != 2 || succ.Frequency != FreqWeekly {
		t.Errorf("successor cadence = %v/%d, want WEEKLY/2", succ.Frequency, succ.Interval)
	}
}
