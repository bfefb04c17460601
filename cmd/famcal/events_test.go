package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/famboard/famcal"
)

func weekFixture() (time.Time, []famcal.CalendarSource) {
	monday := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	sources := []famcal.CalendarSource{
		{ID: "calA", Name: "Alex"},
		{ID: "calB", Name: "Billie"},
	}
	return monday, sources
}

func renderWeek(t *testing.T, events []famcal.Event) string {
	t.Helper()

	monday, sources := weekFixture()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	printWeek(cmd, sources, time.UTC, monday, events)
	return buf.String()
}

func TestPrintWeek(t *testing.T) {
	t.Parallel()

	monday, _ := weekFixture()
	events := []famcal.Event{
		{
			CalendarID: "calA",
			ID:         "master1",
			Title:      "piano",
			Start:      monday.Add(10 * time.Hour),
			End:        monday.Add(11 * time.Hour),
			Recurrence: []string{"FREQ=WEEKLY;BYDAY=MO"},
		},
		{
			CalendarID:     "calB",
			ID:             "master2_occ",
			Title:          "swim class",
			SeriesMasterID: "master2",
			Start:          monday.AddDate(0, 0, 2).Add(16 * time.Hour),
			End:            monday.AddDate(0, 0, 2).Add(17 * time.Hour),
		},
		{
			CalendarID: "calA",
			ID:         "ev1",
			Title:      "holiday",
			Start:      monday.AddDate(0, 0, 4),
			End:        monday.AddDate(0, 0, 5),
			AllDay:     true,
		},
	}

	// An occurrence has no rule of its own; rendering it must not reach
	// into an empty Recurrence slice.
	out := renderWeek(t, events)

	for _, want := range []string{
		"Mon 2024-01-15",
		"10:00-11:00",
		"piano",
		"(every week on MO)",
		"swim class",
		"Billie",
		"all day",
		"holiday",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printWeek() output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "(every") != 1 {
		t.Errorf("printWeek() described a rule for a ruleless event:\n%s", out)
	}
}

func TestFindEvent(t *testing.T) {
	t.Parallel()

	monday, _ := weekFixture()
	events := []famcal.Event{
		{CalendarID: "calA", ID: "ev1", Title: "dentist", Start: monday, End: monday.Add(time.Hour)},
		{CalendarID: "calB", ID: "ev1", Title: "soccer", Start: monday, End: monday.Add(time.Hour)},
	}

	tests := []struct {
		name      string
		ref       famcal.EventRef
		wantTitle string
		wantOK    bool
	}{
		{
			name:      "match scoped by calendar",
			ref:       famcal.EventRef{CalendarID: "calB", EventID: "ev1"},
			wantTitle: "soccer",
			wantOK:    true,
		},
		{
			name:   "id on wrong calendar",
			ref:    famcal.EventRef{CalendarID: "calA", EventID: "ev2"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := findEvent(events, tt.ref)
			if ok != tt.wantOK {
				t.Fatalf("findEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Title != tt.wantTitle {
				t.Errorf("findEvent() = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}
