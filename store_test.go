package famcal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/calendar/v3"
)

func TestFromAPIEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		item    *calendar.Event
		wantOK  bool
		checkFn func(*testing.T, Event)
	}{
		{
			name: "timed event",
			item: &calendar.Event{
				Id:      "event1",
				Summary: "Dentist",
				Start:   &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00Z"},
				End:     &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00Z"},
			},
			wantOK: true,
			checkFn: func(t *testing.T, e Event) {
				if e.ID != "event1" || e.Title != "Dentist" {
					t.Errorf("fromAPIEvent() = %+v, want id event1 title Dentist", e)
				}
				if e.AllDay {
					t.Error("fromAPIEvent() AllDay = true, want false")
				}
				if e.Duration() != time.Hour {
					t.Errorf("fromAPIEvent() duration = %v, want 1h", e.Duration())
				}
			},
		},
		{
			name: "all-day event normalized to UTC midnight",
			item: &calendar.Event{
				Id:    "event2",
				Start: &calendar.EventDateTime{Date: "2024-01-15"},
				End:   &calendar.EventDateTime{Date: "2024-01-16"},
			},
			wantOK: true,
			checkFn: func(t *testing.T, e Event) {
				if !e.AllDay {
					t.Fatal("fromAPIEvent() AllDay = false, want true")
				}
				want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
				if !e.Start.Equal(want) {
					t.Errorf("fromAPIEvent() Start = %v, want %v", e.Start, want)
				}
				if !e.End.Equal(want.AddDate(0, 0, 1)) {
					t.Errorf("fromAPIEvent() End = %v, want exclusive next day", e.End)
				}
			},
		},
		{
			name: "recurring master strips RRULE prefix",
			item: &calendar.Event{
				Id:         "event3",
				Start:      &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00Z"},
				End:        &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00Z"},
				Recurrence: []string{"RRULE:FREQ=WEEKLY;BYDAY=MO", "EXDATE;VALUE=DATE:20240122"},
			},
			wantOK: true,
			checkFn: func(t *testing.T, e Event) {
				want := []string{"FREQ=WEEKLY;BYDAY=MO"}
				if diff := cmp.Diff(e.Recurrence, want); diff != "" {
					t.Errorf("fromAPIEvent() Recurrence mismatch (-got +want):\n%s", diff)
				}
			},
		},
		{
			name: "occurrence carries series master link",
			item: &calendar.Event{
				Id:               "event3_occ",
				RecurringEventId: "event3",
				Start:            &calendar.EventDateTime{DateTime: "2024-01-22T09:00:00Z"},
				End:              &calendar.EventDateTime{DateTime: "2024-01-22T10:00:00Z"},
			},
			wantOK: true,
			checkFn: func(t *testing.T, e Event) {
				if e.SeriesMasterID != "event3" {
					t.Errorf("fromAPIEvent() SeriesMasterID = %q, want event3", e.SeriesMasterID)
				}
			},
		},
		{
			name: "cancelled event dropped",
			item: &calendar.Event{
				Id:     "event4",
				Status: "cancelled",
				Start:  &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00Z"},
				End:    &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00Z"},
			},
			wantOK: false,
		},
		{
			name:   "event without start dropped",
			item:   &calendar.Event{Id: "event5"},
			wantOK: false,
		},
		{
			name: "unparseable time dropped",
			item: &calendar.Event{
				Id:    "event6",
				Start: &calendar.EventDateTime{DateTime: "not-a-time"},
				End:   &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00Z"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt // Capture loop variable
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := fromAPIEvent("calA", tt.item)
			if ok != tt.wantOK {
				t.Fatalf("fromAPIEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.CalendarID != "calA" {
				t.Errorf("fromAPIEvent() CalendarID = %q, want calA", got.CalendarID)
			}
			if tt.checkFn != nil && ok {
				tt.checkFn(t, got)
			}
		})
	}
}

func TestToAPIEventRoundTrip(t *testing.T) {
	t.Parallel()

	ev := Event{
		CalendarID:  "calA",
		Title:       "Soccer",
		Description: "bring cleats",
		Start:       time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC),
		Recurrence:  []string{"FREQ=WEEKLY;BYDAY=MO"},
	}

	item := toAPIEvent(ev)
	if item.Start.DateTime == "" || item.Start.Date != "" {
		t.Errorf("toAPIEvent() timed event must use DateTime, got %+v", item.Start)
	}
	if len(item.Recurrence) != 1 || item.Recurrence[0] != "RRULE:FREQ=WEEKLY;BYDAY=MO" {
		t.Errorf("toAPIEvent() Recurrence = %v, want RRULE prefix added", item.Recurrence)
	}

	back, ok := fromAPIEvent("calA", item)
	if !ok {
		t.Fatal("fromAPIEvent() dropped a converted event")
	}
	back.ID = ev.ID // the fake item has no id
	if diff := cmp.Diff(back, ev); diff != "" {
		t.Errorf("conversion round trip mismatch (-got +want):\n%s", diff)
	}
}

func TestToAPIEventAllDayUsesDates(t *testing.T) {
	t.Parallel()

	ev := Event{
		Title:  "Holiday",
		Start:  time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
		AllDay: true,
	}

	item := toAPIEvent(ev)
	if item.Start.Date != "2024-07-01" || item.End.Date != "2024-07-02" {
		t.Errorf("toAPIEvent() all-day dates = %q/%q, want 2024-07-01/2024-07-02", item.Start.Date, item.End.Date)
	}
	if item.Start.DateTime != "" {
		t.Errorf("toAPIEvent() all-day event must not carry DateTime, got %q", item.Start.DateTime)
	}
}

func TestToAPIPatch(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	allDay := false
	patch := EventPatch{
		Title:      strPtr(""),
		Start:      &start,
		End:        &end,
		AllDay:     &allDay,
		Recurrence: []string{"FREQ=DAILY"},
	}

	item := toAPIPatch(patch)

	// An explicit empty title must survive the patch (ForceSendFields).
	found := false
	for _, f := range item.ForceSendFields {
		if f == "Summary" {
			found = true
		}
	}
	if !found {
		t.Error("toAPIPatch() empty Summary not force-sent")
	}
	if item.Start.DateTime == "" {
		t.Error("toAPIPatch() Start not set")
	}
	if len(item.Recurrence) != 1 || item.Recurrence[0] != "RRULE:FREQ=DAILY" {
		t.Errorf("toAPIPatch() Recurrence = %v, want single RRULE entry", item.Recurrence)
	}
}
