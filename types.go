// Package famcal is the mutation core of a shared family calendar built
// on top of Google Calendar and Google Tasks. It owns the recurring-event
// edit semantics (single occurrence, whole series, this-and-future splits),
// the drag reassignment routing, and a window-keyed cache that applies
// mutations optimistically and rolls them back on remote failure.
package famcal

import "time"

// Frequency is the repeat cadence of a recurring event.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// Weekday is a two-letter weekday code as used in repeat rules.
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// RecurrenceRule is the structured, user-facing description of a repeat
// schedule. Compile turns it into the wire-level rule string carried on a
// series master.
type RecurrenceRule struct {
	Frequency Frequency
	// Interval is the gap between occurrences (every N days/weeks/...).
	// Zero means 1 and is omitted from the compiled form.
	Interval int
	// ByDay restricts WEEKLY rules to a set of weekdays. Order does not
	// matter; an empty set is omitted from the compiled form.
	ByDay []Weekday
	// Count terminates the series after N occurrences beyond the seed.
	// The compiled form carries Count+1 because the remote store excludes
	// the seed occurrence from its count. Count wins over Until when an
	// inconsistent caller sets both.
	Count int
	// Until terminates the series at an inclusive cutoff instant.
	Until time.Time
}

// Event is one materialized calendar entry. Identity is the
// (CalendarID, ID) pair; moving an event to another calendar assigns a
// new remote id.
type Event struct {
	CalendarID  string    `json:"calendarId"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	// AllDay events are date-only: Start and End are normalized to UTC
	// midnight and End is exclusive (the day after the last included day).
	AllDay bool `json:"allDay"`
	// Recurrence holds the compiled repeat rules and is present only on
	// a series master.
	Recurrence []string `json:"recurrence,omitempty"`
	// SeriesMasterID links a generated occurrence back to its master.
	// Absent on masters and on non-recurring events.
	SeriesMasterID string `json:"seriesMasterId,omitempty"`
}

// IsOccurrence reports whether the event was generated from a series
// master rather than stored directly.
func (e Event) IsOccurrence() bool {
	return e.SeriesMasterID != ""
}

// IsRecurring reports whether the event participates in a series, either
// as a generated occurrence or as the master itself.
func (e Event) IsRecurring() bool {
	return e.SeriesMasterID != "" || len(e.Recurrence) > 0
}

// Duration returns End - Start. For all-day events this is a whole number
// of days.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Ref identifies the event for in-flight tracking and patch bookkeeping.
func (e Event) Ref() EventRef {
	return EventRef{CalendarID: e.CalendarID, EventID: e.ID}
}

// EventRef is the identity pair of an event.
type EventRef struct {
	CalendarID string
	EventID    string
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	// AllDay must accompany Start/End so the adapter knows whether to
	// send dates or instants.
	AllDay *bool
	// Recurrence replaces the master's rule list when non-nil.
	Recurrence []string
}

// apply merges the patch into a copy of the event.
func (p EventPatch) apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Recurrence != nil {
		e.Recurrence = append([]string(nil), p.Recurrence...)
	}
	return e
}

// IsZero reports whether the patch changes nothing.
func (p EventPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Start == nil &&
		p.End == nil && p.AllDay == nil && p.Recurrence == nil
}

// PermissionSet is the per-caller capability grant on one calendar.
type PermissionSet struct {
	Read   bool `yaml:"read" json:"read"`
	Create bool `yaml:"create" json:"create"`
	Update bool `yaml:"update" json:"update"`
	Delete bool `yaml:"delete" json:"delete"`
}

// CalendarSource is one family member's calendar.
type CalendarSource struct {
	// ID is the remote calendar id.
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Color       string        `yaml:"color" json:"color"`
	Permissions PermissionSet `yaml:"permissions" json:"permissions"`
}

// Task is one entry on the task board. Identity is the (ListID, ID) pair.
type Task struct {
	ListID string    `json:"listId"`
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Notes  string    `json:"notes,omitempty"`
	Due    time.Time `json:"due,omitempty"`
	// Status is one of "needsAction" or "completed".
	Status string `json:"status"`
	// Meta is structured metadata carried inside the remote notes field,
	// since the remote API has no custom fields.
	Meta map[string]string `json:"meta,omitempty"`
}

// MetaAssignee is the metadata key holding the assigned family member.
const MetaAssignee = "assignee"

// Task status values used by the remote store.
const (
	TaskNeedsAction = "needsAction"
	TaskCompleted   = "completed"
)

// WeekOf returns the Monday-aligned start of the week containing t, at
// midnight in t's location. It is the windowing function for the cache.
func WeekOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	// Weekday() has Sunday == 0; shift so Monday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// windowKey is the cache key for the week containing t.
func windowKey(t time.Time) string {
	return WeekOf(t).Format("2006-01-02")
}

// NormalizeAllDay snaps an instant to UTC midnight of its calendar day.
// All-day events are stored date-only and must not drift with local
// offsets.
func NormalizeAllDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
