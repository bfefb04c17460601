package famcal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// eventStatusCancelled marks remotely deleted occurrences returned by list.
const eventStatusCancelled = "cancelled"

// rrulePrefix is the property name the remote store attaches to rule
// strings; the core works with bare rules and the adapter translates.
const rrulePrefix = "RRULE:"

// RemoteStore is the CRUD contract the mutation core needs from the
// remote event store. The concrete vendor API is hidden behind it so
// tests can substitute a double.
type RemoteStore interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error)
	// GetEvent fails with a NotFoundError if the event is absent.
	GetEvent(ctx context.Context, calendarID, eventID string) (Event, error)
	// InsertEvent stores a new event and returns it with the remote id
	// assigned.
	InsertEvent(ctx context.Context, calendarID string, ev Event) (Event, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// GoogleStore implements RemoteStore against the Google Calendar API.
type GoogleStore struct {
	svc *calendar.Service
}

// NewGoogleStore builds the store from an authenticated HTTP client
// (see NewServiceAccountClient). The client is injected rather than
// constructed lazily so tests and callers control its lifetime.
func NewGoogleStore(ctx context.Context, client *http.Client) (*GoogleStore, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleStore{svc: svc}, nil
}

func (g *GoogleStore) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	call := g.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	var events []Event
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			ev, ok := fromAPIEvent(calendarID, item)
			if ok {
				events = append(events, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapRemote("list", calendarID, "", err)
	}
	return events, nil
}

func (g *GoogleStore) GetEvent(ctx context.Context, calendarID, eventID string) (Event, error) {
	item, err := g.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, wrapRemote("get", calendarID, eventID, err)
	}
	ev, ok := fromAPIEvent(calendarID, item)
	if !ok {
		return Event{}, &NotFoundError{CalendarID: calendarID, EventID: eventID}
	}
	return ev, nil
}

func (g *GoogleStore) InsertEvent(ctx context.Context, calendarID string, ev Event) (Event, error) {
	item, err := g.svc.Events.Insert(calendarID, toAPIEvent(ev)).Context(ctx).Do()
	if err != nil {
		return Event{}, wrapRemote("insert", calendarID, "", err)
	}
	inserted, _ := fromAPIEvent(calendarID, item)
	return inserted, nil
}

func (g *GoogleStore) PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch) (Event, error) {
	item, err := g.svc.Events.Patch(calendarID, eventID, toAPIPatch(patch)).Context(ctx).Do()
	if err != nil {
		return Event{}, wrapRemote("patch", calendarID, eventID, err)
	}
	patched, _ := fromAPIEvent(calendarID, item)
	return patched, nil
}

func (g *GoogleStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapRemote("delete", calendarID, eventID, err)
	}
	return nil
}

// fromAPIEvent converts a vendor event. Cancelled events and events with
// no usable start are dropped (ok == false).
func fromAPIEvent(calendarID string, item *calendar.Event) (Event, bool) {
	if item == nil || item.Status == eventStatusCancelled {
		return Event{}, false
	}
	if item.Start == nil || item.End == nil {
		return Event{}, false
	}

	ev := Event{
		CalendarID:     calendarID,
		ID:             item.Id,
		Title:          item.Summary,
		Description:    item.Description,
		SeriesMasterID: item.RecurringEventId,
	}
	for _, rule := range item.Recurrence {
		if r, found := strings.CutPrefix(rule, rrulePrefix); found {
			ev.Recurrence = append(ev.Recurrence, r)
		}
		// RDATE/EXDATE lines are not modeled and are dropped.
	}

	if item.Start.Date != "" {
		start, err := time.Parse("2006-01-02", item.Start.Date)
		if err != nil {
			return Event{}, false
		}
		end, err := time.Parse("2006-01-02", item.End.Date)
		if err != nil {
			return Event{}, false
		}
		ev.AllDay = true
		ev.Start = NormalizeAllDay(start)
		ev.End = NormalizeAllDay(end)
		return ev, true
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, false
	}
	ev.Start = start
	ev.End = end
	return ev, true
}

func toAPIEvent(ev Event) *calendar.Event {
	item := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       toAPIDateTime(ev.Start, ev.AllDay),
		End:         toAPIDateTime(ev.End, ev.AllDay),
	}
	for _, rule := range ev.Recurrence {
		item.Recurrence = append(item.Recurrence, rrulePrefix+rule)
	}
	return item
}

func toAPIPatch(patch EventPatch) *calendar.Event {
	item := &calendar.Event{}
	if patch.Title != nil {
		item.Summary = *patch.Title
		item.ForceSendFields = append(item.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		item.Description = *patch.Description
		item.ForceSendFields = append(item.ForceSendFields, "Description")
	}
	allDay := patch.AllDay != nil && *patch.AllDay
	if patch.Start != nil {
		item.Start = toAPIDateTime(*patch.Start, allDay)
	}
	if patch.End != nil {
		item.End = toAPIDateTime(*patch.End, allDay)
	}
	if patch.Recurrence != nil {
		for _, rule := range patch.Recurrence {
			item.Recurrence = append(item.Recurrence, rrulePrefix+rule)
		}
		item.ForceSendFields = append(item.ForceSendFields, "Recurrence")
	}
	return item
}

func toAPIDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.UTC().Format("2006-01-02")}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}
