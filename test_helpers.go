// Test helpers for the famcal package tests: in-memory store doubles
// with scriptable failures and a call log for order assertions.
// These functions are only used in test files.
package famcal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeStore implements RemoteStore in memory.
type fakeStore struct {
	mu     sync.Mutex
	events map[EventRef]Event
	nextID int
	// calls records every remote call as "op calendarID[/eventID]".
	calls []string
	// failOn maps an op name (list/get/insert/patch/delete) to the error
	// that op should return.
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[EventRef]Event),
		failOn: make(map[string]error),
	}
}

// seed stores an event directly, bypassing the call log.
func (f *fakeStore) seed(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.Ref()] = ev
}

func (f *fakeStore) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) record(op string, parts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(append([]string{op}, parts...), " "))
	return f.failOn[op]
}

func (f *fakeStore) ListEvents(_ context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	if err := f.record("list", calendarID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.events {
		if ev.CalendarID != calendarID {
			continue
		}
		if ev.Start.Before(timeMax) && ev.End.After(timeMin) {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

func (f *fakeStore) GetEvent(_ context.Context, calendarID, eventID string) (Event, error) {
	if err := f.record("get", calendarID+"/"+eventID); err != nil {
		return Event{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[EventRef{CalendarID: calendarID, EventID: eventID}]
	if !ok {
		return Event{}, &NotFoundError{CalendarID: calendarID, EventID: eventID}
	}
	return ev, nil
}

func (f *fakeStore) InsertEvent(_ context.Context, calendarID string, ev Event) (Event, error) {
	if err := f.record("insert", calendarID); err != nil {
		return Event{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev.CalendarID = calendarID
	ev.ID = fmt.Sprintf("remote-%d", f.nextID)
	f.events[ev.Ref()] = ev
	return ev, nil
}

func (f *fakeStore) PatchEvent(_ context.Context, calendarID, eventID string, patch EventPatch) (Event, error) {
	if err := f.record("patch", calendarID+"/"+eventID); err != nil {
		return Event{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := EventRef{CalendarID: calendarID, EventID: eventID}
	ev, ok := f.events[ref]
	if !ok {
		return Event{}, &NotFoundError{CalendarID: calendarID, EventID: eventID}
	}
	ev = patch.apply(ev)
	f.events[ref] = ev
	return ev, nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	if err := f.record("delete", calendarID+"/"+eventID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := EventRef{CalendarID: calendarID, EventID: eventID}
	if _, ok := f.events[ref]; !ok {
		return &NotFoundError{CalendarID: calendarID, EventID: eventID}
	}
	delete(f.events, ref)
	return nil
}

// fakeTaskStore implements TaskStore in memory.
type fakeTaskStore struct {
	mu     sync.Mutex
	tasks  map[string]Task
	nextID int
	failOn map[string]error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:  make(map[string]Task),
		failOn: make(map[string]error),
	}
}

func (f *fakeTaskStore) ListTasks(_ context.Context, listID string) ([]Task, error) {
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Task
	for _, t := range f.tasks {
		if t.ListID == listID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) InsertTask(_ context.Context, listID string, t Task) (Task, error) {
	if err := f.failOn["insert"]; err != nil {
		return Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ListID = listID
	t.ID = fmt.Sprintf("task-%d", f.nextID)
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTaskStore) PatchTask(_ context.Context, listID, taskID string, t Task) (Task, error) {
	if err := f.failOn["patch"]; err != nil {
		return Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return Task{}, &NotFoundError{CalendarID: listID, EventID: taskID}
	}
	t.ListID = listID
	t.ID = taskID
	f.tasks[taskID] = t
	return t, nil
}

func (f *fakeTaskStore) DeleteTask(_ context.Context, listID, taskID string) error {
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return &NotFoundError{CalendarID: listID, EventID: taskID}
	}
	delete(f.tasks, taskID)
	return nil
}

// testSources grants full permissions on calendars A and B and read-only
// on calendar R.
func testSources() []CalendarSource {
	full := PermissionSet{Read: true, Create: true, Update: true, Delete: true}
	return []CalendarSource{
		{ID: "calA", Name: "Alex", Color: "#4285f4", Permissions: full},
		{ID: "calB", Name: "Billie", Color: "#ea4335", Permissions: full},
		{ID: "calR", Name: "Shared", Color: "#34a853", Permissions: PermissionSet{Read: true}},
	}
}

func newTestService(store RemoteStore) *Service {
	return NewService(store, testSources(), zerolog.Nop())
}

func newTestTaskBoard(store TaskStore) *TaskBoard {
	return NewTaskBoard(store, "list1", zerolog.Nop())
}

// timedEvent builds a non-recurring event on calA.
func timedEvent(id string, start time.Time, dur time.Duration) Event {
	return Event{
		CalendarID: "calA",
		ID:         id,
		Title:      "event " + id,
		Start:      start,
		End:        start.Add(dur),
	}
}

func strPtr(s string) *string { return &s }

func mustCompile(t *testing.T, r RecurrenceRule) string {
	t.Helper()
	s, err := r.Compile()
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}
	return s
}
