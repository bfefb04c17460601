package famcal

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ValidationError reports a structurally invalid recurrence rule or a
// mutation intent missing a field it requires.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that the target event or series master no longer
// exists remotely.
type NotFoundError struct {
	CalendarID string
	EventID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("event %s not found in calendar %s", e.EventID, e.CalendarID)
}

// PermissionError reports a missing calendar-level capability. It is
// raised before any remote call is issued.
type PermissionError struct {
	CalendarID string
	Op         string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("no %s permission on calendar %s", e.Op, e.CalendarID)
}

// SeriesIntegrityError reports that a series-scoped operation resolved a
// master that unexpectedly carries no repeat rule.
type SeriesIntegrityError struct {
	CalendarID string
	MasterID   string
}

func (e *SeriesIntegrityError) Error() string {
	return fmt.Sprintf("series master %s in calendar %s has no repeat rule", e.MasterID, e.CalendarID)
}

// ConflictError reports a mutation issued against an event that already
// has a mutation in flight. The earlier mutation must settle first.
type ConflictError struct {
	Ref EventRef
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event %s in calendar %s has a mutation in flight", e.Ref.EventID, e.Ref.CalendarID)
}

// RemoteError wraps a remote store rejection that maps to no more
// specific kind. The original message is preserved via Unwrap.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// wrapRemote classifies an error returned by the vendor SDK. 404 and 410
// become NotFoundError; everything else is wrapped as a RemoteError for
// the given operation.
func wrapRemote(op, calendarID, eventID string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return &NotFoundError{CalendarID: calendarID, EventID: eventID}
		}
	}
	return &RemoteError{Op: op, Err: err}
}
