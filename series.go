package famcal

import (
	"context"
	"fmt"
)

// SeriesScope selects how an edit or deletion applies to a recurring
// series.
type SeriesScope string

const (
	// ScopeThis touches only the targeted occurrence.
	ScopeThis SeriesScope = "this"
	// ScopeAll rewrites the series master, affecting every occurrence.
	ScopeAll SeriesScope = "all"
	// ScopeFuture terminates the series before the targeted occurrence
	// and, for edits, starts a new series from it.
	ScopeFuture SeriesScope = "future"
)

// SeriesEditRouter decides which remote calls an edit/delete against a
// possibly-recurring event requires and issues them in order. Steps are
// not retried and earlier committed steps are not compensated when a
// later one fails; the first failure aborts and surfaces as the single
// error for the attempt.
type SeriesEditRouter struct {
	store RemoteStore
}

func NewSeriesEditRouter(store RemoteStore) *SeriesEditRouter {
	return &SeriesEditRouter{store: store}
}

// masterID resolves the series master for an event: its occurrence link,
// or its own id when it carries the rule itself. Empty for non-recurring
// events.
func masterID(ev Event) string {
	if ev.SeriesMasterID != "" {
		return ev.SeriesMasterID
	}
	if len(ev.Recurrence) > 0 {
		return ev.ID
	}
	return ""
}

// ApplyEdit routes an edit and returns the user-visible resulting event:
// the exception event for ScopeThis, the rewritten master for ScopeAll,
// and the successor master for ScopeFuture.
func (r *SeriesEditRouter) ApplyEdit(ctx context.Context, occ Event, fields EventPatch, scope SeriesScope) (Event, error) {
	master := masterID(occ)
	if master == "" {
		// Non-recurring: a plain patch, whatever the scope says.
		ev, err := r.store.PatchEvent(ctx, occ.CalendarID, occ.ID, fields)
		if err != nil {
			return Event{}, fmt.Errorf("update event: %w", err)
		}
		return ev, nil
	}

	switch scope {
	case ScopeThis:
		return r.editOccurrence(ctx, occ, fields)
	case ScopeAll:
		ev, err := r.store.PatchEvent(ctx, occ.CalendarID, master, fields)
		if err != nil {
			return Event{}, fmt.Errorf("update series: %w", err)
		}
		return ev, nil
	case ScopeFuture:
		return r.splitSeries(ctx, occ, fields)
	default:
		return Event{}, validationf("unknown scope %q", scope)
	}
}

// ApplyDelete routes a deletion.
func (r *SeriesEditRouter) ApplyDelete(ctx context.Context, occ Event, scope SeriesScope) error {
	master := masterID(occ)
	if master == "" || scope == ScopeThis {
		// Non-recurring events and single occurrences delete by id; for
		// an occurrence the remote store records a cancellation exception
		// without touching the master.
		if err := r.store.DeleteEvent(ctx, occ.CalendarID, occ.ID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	}

	switch scope {
	case ScopeAll:
		if err := r.store.DeleteEvent(ctx, occ.CalendarID, master); err != nil {
			return fmt.Errorf("delete series: %w", err)
		}
		return nil
	case ScopeFuture:
		_, err := r.terminateBefore(ctx, occ)
		return err
	default:
		return validationf("unknown scope %q", scope)
	}
}

// editOccurrence realizes a single-occurrence edit through the exception
// mechanism: a standalone event carrying the merged fields is inserted
// and the generated occurrence is removed. Patching an occurrence by id
// is not supported uniformly by the remote store, inserting is.
func (r *SeriesEditRouter) editOccurrence(ctx context.Context, occ Event, fields EventPatch) (Event, error) {
	exception := fields.apply(occ)
	exception.ID = ""
	exception.Recurrence = nil
	exception.SeriesMasterID = ""

	inserted, err := r.store.InsertEvent(ctx, occ.CalendarID, exception)
	if err != nil {
		return Event{}, fmt.Errorf("insert exception event: %w", err)
	}
	if err := r.store.DeleteEvent(ctx, occ.CalendarID, occ.ID); err != nil {
		// The exception is already committed; it is not compensated.
		return Event{}, fmt.Errorf("remove replaced occurrence: %w", err)
	}
	return inserted, nil
}

// terminateBefore rewrites the master's rule so the series ends the
// instant before occ's calendar day, and returns the rule that was in
// force before the rewrite.
func (r *SeriesEditRouter) terminateBefore(ctx context.Context, occ Event) (RecurrenceRule, error) {
	if occ.Start.IsZero() {
		return RecurrenceRule{}, validationf("occurrence has no start; cannot split series")
	}

	id := masterID(occ)
	master, err := r.store.GetEvent(ctx, occ.CalendarID, id)
	if err != nil {
		return RecurrenceRule{}, fmt.Errorf("fetch series master: %w", err)
	}
	if len(master.Recurrence) == 0 {
		return RecurrenceRule{}, &SeriesIntegrityError{CalendarID: occ.CalendarID, MasterID: id}
	}
	rule, err := ParseRecurrence(master.Recurrence[0])
	if err != nil {
		return RecurrenceRule{}, fmt.Errorf("parse master rule: %w", err)
	}

	boundary := SeriesBoundary(occ.Start, occ.AllDay)
	predecessor, _ := splitRule(rule, boundary)
	compiled, err := predecessor.Compile()
	if err != nil {
		return RecurrenceRule{}, fmt.Errorf("compile terminated rule: %w", err)
	}
	if _, err := r.store.PatchEvent(ctx, occ.CalendarID, id, EventPatch{Recurrence: []string{compiled}}); err != nil {
		return RecurrenceRule{}, fmt.Errorf("terminate series: %w", err)
	}
	return rule, nil
}

// splitSeries terminates the existing series before occ and inserts a new
// master starting at occ carrying the merged fields and the original,
// unsplit tail of the rule (minus any COUNT; a count-based split loses
// its count semantics).
func (r *SeriesEditRouter) splitSeries(ctx context.Context, occ Event, fields EventPatch) (Event, error) {
	rule, err := r.terminateBefore(ctx, occ)
	if err != nil {
		return Event{}, err
	}

	_, successor := splitRule(rule, SeriesBoundary(occ.Start, occ.AllDay))
	compiled, err := successor.Compile()
	if err != nil {
		return Event{}, fmt.Errorf("compile successor rule: %w", err)
	}

	next := fields.apply(occ)
	next.ID = ""
	next.SeriesMasterID = ""
	next.Recurrence = []string{compiled}

	inserted, err := r.store.InsertEvent(ctx, occ.CalendarID, next)
	if err != nil {
		// The predecessor is already terminated; it is not compensated.
		return Event{}, fmt.Errorf("insert successor series: %w", err)
	}
	return inserted, nil
}
