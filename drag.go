package famcal

import "time"

// OpKind discriminates the primitive operations a drop compiles into.
type OpKind string

const (
	// OpMove reassigns the event to another calendar. The event gets a
	// new remote id on the target calendar.
	OpMove OpKind = "move"
	// OpRetime changes the event's start/end. Duration is always
	// preserved by the router.
	OpRetime OpKind = "retime"
)

// PrimitiveOp is one step of a drop. Ops are executed in slice order; a
// move is always issued and awaited before a retime against the same
// event, because a retime sent to the pre-move calendar would target a
// stale identity.
type PrimitiveOp struct {
	Kind OpKind
	// ToCalendarID is the move target.
	ToCalendarID string
	// Start/End are the retime bounds.
	Start time.Time
	End   time.Time
}

// DropTarget describes where an event was released. Date is always
// present (date-only, midnight in the drop zone's location). CalendarID
// is empty when the drop stays in the event's own column; HasTime is
// false for drops on day headers or all-day lanes.
type DropTarget struct {
	Date       time.Time
	CalendarID string
	Hour       int
	Minute     int
	HasTime    bool
}

// sameCalendar reports whether the drop leaves the owning calendar alone.
func (d DropTarget) sameCalendar(ev Event) bool {
	return d.CalendarID == "" || d.CalendarID == ev.CalendarID
}

// RouteDrop compiles a drop target into the primitive ops that realize
// it. An empty result means the drop changes nothing.
func RouteDrop(ev Event, drop DropTarget) []PrimitiveOp {
	if ev.AllDay {
		return routeAllDayDrop(ev, drop)
	}

	var ops []PrimitiveOp
	if !drop.sameCalendar(ev) {
		ops = append(ops, PrimitiveOp{Kind: OpMove, ToCalendarID: drop.CalendarID})
	}

	dur := ev.Duration()
	var start time.Time
	switch {
	case drop.HasTime:
		// Dropped on an hour slot: take the slot's time of day.
		start = time.Date(drop.Date.Year(), drop.Date.Month(), drop.Date.Day(),
			drop.Hour, drop.Minute, 0, 0, ev.Start.Location())
	default:
		// Column-level or date-only drop: keep the original time of day.
		start = time.Date(drop.Date.Year(), drop.Date.Month(), drop.Date.Day(),
			ev.Start.Hour(), ev.Start.Minute(), ev.Start.Second(), ev.Start.Nanosecond(),
			ev.Start.Location())
	}
	ops = append(ops, PrimitiveOp{Kind: OpRetime, Start: start, End: start.Add(dur)})
	return ops
}

func routeAllDayDrop(ev Event, drop DropTarget) []PrimitiveOp {
	var ops []PrimitiveOp
	if !drop.sameCalendar(ev) {
		ops = append(ops, PrimitiveOp{Kind: OpMove, ToCalendarID: drop.CalendarID})
	}

	date := NormalizeAllDay(drop.Date)
	if !date.Equal(ev.Start) {
		// Date-only shift preserving the span in days; all-day-ness is
		// kept (hour/minute on the drop are ignored).
		ops = append(ops, PrimitiveOp{Kind: OpRetime, Start: date, End: date.Add(ev.Duration())})
	}
	return ops
}
