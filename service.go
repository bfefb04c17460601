package famcal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Service is the interface the board UI talks to. It owns the cache, the
// permission checks, and the optimistic lifecycle of every mutation: the
// cache is patched synchronously, the remote call follows, and the patch
// is confirmed or rolled back before the caller sees the result.
type Service struct {
	store   RemoteStore
	cache   *MutationCache
	series  *SeriesEditRouter
	sources map[string]CalendarSource
	order   []string
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[EventRef]struct{}
}

// NewService wires the mutation core around an authenticated store.
// sources declares the family's calendars and the caller's per-calendar
// capabilities.
func NewService(store RemoteStore, sources []CalendarSource, log zerolog.Logger) *Service {
	s := &Service{
		store:    store,
		cache:    NewMutationCache(),
		series:   NewSeriesEditRouter(store),
		sources:  make(map[string]CalendarSource, len(sources)),
		log:      log,
		inflight: make(map[EventRef]struct{}),
	}
	for _, src := range sources {
		s.sources[src.ID] = src
		s.order = append(s.order, src.ID)
	}
	return s
}

// Sources returns the configured calendars in declaration order.
func (s *Service) Sources() []CalendarSource {
	out := make([]CalendarSource, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sources[id])
	}
	return out
}

// Capability names used by permission checks and errors.
const (
	opRead   = "read"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// requirePermission checks the caller's grant on a calendar before any
// remote call is issued.
func (s *Service) requirePermission(calendarID, op string) error {
	src, ok := s.sources[calendarID]
	if !ok {
		return &PermissionError{CalendarID: calendarID, Op: op}
	}
	allowed := map[string]bool{
		opRead:   src.Permissions.Read,
		opCreate: src.Permissions.Create,
		opUpdate: src.Permissions.Update,
		opDelete: src.Permissions.Delete,
	}[op]
	if !allowed {
		return &PermissionError{CalendarID: calendarID, Op: op}
	}
	return nil
}

// begin marks an event as having a mutation in flight. A second mutation
// against the same identity fails with ConflictError rather than racing
// the first (the cache is last-writer-wins and cannot order them).
func (s *Service) begin(ref EventRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[ref]; busy {
		return &ConflictError{Ref: ref}
	}
	s.inflight[ref] = struct{}{}
	return nil
}

func (s *Service) end(ref EventRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, ref)
}

// Window returns the events of the week containing day, serving from the
// cache when the window has been fetched. A fetch lists every readable
// calendar; per-calendar failures are tolerated as long as at least one
// calendar answers, as a partial board beats an empty one.
func (s *Service) Window(ctx context.Context, day time.Time) ([]Event, error) {
	key := windowKey(day)
	if events, ok := s.cache.Get(key); ok {
		return events, nil
	}

	weekStart := WeekOf(day)
	weekEnd := weekStart.AddDate(0, 0, 7)

	var events []Event
	var errs *multierror.Error
	fetched := 0
	for _, id := range s.order {
		if !s.sources[id].Permissions.Read {
			continue
		}
		listed, err := s.store.ListEvents(ctx, id, weekStart, weekEnd)
		if err != nil {
			s.log.Warn().Err(err).Str("calendar", id).Msg("window fetch failed for calendar")
			errs = multierror.Append(errs, err)
			continue
		}
		fetched++
		events = append(events, listed...)
	}
	if fetched == 0 && errs.ErrorOrNil() != nil {
		return nil, fmt.Errorf("fetch window %s: %w", key, errs)
	}

	sortEvents(events)
	s.cache.Put(key, events)
	s.log.Debug().Str("window", key).Int("events", len(events)).Msg("window fetched")
	out, _ := s.cache.Get(key)
	return out, nil
}

// Refresh drops the window containing day and fetches it again.
func (s *Service) Refresh(ctx context.Context, day time.Time) ([]Event, error) {
	s.cache.Invalidate(windowKey(day))
	return s.Window(ctx, day)
}

// EventDraft is the input for creating an event.
type EventDraft struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	// Repeat, when set, makes the created event a series master.
	Repeat *RecurrenceRule
}

// CreateEvent validates and stores a new event. The cache shows the
// event immediately under a placeholder id; on confirmation the
// server-assigned id replaces it.
func (s *Service) CreateEvent(ctx context.Context, draft EventDraft) (Event, error) {
	if err := s.requirePermission(draft.CalendarID, opCreate); err != nil {
		return Event{}, err
	}

	ev := Event{
		CalendarID:  draft.CalendarID,
		ID:          NewPlaceholderID(),
		Title:       draft.Title,
		Description: draft.Description,
		Start:       draft.Start,
		End:         draft.End,
		AllDay:      draft.AllDay,
	}
	if ev.AllDay {
		ev.Start = NormalizeAllDay(ev.Start)
		ev.End = NormalizeAllDay(ev.End)
		if !ev.End.After(ev.Start) {
			// A zero-length all-day draft means a single day; the stored
			// end is exclusive.
			ev.End = ev.Start.AddDate(0, 0, 1)
		}
	}
	if !ev.End.After(ev.Start) {
		return Event{}, validationf("event end must be after start")
	}
	if draft.Repeat != nil {
		rule, err := draft.Repeat.Compile()
		if err != nil {
			return Event{}, err
		}
		ev.Recurrence = []string{rule}
	}

	applied := s.applyOptimistic(nil, &ev)
	inserted, err := s.store.InsertEvent(ctx, draft.CalendarID, ev)
	if err != nil {
		s.rollbackAll(applied)
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	s.confirmAll(applied, map[string]Event{ev.ID: inserted})
	s.log.Info().Str("calendar", inserted.CalendarID).Str("event", inserted.ID).Msg("event created")
	return inserted, nil
}

// UpdateEvent applies a field edit to an event. For recurring targets the
// scope selects occurrence/series/future semantics; for non-recurring
// targets the scope is ignored. Series rewrites (all/future) cannot be
// simulated locally and instead invalidate the cached windows once the
// remote calls settle.
func (s *Service) UpdateEvent(ctx context.Context, ev Event, fields EventPatch, scope SeriesScope) (Event, error) {
	if err := s.requirePermission(ev.CalendarID, opUpdate); err != nil {
		return Event{}, err
	}
	if fields.IsZero() {
		return ev, nil
	}
	if scope == "" || !ev.IsRecurring() {
		scope = ScopeThis
	}
	if err := s.begin(ev.Ref()); err != nil {
		return Event{}, err
	}
	defer s.end(ev.Ref())

	if ev.IsRecurring() && scope != ScopeThis {
		result, err := s.series.ApplyEdit(ctx, ev, fields, scope)
		if err != nil {
			return Event{}, err
		}
		s.invalidateAll()
		s.log.Info().Str("calendar", ev.CalendarID).Str("event", ev.ID).
			Str("scope", string(scope)).Msg("series updated")
		return result, nil
	}

	// Occurrence edits replace the event's identity (exception insert),
	// so the optimistic guess uses a placeholder reconciled on confirm.
	guess := fields.apply(ev)
	if ev.IsRecurring() {
		guess.ID = NewPlaceholderID()
		guess.Recurrence = nil
		guess.SeriesMasterID = ""
	}

	applied := s.applyOptimistic(&ev, &guess)
	result, err := s.series.ApplyEdit(ctx, ev, fields, scope)
	if err != nil {
		s.rollbackAll(applied)
		return Event{}, err
	}
	s.confirmAll(applied, map[string]Event{guess.ID: result})
	s.log.Info().Str("calendar", result.CalendarID).Str("event", result.ID).Msg("event updated")
	return result, nil
}

// DeleteEvent removes an event, an occurrence, a whole series, or a
// series tail depending on scope.
func (s *Service) DeleteEvent(ctx context.Context, ev Event, scope SeriesScope) error {
	if err := s.requirePermission(ev.CalendarID, opDelete); err != nil {
		return err
	}
	if scope == "" || !ev.IsRecurring() {
		scope = ScopeThis
	}
	if err := s.begin(ev.Ref()); err != nil {
		return err
	}
	defer s.end(ev.Ref())

	if ev.IsRecurring() && scope != ScopeThis {
		if err := s.series.ApplyDelete(ctx, ev, scope); err != nil {
			return err
		}
		s.invalidateAll()
		s.log.Info().Str("calendar", ev.CalendarID).Str("event", ev.ID).
			Str("scope", string(scope)).Msg("series deleted")
		return nil
	}

	applied := s.applyOptimistic(&ev, nil)
	if err := s.series.ApplyDelete(ctx, ev, scope); err != nil {
		s.rollbackAll(applied)
		return err
	}
	s.confirmAll(applied, nil)
	s.log.Info().Str("calendar", ev.CalendarID).Str("event", ev.ID).Msg("event deleted")
	return nil
}

// MoveEvent reassigns an event to another calendar. The remote store has
// no cross-calendar move in the mutation contract, so it is realized as
// insert-into-target then delete-from-source; the moved event therefore
// carries a new remote id, reconciled into the cache on confirmation.
func (s *Service) MoveEvent(ctx context.Context, ev Event, toCalendarID string) (Event, error) {
	if toCalendarID == ev.CalendarID {
		return ev, nil
	}
	if err := s.requirePermission(toCalendarID, opCreate); err != nil {
		return Event{}, err
	}
	if err := s.requirePermission(ev.CalendarID, opDelete); err != nil {
		return Event{}, err
	}
	if err := s.begin(ev.Ref()); err != nil {
		return Event{}, err
	}
	defer s.end(ev.Ref())

	guess := ev
	guess.CalendarID = toCalendarID
	guess.ID = NewPlaceholderID()
	guess.SeriesMasterID = ""

	draft := ev
	draft.ID = ""
	draft.SeriesMasterID = ""

	applied := s.applyOptimistic(&ev, &guess)
	inserted, err := s.store.InsertEvent(ctx, toCalendarID, draft)
	if err != nil {
		s.rollbackAll(applied)
		return Event{}, fmt.Errorf("move event: %w", err)
	}
	if err := s.store.DeleteEvent(ctx, ev.CalendarID, ev.ID); err != nil {
		// The copy on the target calendar is committed and stays; the
		// source event also still exists, which is what the pre-move
		// snapshot shows.
		s.rollbackAll(applied)
		return Event{}, fmt.Errorf("move event: remove source: %w", err)
	}
	s.confirmAll(applied, map[string]Event{guess.ID: inserted})
	s.log.Info().Str("from", ev.CalendarID).Str("to", toCalendarID).
		Str("event", inserted.ID).Msg("event moved")
	return inserted, nil
}

// RetimeEvent shifts an event to new bounds, preserving its identity.
// When the change crosses a week boundary both windows receive matched
// optimistic/terminal pairs, resolved independently; failures are
// reported as one combined error.
func (s *Service) RetimeEvent(ctx context.Context, ev Event, start, end time.Time) (Event, error) {
	if err := s.requirePermission(ev.CalendarID, opUpdate); err != nil {
		return Event{}, err
	}
	if !end.After(start) {
		return Event{}, validationf("event end must be after start")
	}
	if err := s.begin(ev.Ref()); err != nil {
		return Event{}, err
	}
	defer s.end(ev.Ref())

	updated := ev
	updated.Start = start
	updated.End = end

	allDay := ev.AllDay
	patch := EventPatch{Start: &start, End: &end, AllDay: &allDay}

	applied := s.applyOptimistic(&ev, &updated)
	result, err := s.store.PatchEvent(ctx, ev.CalendarID, ev.ID, patch)
	if err != nil {
		s.rollbackAll(applied)
		return Event{}, fmt.Errorf("retime event: %w", err)
	}
	s.confirmAll(applied, map[string]Event{ev.ID: result})
	s.log.Info().Str("calendar", ev.CalendarID).Str("event", ev.ID).
		Time("start", start).Msg("event retimed")
	return result, nil
}

// DropEvent realizes a drag-and-drop: the drop target is compiled into
// primitive ops and executed in order. A move is awaited before any
// retime so the retime targets the post-move identity.
func (s *Service) DropEvent(ctx context.Context, ev Event, drop DropTarget) (Event, error) {
	current := ev
	for _, op := range RouteDrop(ev, drop) {
		var err error
		switch op.Kind {
		case OpMove:
			current, err = s.MoveEvent(ctx, current, op.ToCalendarID)
		case OpRetime:
			current, err = s.RetimeEvent(ctx, current, op.Start, op.End)
		}
		if err != nil {
			return Event{}, fmt.Errorf("drop event: %w", err)
		}
	}
	return current, nil
}

// appliedPatch records one window's optimistic patch for later
// confirmation or rollback.
type appliedPatch struct {
	key     string
	patchID string
}

// applyOptimistic patches the windows touched by replacing old with
// upsert (either may be nil for pure inserts/deletes). A cross-window
// change yields two independent patches.
func (s *Service) applyOptimistic(old, upsert *Event) []appliedPatch {
	var applied []appliedPatch
	apply := func(key string, patch CachePatch) {
		s.cache.OptimisticApply(key, patch)
		applied = append(applied, appliedPatch{key: key, patchID: patch.ID})
	}

	switch {
	case old == nil && upsert == nil:
		return nil
	case old == nil:
		patch := NewCachePatch()
		patch.Upsert = []Event{*upsert}
		apply(windowKey(upsert.Start), patch)
	case upsert == nil:
		patch := NewCachePatch()
		patch.Remove = []EventRef{old.Ref()}
		apply(windowKey(old.Start), patch)
	default:
		oldKey := windowKey(old.Start)
		newKey := windowKey(upsert.Start)
		if oldKey == newKey {
			patch := NewCachePatch()
			patch.Remove = []EventRef{old.Ref()}
			patch.Upsert = []Event{*upsert}
			apply(oldKey, patch)
			break
		}
		out := NewCachePatch()
		out.Remove = []EventRef{old.Ref()}
		apply(oldKey, out)
		in := NewCachePatch()
		in.Upsert = []Event{*upsert}
		apply(newKey, in)
	}
	return applied
}

func (s *Service) confirmAll(applied []appliedPatch, resolved map[string]Event) {
	for _, p := range applied {
		s.cache.Confirm(p.key, p.patchID, resolved)
	}
}

func (s *Service) rollbackAll(applied []appliedPatch) {
	for _, p := range applied {
		s.cache.Rollback(p.key, p.patchID)
	}
}

// invalidateAll drops every cached window. Series rewrites change an
// unknown set of occurrences, so every window is suspect.
func (s *Service) invalidateAll() {
	for _, key := range s.cache.Keys() {
		s.cache.Invalidate(key)
	}
}
