package famcal

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// CachePatch is one optimistic mutation against a window: a set of
// removals followed by a set of upserts. Upserted events may carry
// placeholder ids (see NewPlaceholderID); Confirm swaps in the
// server-assigned identity.
type CachePatch struct {
	ID     string
	Remove []EventRef
	Upsert []Event
}

// NewCachePatch allocates a patch with a fresh id.
func NewCachePatch() CachePatch {
	return CachePatch{ID: uuid.NewString()}
}

// NewPlaceholderID returns a cache-local event id for an optimistic
// insert whose remote id is not yet known.
func NewPlaceholderID() string {
	return "pending-" + uuid.NewString()
}

// MutationCache is the window-keyed store of materialized events the
// views render from. Windows are keyed by the Monday-aligned week start
// (see WeekOf). Reads are never blocked by in-flight mutations; a read
// during a mutation observes the optimistic state.
type MutationCache struct {
	mu      sync.RWMutex
	windows map[string]*cacheWindow
}

type cacheWindow struct {
	events []Event
	// pending maps a patch id to the verbatim pre-mutation snapshot
	// used by Rollback.
	pending map[string][]Event
}

func NewMutationCache() *MutationCache {
	return &MutationCache{windows: make(map[string]*cacheWindow)}
}

// Get returns the cached events for the window, or ok == false if the
// window has not been fetched (or was invalidated).
func (c *MutationCache) Get(key string) ([]Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.windows[key]
	if !ok {
		return nil, false
	}
	return copyEvents(w.events), true
}

// Put replaces the window's contents with a fresh fetch result. Pending
// optimistic state for the window is discarded: the fetch is newer than
// any guess.
func (c *MutationCache) Put(key string, events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := copyEvents(events)
	sortEvents(sorted)
	c.windows[key] = &cacheWindow{
		events:  sorted,
		pending: make(map[string][]Event),
	}
}

// OptimisticApply applies the patch to the window immediately and
// records a snapshot for rollback. It never fails: applying to an
// unfetched window is a no-op, since nothing renders from it.
func (c *MutationCache) OptimisticApply(key string, patch CachePatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok {
		return
	}
	w.pending[patch.ID] = copyEvents(w.events)

	events := w.events
	for _, ref := range patch.Remove {
		events = removeEvent(events, ref)
	}
	for _, ev := range patch.Upsert {
		events = upsertEvent(events, ev)
	}
	sortEvents(events)
	w.events = events
}

// Confirm settles an optimistic patch after remote success. resolved maps
// placeholder event ids to the server-confirmed events that replace them;
// it may be nil when the optimistic guess already matches the server.
func (c *MutationCache) Confirm(key, patchID string, resolved map[string]Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok {
		return
	}
	delete(w.pending, patchID)
	for placeholder, ev := range resolved {
		for i := range w.events {
			if w.events[i].ID == placeholder {
				w.events[i] = ev
				break
			}
		}
	}
	sortEvents(w.events)
}

// Rollback restores the window to its verbatim pre-mutation snapshot.
// Rolling back a patch that was never applied (or already settled) is a
// no-op.
func (c *MutationCache) Rollback(key, patchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.windows[key]
	if !ok {
		return
	}
	snapshot, ok := w.pending[patchID]
	if !ok {
		return
	}
	delete(w.pending, patchID)
	w.events = snapshot
}

// Keys returns the keys of all currently cached windows.
func (c *MutationCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.windows))
	for key := range c.windows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Invalidate drops the window entirely, forcing the next read through a
// fresh fetch. It is the recovery path for mutations whose effect cannot
// be simulated locally (series splits).
func (c *MutationCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, key)
}

func copyEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}

func removeEvent(events []Event, ref EventRef) []Event {
	out := events[:0]
	for _, ev := range events {
		if ev.Ref() != ref {
			out = append(out, ev)
		}
	}
	return out
}

func upsertEvent(events []Event, ev Event) []Event {
	for i := range events {
		if events[i].Ref() == ev.Ref() {
			events[i] = ev
			return events
		}
	}
	return append(events, ev)
}
