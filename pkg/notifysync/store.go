package notifysync

import (
	"sort"
	"sync"
)

// DefaultDisplayCap bounds how many events the store retains for display.
// The unread count is not affected by the cap.
const DefaultDisplayCap = 20

// Store is the single authoritative collection of notification events for a
// session. The stream handler, the fetch handler and the acknowledge path
// all funnel through its merge methods, so convergence does not depend on
// arrival order.
//
// The unread count is derived from the retained item set plus a carry. The
// carry counts unread events the item set cannot see: unread history beyond
// the first fetched page, and unread items evicted by the display cap.
type Store struct {
	mu     sync.RWMutex
	items  map[string]Event
	cap    int
	carry  int
	primed bool
}

func NewStore(displayCap int) *Store {
	if displayCap <= 0 {
		displayCap = DefaultDisplayCap
	}
	return &Store{
		items: make(map[string]Event),
		cap:   displayCap,
	}
}

// mergeEvent combines an existing event with an incoming copy of the same
// id. Read is monotone: once true it never reverts. Remaining fields are
// last-write-wins.
func mergeEvent(existing, incoming Event) Event {
	incoming.Read = existing.Read || incoming.Read
	return incoming
}

// Merge applies one event from the live stream (or any other producer).
// Merging the same event twice is a no-op beyond the first merge.
func (s *Store) Merge(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(ev)
	s.primed = true
}

// MergeSnapshot unions a fetch result into the store. Fetch and stream race,
// so this never replaces wholesale; it applies the same monotone merge per
// id that the stream path uses, making the two orders commute.
//
// The server-reported unread count is only consulted the first time state is
// applied, to seed the carry with unread history beyond the returned page.
// Once any local state exists the scalar may be stale and is ignored; the
// count stays derived from what the store knows.
func (s *Store) MergeSnapshot(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hadState := s.primed

	for _, ev := range snap.Items {
		s.upsert(ev)
	}

	if !hadState {
		if extra := snap.UnreadCount - s.unreadLocked(); extra > 0 {
			s.carry = extra
		}
	}
	s.primed = true
}

// upsert inserts or monotone-merges one event, then enforces the display
// cap. Callers hold the lock.
func (s *Store) upsert(ev Event) {
	if existing, ok := s.items[ev.ID]; ok {
		s.items[ev.ID] = mergeEvent(existing, ev)
		return
	}
	s.items[ev.ID] = ev

	// Evict oldest by creation time once over the cap. Evicted unread items
	// move into the carry so the count survives eviction.
	for len(s.items) > s.cap {
		oldestID := ""
		for id, it := range s.items {
			if oldestID == "" || it.CreatedAt.Before(s.items[oldestID].CreatedAt) {
				oldestID = id
			}
		}
		if !s.items[oldestID].Read {
			s.carry++
		}
		delete(s.items, oldestID)
	}
}

// MarkRead flips one event to read. Reports whether anything changed, so
// callers can skip redundant server round-trips.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.items[id]
	if !ok || ev.Read {
		return false
	}
	ev.Read = true
	s.items[id] = ev
	return true
}

// MarkAllRead flips every known event to read and clears the carry, since
// mark-all covers the evicted and beyond-page history server-side too.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ev := range s.items {
		if !ev.Read {
			ev.Read = true
			s.items[id] = ev
		}
	}
	s.carry = 0
}

// UnreadCount is always derived from the item set plus the carry, never a
// transmitted scalar.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carry + s.unreadLocked()
}

func (s *Store) unreadLocked() int {
	n := 0
	for _, ev := range s.items {
		if !ev.Read {
			n++
		}
	}
	return n
}

// Items returns the events ordered for display: unread first, then newest
// first. Ordering is computed here at read time, storage is unordered.
func (s *Store) Items() []Event {
	s.mu.RLock()
	out := make([]Event, 0, len(s.items))
	for _, ev := range s.items {
		out = append(out, ev)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Read != out[j].Read {
			return !out[i].Read
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Len reports how many events the store currently retains for display.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear wipes all state. Called on session teardown so nothing leaks into a
// later session of a different identity.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Event)
	s.carry = 0
	s.primed = false
}
