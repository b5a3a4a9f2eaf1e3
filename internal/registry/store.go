package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/reference"
)

// Store persists events and attendee sets. AddAttendee is the critical
// section: implementations must make the duplicate check and the add atomic
// per event, so two concurrent calls for the same student never both succeed.
type Store interface {
	CreateEvent(ctx context.Context, e Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context, status Status) ([]Event, error)
	TransitionStatus(ctx context.Context, id string, to Status, from ...Status) error
	HasAttendee(ctx context.Context, eventID, studentID string) (bool, error)
	AddAttendee(ctx context.Context, eventID, studentID string) (Registration, error)
	ListAttendees(ctx context.Context, eventID string) ([]Registration, error)
}

// MemoryStore is a map-backed store for dev and tests, mirroring the
// memory/redis backend split of the work queue.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*memEvent
}

type memEvent struct {
	mu        sync.Mutex
	event     Event
	attendees map[string]Registration
	order     []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*memEvent)}
}

// CreateEvent stores a new event.
func (s *MemoryStore) CreateEvent(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = &memEvent{event: e, attendees: make(map[string]Registration)}
	return nil
}

// GetEvent returns a copy of the event or ErrNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	rec, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	evt := rec.event
	evt.References = append([]reference.Reference(nil), rec.event.References...)
	return &evt, nil
}

// ListEvents returns events in the given status, creation order.
func (s *MemoryStore) ListEvents(ctx context.Context, status Status) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, rec := range s.events {
		rec.mu.Lock()
		if rec.event.Status == status {
			out = append(out, rec.event)
		}
		rec.mu.Unlock()
	}
	sortEventsByCreation(out)
	return out, nil
}

// TransitionStatus moves the event to the target status if its current status
// is one of from. Cancelled is terminal.
func (s *MemoryStore) TransitionStatus(ctx context.Context, id string, to Status, from ...Status) error {
	s.mu.RLock()
	rec, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, f := range from {
		if rec.event.Status == f {
			rec.event.Status = to
			return nil
		}
	}
	return ErrInvalidState
}

// HasAttendee reports whether the student is already registered.
func (s *MemoryStore) HasAttendee(ctx context.Context, eventID, studentID string) (bool, error) {
	s.mu.RLock()
	rec, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return false, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, exists := rec.attendees[studentID]
	return exists, nil
}

// AddAttendee re-checks state, capacity, and duplicates under the per-event
// lock before adding.
func (s *MemoryStore) AddAttendee(ctx context.Context, eventID, studentID string) (Registration, error) {
	s.mu.RLock()
	rec, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return Registration{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.event.Status != StatusPublished {
		return Registration{}, ErrInvalidState
	}
	if _, exists := rec.attendees[studentID]; exists {
		return Registration{}, ErrDuplicateRegistration
	}
	if rec.event.Capacity > 0 && len(rec.attendees) >= rec.event.Capacity {
		return Registration{}, ErrEventFull
	}
	reg := Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		StudentID: studentID,
		CreatedAt: time.Now().UTC(),
	}
	rec.attendees[studentID] = reg
	rec.order = append(rec.order, studentID)
	return reg, nil
}

// ListAttendees returns registrations in registration order.
func (s *MemoryStore) ListAttendees(ctx context.Context, eventID string) ([]Registration, error) {
	s.mu.RLock()
	rec, ok := s.events[eventID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]Registration, 0, len(rec.order))
	for _, sid := range rec.order {
		out = append(out, rec.attendees[sid])
	}
	return out, nil
}

func sortEventsByCreation(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
