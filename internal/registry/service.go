package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"campushub/internal/reference"
)

var registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "campushub_registrations_total",
	Help: "Registration attempts by outcome.",
}, []string{"outcome"})

// Service coordinates event lifecycle and the registration transaction.
type Service struct {
	store           Store
	validator       reference.Validator
	notifier        Notifier
	validateTimeout time.Duration
}

// NewService creates a service. notifier may be nil, in which case organizer
// notifications are skipped.
func NewService(store Store, validator reference.Validator, notifier Notifier, validateTimeout time.Duration) *Service {
	if validateTimeout <= 0 {
		validateTimeout = 10 * time.Second
	}
	return &Service{
		store:           store,
		validator:       validator,
		notifier:        notifier,
		validateTimeout: validateTimeout,
	}
}

// CreateEvent validates and stores a new draft event.
func (s *Service) CreateEvent(ctx context.Context, e Event) (*Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Status = StatusDraft
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := ValidateEvent(e); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEvent returns an event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*Event, error) {
	return s.store.GetEvent(ctx, id)
}

// ListPublished returns published events in creation order.
func (s *Service) ListPublished(ctx context.Context) ([]Event, error) {
	return s.store.ListEvents(ctx, StatusPublished)
}

// ListAttendees returns registrations for an event.
func (s *Service) ListAttendees(ctx context.Context, eventID string) ([]Registration, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListAttendees(ctx, eventID)
}

// Register records a student for a published event.
//
// Checks run in a fixed order so the caller sees the first applicable
// failure: missing event, wrong state, duplicate, invalid reference. All
// references must verify before any attendee write; the store re-checks
// state and duplicates atomically with the add, so the mutation is all or
// nothing. The organizer notification happens after the add, outside any
// lock, and a hand-off failure only produces a warning.
func (s *Service) Register(ctx context.Context, eventID, studentID string) (*RegistrationResult, error) {
	if studentID == "" {
		return nil, ErrMissingStudent
	}

	evt, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		registrationsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if evt.Status != StatusPublished {
		registrationsTotal.WithLabelValues("invalid_state").Inc()
		return nil, ErrInvalidState
	}
	if dup, err := s.store.HasAttendee(ctx, eventID, studentID); err != nil {
		return nil, err
	} else if dup {
		registrationsTotal.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateRegistration
	}
	if err := s.validateReferences(ctx, evt.References); err != nil {
		registrationsTotal.WithLabelValues("reference_invalid").Inc()
		return nil, err
	}

	reg, err := s.store.AddAttendee(ctx, eventID, studentID)
	if err != nil {
		registrationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	registrationsTotal.WithLabelValues("success").Inc()

	result := &RegistrationResult{Registration: reg}
	if s.notifier != nil {
		notice := Notice{
			EventID:      evt.ID,
			EventName:    evt.Name,
			OrganizerID:  evt.OrganizerID,
			StudentID:    studentID,
			RegisteredAt: reg.CreatedAt,
		}
		if err := s.notifier.NotifyRegistration(ctx, notice); err != nil {
			log.Printf("notification hand-off failed for event %s: %v", evt.ID, err)
			result.Warning = "registration confirmed, organizer notification delayed"
		}
	}
	return result, nil
}

// Publish transitions a draft event to published, gated on every attached
// reference verifying. A failed or unreachable check leaves the event draft.
func (s *Service) Publish(ctx context.Context, eventID string) (*Event, error) {
	evt, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if evt.Status != StatusDraft {
		return nil, ErrInvalidState
	}
	if err := s.validateReferences(ctx, evt.References); err != nil {
		return nil, err
	}
	if err := s.store.TransitionStatus(ctx, eventID, StatusPublished, StatusDraft); err != nil {
		return nil, err
	}
	evt.Status = StatusPublished
	return evt, nil
}

// Cancel moves an event to the terminal cancelled state.
func (s *Service) Cancel(ctx context.Context, eventID string) error {
	return s.store.TransitionStatus(ctx, eventID, StatusCancelled, StatusDraft, StatusPublished)
}

// validateReferences checks every reference concurrently. References are
// independent, so order does not matter, but all must pass; the first
// failure reported wins, with validator outages taking precedence so the
// caller knows a retry may succeed.
func (s *Service) validateReferences(ctx context.Context, refs []reference.Reference) error {
	if len(refs) == 0 || s.validator == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.validateTimeout)
	defer cancel()

	results := make([]reference.Result, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref reference.Reference) {
			defer wg.Done()
			results[i] = s.validator.Validate(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	for _, res := range results {
		if !res.Valid && res.Unavailable {
			return fmt.Errorf("%w: %s", ErrValidatorUnavailable, res.Details)
		}
	}
	for _, res := range results {
		if !res.Valid {
			return fmt.Errorf("%w: %s", ErrReferenceInvalid, res.Details)
		}
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, ErrEventFull):
		return "full"
	default:
		return "error"
	}
}
