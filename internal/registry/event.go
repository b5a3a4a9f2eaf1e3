// Package registry owns events, their attendee sets, and status transitions.
// Registration is the transactional core: the duplicate check and the
// attendee add are a single critical section per event.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"campushub/internal/reference"
)

// Status is the event lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// ErrInvalidState is returned when an operation is not valid in the event's
// current lifecycle state.
var ErrInvalidState = errors.New("operation not valid in current event state")

// ErrDuplicateRegistration is returned when a student registers twice for the
// same event. The net effect matches a successful call, so handlers surface
// it as an informational conflict rather than a hard failure.
var ErrDuplicateRegistration = errors.New("student already registered for this event")

// ErrReferenceInvalid is returned when an event reference fails verification.
var ErrReferenceInvalid = errors.New("event reference failed verification")

// ErrValidatorUnavailable is returned when the verification service itself
// cannot be reached. Fail-closed: the operation is refused, but callers may
// retry.
var ErrValidatorUnavailable = errors.New("reference validator unavailable")

// ErrEventFull is returned when a capacity-bounded event has no seats left.
var ErrEventFull = errors.New("event is fully booked")

// ErrMissingStudent is returned when a registration arrives without a
// student identity. A caller problem, not a lifecycle one.
var ErrMissingStudent = errors.New("student id is required")

// Event is a campus event created by an organizer.
type Event struct {
	ID          string                `json:"id"`
	OrganizerID string                `json:"organizer_id" validate:"required"`
	Name        string                `json:"name" validate:"required,min=3,max=140"`
	Description string                `json:"description" validate:"max=2000"`
	StartsAt    time.Time             `json:"starts_at"`
	Status      Status                `json:"status"`
	References  []reference.Reference `json:"references"`
	Capacity    int                   `json:"capacity" validate:"gte=0"` // 0 means unbounded
	CreatedAt   time.Time             `json:"created_at"`
}

// Registration is one attendee record: the (event, student) pair plus when it
// was made.
type Registration struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	StudentID string    `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RegistrationResult is the outcome of a successful registration. Warning is
// set when the organizer notification could not be handed off; the
// registration itself still stands.
type RegistrationResult struct {
	Registration Registration `json:"registration"`
	Warning      string       `json:"warning,omitempty"`
}

// Notice describes a new registration for the organizer notification.
type Notice struct {
	EventID      string    `json:"event_id"`
	EventName    string    `json:"event_name"`
	OrganizerID  string    `json:"organizer_id"`
	StudentID    string    `json:"student_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Notifier hands a registration notice off for delivery. Implementations must
// not block past their own timeout; delivery failure never unwinds the
// registration.
type Notifier interface {
	NotifyRegistration(ctx context.Context, n Notice) error
}

var validate = validator.New()

// ValidateEvent checks the struct tags on an event.
func ValidateEvent(e Event) error {
	return validate.Struct(e)
}
