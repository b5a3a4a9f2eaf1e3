// Package ads computes which sponsored placements fill a calendar view and
// tracks raw impression counts. Placement is a pure function of the calendar
// and a catalog snapshot; it never mutates the catalog.
package ads

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when a requested ad does not exist.
var ErrNotFound = errors.New("ad not found")

// Ad is a business-owned placement with targeting criteria.
type Ad struct {
	ID             string            `json:"id"`
	BusinessID     string            `json:"business_id" validate:"required"`
	Title          string            `json:"title" validate:"required,min=3,max=140"`
	TargetCriteria map[string]string `json:"target_criteria"`
	ViewCount      int64             `json:"view_count"`
	Active         bool              `json:"active"`
	Budget         float64           `json:"budget" validate:"gte=0"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Calendar is the view-time input to placement: how many events the calendar
// shows and the viewer's interest attributes.
type Calendar struct {
	EventCount    int
	UserInterests map[string]string
}

var validate = validator.New()

// ValidateAd checks the struct tags on an ad.
func ValidateAd(a Ad) error {
	return validate.Struct(a)
}
