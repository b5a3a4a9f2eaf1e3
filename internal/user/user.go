// Package user defines campus hub accounts. A single User carries a role tag
// plus role-specific data instead of an inheritance hierarchy.
package user

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Role tags a user as exactly one of the three account kinds.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleBusiness  Role = "business"
)

// StudentData holds the student-specific profile. Interests feed ad targeting
// at calendar render time.
type StudentData struct {
	Major     string            `json:"major,omitempty"`
	Interests map[string]string `json:"interests,omitempty"`
}

// OrganizerData holds the organizer-specific profile. Channel is the
// preferred notification channel ("email" or "push").
type OrganizerData struct {
	Department string `json:"department,omitempty"`
	Channel    string `json:"channel" validate:"omitempty,oneof=email push"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	PushToken  string `json:"push_token,omitempty"`
}

// BusinessData holds the business-specific profile.
type BusinessData struct {
	CompanyName string  `json:"company_name" validate:"required"`
	AdBudget    float64 `json:"ad_budget" validate:"gte=0"`
}

// User is an account of any role. Exactly one of the role data fields is set,
// matching Role.
type User struct {
	ID        string         `json:"id"`
	Name      string         `json:"name" validate:"required,min=2,max=100"`
	Role      Role           `json:"role" validate:"required,oneof=student organizer business"`
	Student   *StudentData   `json:"student,omitempty"`
	Organizer *OrganizerData `json:"organizer,omitempty"`
	Business  *BusinessData  `json:"business,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

var validate = validator.New()

// Validate checks the struct tags and the role/variant pairing.
func (u User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return err
	}
	switch u.Role {
	case RoleStudent:
		if u.Organizer != nil || u.Business != nil {
			return fmt.Errorf("student account cannot carry %s data", otherRole(u))
		}
	case RoleOrganizer:
		if u.Organizer == nil {
			return fmt.Errorf("organizer account requires organizer data")
		}
		if u.Student != nil || u.Business != nil {
			return fmt.Errorf("organizer account cannot carry %s data", otherRole(u))
		}
		if err := validate.Struct(u.Organizer); err != nil {
			return err
		}
	case RoleBusiness:
		if u.Business == nil {
			return fmt.Errorf("business account requires business data")
		}
		if u.Student != nil || u.Organizer != nil {
			return fmt.Errorf("business account cannot carry %s data", otherRole(u))
		}
		if err := validate.Struct(u.Business); err != nil {
			return err
		}
	}
	return nil
}

// InterestMap returns the student's interest map, or nil for other roles.
func (u User) InterestMap() map[string]string {
	if u.Student == nil {
		return nil
	}
	return u.Student.Interests
}

// PreferredChannel returns the organizer's channel preference, defaulting to
// email when unset or when the user is not an organizer.
func (u User) PreferredChannel() string {
	if u.Organizer != nil && u.Organizer.Channel != "" {
		return u.Organizer.Channel
	}
	return "email"
}

func otherRole(u User) string {
	if u.Student != nil && u.Role != RoleStudent {
		return "student"
	}
	if u.Organizer != nil && u.Role != RoleOrganizer {
		return "organizer"
	}
	return "business"
}
