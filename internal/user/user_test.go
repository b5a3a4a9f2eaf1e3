package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStudent(t *testing.T) {
	u := User{
		ID:   "u1",
		Name: "Dana Lee",
		Role: RoleStudent,
		Student: &StudentData{
			Major:     "cs",
			Interests: map[string]string{"club": "robotics"},
		},
	}
	require.NoError(t, u.Validate())
	assert.Equal(t, "robotics", u.InterestMap()["club"])
}

func TestValidateOrganizerRequiresVariantData(t *testing.T) {
	u := User{ID: "u2", Name: "Sam Ortiz", Role: RoleOrganizer}
	assert.Error(t, u.Validate())

	u.Organizer = &OrganizerData{Channel: "push"}
	require.NoError(t, u.Validate())
	assert.Equal(t, "push", u.PreferredChannel())
}

func TestValidateRejectsMismatchedVariant(t *testing.T) {
	u := User{
		ID:       "u3",
		Name:     "Robin Vega",
		Role:     RoleStudent,
		Business: &BusinessData{CompanyName: "Slice Co"},
	}
	assert.Error(t, u.Validate())
}

func TestValidateBusiness(t *testing.T) {
	u := User{
		ID:       "u4",
		Name:     "Slice Co Admin",
		Role:     RoleBusiness,
		Business: &BusinessData{CompanyName: "Slice Co", AdBudget: 120},
	}
	require.NoError(t, u.Validate())

	u.Business.AdBudget = -1
	assert.Error(t, u.Validate())
}

func TestPreferredChannelDefaultsToEmail(t *testing.T) {
	student := User{Name: "Dana Lee", Role: RoleStudent}
	assert.Equal(t, "email", student.PreferredChannel())

	org := User{Name: "Sam Ortiz", Role: RoleOrganizer, Organizer: &OrganizerData{}}
	assert.Equal(t, "email", org.PreferredChannel())
}

func TestValidateRejectsBadChannel(t *testing.T) {
	u := User{
		ID:        "u5",
		Name:      "Sam Ortiz",
		Role:      RoleOrganizer,
		Organizer: &OrganizerData{Channel: "fax"},
	}
	assert.Error(t, u.Validate())
}
