package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("org-1", "organizer", "campushub", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token.Value, "secret", "campushub")
	require.NoError(t, err)
	assert.Equal(t, "org-1", claims.Subject)
	assert.Equal(t, "organizer", claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := Issue("org-1", "organizer", "campushub", "secret", time.Minute)
	require.NoError(t, err)

	_, err = Parse(token.Value, "other-secret", "campushub")
	assert.Error(t, err)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token, err := Issue("org-1", "organizer", "someone-else", "secret", time.Minute)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "campushub")
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := Issue("org-1", "organizer", "campushub", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token.Value, "secret", "campushub")
	assert.Error(t, err)
}
