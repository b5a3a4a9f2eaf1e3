package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub/internal/auth"
	"campushub/internal/config"
	"campushub/internal/registry"
)

func TestRegistryStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{registry.ErrMissingStudent, http.StatusBadRequest},
		{registry.ErrNotFound, http.StatusNotFound},
		{registry.ErrInvalidState, http.StatusForbidden},
		{registry.ErrEventFull, http.StatusForbidden},
		{registry.ErrDuplicateRegistration, http.StatusConflict},
		{registry.ErrValidatorUnavailable, http.StatusServiceUnavailable},
		{registry.ErrReferenceInvalid, http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, msg := registryStatus(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
		assert.Equal(t, tc.err.Error(), msg)
	}
}

func TestBearerClaimsOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.App{JWTSigningKey: "test-signing-key", JWTIssuer: "campushub-test"}

	newCtx := func(authz string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/calendar", nil)
		if authz != "" {
			c.Request.Header.Set("Authorization", authz)
		}
		return c
	}

	// No header: anonymous viewer.
	_, ok := bearerClaims(newCtx(""), cfg)
	assert.False(t, ok)

	// Garbage token: treated as anonymous, never an error.
	_, ok = bearerClaims(newCtx("Bearer not-a-jwt"), cfg)
	assert.False(t, ok)

	token, err := auth.Issue("stu-7", "student", cfg.JWTIssuer, cfg.JWTSigningKey, time.Minute)
	require.NoError(t, err)

	claims, ok := bearerClaims(newCtx("Bearer "+token.Value), cfg)
	require.True(t, ok)
	assert.Equal(t, "stu-7", claims.Subject)
	assert.Equal(t, "student", claims.Role)
}
