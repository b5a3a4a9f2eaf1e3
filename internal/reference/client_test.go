package reference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateValidReference(t *testing.T) {
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qr", req["kind"])
		assert.Equal(t, "payload-1", req["value"])
		json.NewEncoder(w).Encode(map[string]any{"valid": true, "details": "signature ok"})
	})

	c := New(srv.URL, false, time.Second)
	res := c.Validate(context.Background(), Reference{Kind: KindQR, Value: "payload-1"})
	assert.True(t, res.Valid)
	assert.Equal(t, "signature ok", res.Details)
	assert.False(t, res.Unavailable)
}

func TestValidateInvalidReference(t *testing.T) {
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"valid": false, "details": "url unreachable"})
	})

	c := New(srv.URL, false, time.Second)
	res := c.Validate(context.Background(), Reference{Kind: KindURL, Value: "https://dead.example"})
	assert.False(t, res.Valid)
	assert.Equal(t, "url unreachable", res.Details)
	assert.False(t, res.Unavailable)
}

func TestValidateServerErrorIsUnavailable(t *testing.T) {
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := New(srv.URL, false, time.Second)
	res := c.Validate(context.Background(), Reference{Kind: KindQR, Value: "x"})
	assert.False(t, res.Valid)
	assert.True(t, res.Unavailable)
}

func TestValidateUnreachableFailsClosed(t *testing.T) {
	c := New("http://127.0.0.1:1", false, 200*time.Millisecond)
	res := c.Validate(context.Background(), Reference{Kind: KindURL, Value: "https://example.edu"})
	assert.False(t, res.Valid)
	assert.True(t, res.Unavailable)
	assert.NotEmpty(t, res.Details)
}

func TestValidateTimeoutFailsClosed(t *testing.T) {
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"valid": true})
	})

	c := New(srv.URL, false, 50*time.Millisecond)
	res := c.Validate(context.Background(), Reference{Kind: KindQR, Value: "slow"})
	assert.False(t, res.Valid)
	assert.True(t, res.Unavailable)
}

func TestValidateEmptyValue(t *testing.T) {
	c := New("http://unused", false, time.Second)
	res := c.Validate(context.Background(), Reference{Kind: KindQR})
	assert.False(t, res.Valid)
}

func TestValidateSkipMode(t *testing.T) {
	c := New("http://unused", true, time.Second)
	res := c.Validate(context.Background(), Reference{Kind: KindQR, Value: "anything"})
	assert.True(t, res.Valid)
}

func TestValidateIdempotent(t *testing.T) {
	calls := 0
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"valid": true})
	})

	c := New(srv.URL, false, time.Second)
	ref := Reference{Kind: KindQR, Value: "repeat"}
	for i := 0; i < 3; i++ {
		res := c.Validate(context.Background(), ref)
		assert.True(t, res.Valid)
	}
	assert.Equal(t, 3, calls)
}

func TestCachedValidatorFallsThroughWithoutCache(t *testing.T) {
	calls := 0
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"valid": true})
	})

	// nil Redis client: every call goes live, still fail-closed.
	cached := NewCached(New(srv.URL, false, time.Second), nil, time.Minute)
	ref := Reference{Kind: KindURL, Value: "https://example.edu/live"}
	for i := 0; i < 2; i++ {
		res := cached.Validate(context.Background(), ref)
		assert.True(t, res.Valid)
	}
	assert.Equal(t, 2, calls)
}

func TestCachedValidatorNeverCachesFailures(t *testing.T) {
	calls := 0
	srv := verifyServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"valid": false, "details": "revoked"})
	})

	cached := NewCached(New(srv.URL, false, time.Second), nil, time.Minute)
	ref := Reference{Kind: KindQR, Value: "revoked-qr"}
	for i := 0; i < 2; i++ {
		res := cached.Validate(context.Background(), ref)
		assert.False(t, res.Valid)
	}
	assert.Equal(t, 2, calls)
}
