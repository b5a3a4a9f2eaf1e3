package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(capacity, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewSimpleTokenBucket(capacity, perMinute).GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doGet(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitBlocksAfterCapacity(t *testing.T) {
	r := limitedRouter(2, 1)

	assert.Equal(t, http.StatusOK, doGet(r, ""))
	assert.Equal(t, http.StatusOK, doGet(r, ""))
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, ""))
}

func TestRateLimitKeysByBearerToken(t *testing.T) {
	r := limitedRouter(1, 1)

	// Each token owns a bucket; exhausting one leaves the other untouched.
	assert.Equal(t, http.StatusOK, doGet(r, "alice-token"))
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, "alice-token"))
	assert.Equal(t, http.StatusOK, doGet(r, "bob-token"))
}

func TestRateLimitTokenBucketSeparateFromIPBucket(t *testing.T) {
	r := limitedRouter(1, 1)

	// Anonymous traffic burns the IP bucket, not the token bucket.
	assert.Equal(t, http.StatusOK, doGet(r, ""))
	assert.Equal(t, http.StatusTooManyRequests, doGet(r, ""))
	assert.Equal(t, http.StatusOK, doGet(r, "alice-token"))
}

func TestClientKeyHashesToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer secret-token")

	key := clientKey(c)
	assert.Contains(t, key, "tok:")
	assert.NotContains(t, key, "secret-token")
}
