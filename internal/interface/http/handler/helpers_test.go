package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-portal/internal/http/middleware"
)

func testContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/api/public/approve", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	c.Request = req
	return c
}

func TestClientInfo_FallsBackToRequest(t *testing.T) {
	c := testContext(t)

	info := clientInfo(c, "", "  ")
	assert.Equal(t, "198.51.100.4", info.IP)
	assert.Equal(t, "Mozilla/5.0", info.UserAgent)
}

func TestClientInfo_PrefersBody(t *testing.T) {
	c := testContext(t)

	info := clientInfo(c, "203.0.113.9", "curl/8.0")
	assert.Equal(t, "203.0.113.9", info.IP)
	assert.Equal(t, "curl/8.0", info.UserAgent)
}

func TestGetOwnerID(t *testing.T) {
	c := testContext(t)

	_, err := getOwnerID(c)
	assert.Error(t, err)

	c.Set(middleware.ContextOwnerIDKey, "not-a-uuid")
	_, err = getOwnerID(c)
	assert.Error(t, err)

	ownerID := uuid.New()
	c.Set(middleware.ContextOwnerIDKey, ownerID)
	got, err := getOwnerID(c)
	require.NoError(t, err)
	assert.Equal(t, ownerID, got)
}
