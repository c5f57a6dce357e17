package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/pkg/jwthelper"
)

const (
	signingKey = "test-key"
	userAgent  = "gkach-test"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	auth := NewAuthenticator(signingKey)
	r.GET("/me", auth.VerifyJWT(), func(ctx *gin.Context) {
		ctx.String(http.StatusOK, Identity(ctx))
	})
	r.GET("/admin", auth.VerifyJWT(), RequireAdmin(), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})

	return r
}

func call(t *testing.T, r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestVerifyJWT(t *testing.T) {
	t.Parallel()

	r := newRouter()
	member, err := jwthelper.GenerateToken([]byte(signingKey), "+50933334444", "member", userAgent)
	require.NoError(t, err)
	admin, err := jwthelper.GenerateToken([]byte(signingKey), "+50942882076", "admin", userAgent)
	require.NoError(t, err)
	otherAgent, err := jwthelper.GenerateToken([]byte(signingKey), "+50933334444", "member", "someone-else")
	require.NoError(t, err)

	w := call(t, r, "/me", member)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+50933334444", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(t, r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, r, "/me", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, r, "/me", otherAgent).Code)

	assert.Equal(t, http.StatusForbidden, call(t, r, "/admin", member).Code)
	assert.Equal(t, http.StatusNoContent, call(t, r, "/admin", admin).Code)

	w = call(t, r, "/me?token="+member, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
