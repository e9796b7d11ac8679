package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobpoints/config"
	"github.com/cppla/jobpoints/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "middleware-test-secret"})
}

func echoUser(ctx *gin.Context) {
	id, _ := ctx.Get(ContextUserIDKey)
	ctx.JSON(http.StatusOK, gin.H{"user_id": id})
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/", AuthRequired(), echoUser)

	token, err := utils.GenerateToken(7, "alice", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		value  string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, `"code":40101`},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, `"code":40102`},
		{"empty token", "Bearer  ", http.StatusUnauthorized, `"code":40103`},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, `"code":40105`},
		{"valid token", "Bearer " + token, http.StatusOK, `"user_id":7`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			header := "Authorization"
			if tc.value == "" {
				header = ""
			}
			w := do(r, header, tc.value)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}

	t.Run("revoked token", func(t *testing.T) {
		revoked, err := utils.GenerateToken(8, "bob", time.Hour)
		require.NoError(t, err)
		utils.BlacklistToken(revoked, time.Now().Add(time.Hour))
		w := do(r, "Authorization", "Bearer "+revoked)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":40104`)
	})
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAuth(), echoUser)

	w := do(r, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":null`)

	w = do(r, "Authorization", "Bearer broken")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":null`)

	token, err := utils.GenerateToken(9, "carol", time.Hour)
	require.NoError(t, err)
	w = do(r, "Authorization", "Bearer "+token)
	assert.Contains(t, w.Body.String(), `"user_id":9`)
}

func TestInternalOnly(t *testing.T) {
	r := gin.New()
	r.GET("/", InternalOnly("shared"), echoUser)

	assert.Equal(t, http.StatusUnauthorized, do(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, InternalTokenHeader, "wrong").Code)
	assert.Equal(t, http.StatusOK, do(r, InternalTokenHeader, "shared").Code)

	disabled := gin.New()
	disabled.GET("/", InternalOnly(""), echoUser)
	assert.Equal(t, http.StatusForbidden, do(disabled, InternalTokenHeader, "").Code)
}

func TestRateLimitPerMinute(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimitPerMinute(2), echoUser)

	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
	w := do(r, "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":42901`)
}

func TestRateLimitKeysByUser(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAuth(), RateLimitPerMinute(2), echoUser)

	alice, err := utils.GenerateToken(1, "alice", time.Hour)
	require.NoError(t, err)
	bob, err := utils.GenerateToken(2, "bob", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, do(r, "Authorization", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "Authorization", "Bearer "+alice).Code)
	assert.Equal(t, http.StatusOK, do(r, "Authorization", "Bearer "+bob).Code)
}
