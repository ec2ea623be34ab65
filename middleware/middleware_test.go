package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(a *Auth) *gin.Engine {
	r := gin.New()
	r.GET("/private", a.Middleware(), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	a := NewAuth("secret", false)
	r := protectedRouter(a)

	valid, err := a.IssueToken("usr-1", time.Hour)
	require.NoError(t, err)
	expired, err := a.IssueToken("usr-1", -time.Hour)
	require.NoError(t, err)
	foreign, err := NewAuth("otro", false).IssueToken("usr-1", time.Hour)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "bearer", header: "Bearer " + valid, status: http.StatusOK},
		{name: "cookie", cookie: valid, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "other secret", header: "Bearer " + foreign, status: http.StatusUnauthorized},
		{name: "no user claim", header: "Bearer " + noUser, status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic " + valid, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "usr-1", w.Body.String())
			}
		})
	}
}

func TestIssueTokenWithoutSecret(t *testing.T) {
	_, err := NewAuth("", false).IssueToken("usr-1", time.Hour)
	assert.Error(t, err)
}

func TestSetCookieProduction(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		NewAuth("secret", true).SetCookie(c, "tok", time.Hour)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
