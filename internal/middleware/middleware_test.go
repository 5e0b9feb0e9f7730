package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens map[string]*service.Claims

func (s stubTokens) ValidateToken(tokenStr string) (*service.Claims, error) {
	if c, ok := s[tokenStr]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

type stubActivation map[int]bool

func (s stubActivation) IsActive(ctx context.Context, role model.Role, id int) (bool, error) {
	active, ok := s[id]
	if !ok {
		return false, service.ErrAccountNotFound
	}
	return active, nil
}

func claimsFor(id int, role model.Role) *service.Claims {
	return &service.Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "jti"}, UserID: id, Role: role}
}

func TestAuthChain(t *testing.T) {
	tokens := stubTokens{
		"student":  claimsFor(1, model.RoleStudent),
		"inactive": claimsFor(2, model.RoleStudent),
		"teacher":  claimsFor(3, model.RoleTeacher),
		"admin":    claimsFor(4, model.RoleAdmin),
		"ghost":    claimsFor(5, model.RoleStudent),
	}
	active := stubActivation{1: true, 2: false, 3: true}

	r := gin.New()
	r.GET("/student",
		RequireAuth(tokens), RequireActive(active, zerolog.Nop()), RequireRole(model.RoleStudent),
		func(c *gin.Context) { c.String(http.StatusOK, "ok %d", GetClaims(c).UserID) })
	r.GET("/admin",
		RequireAuth(tokens), RequireActive(active, zerolog.Nop()), RequireRole(model.RoleAdmin),
		func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/student", "", http.StatusUnauthorized},
		{"bad token", "/student", "Bearer nope", http.StatusUnauthorized},
		{"student", "/student", "Bearer student", http.StatusOK},
		{"lowercase scheme", "/student", "bearer student", http.StatusOK},
		{"deactivated", "/student", "Bearer inactive", http.StatusForbidden},
		{"deleted account", "/student", "Bearer ghost", http.StatusUnauthorized},
		{"wrong role", "/student", "Bearer teacher", http.StatusForbidden},
		{"admin skips activation", "/admin", "Bearer admin", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireWSAuth(t *testing.T) {
	r := gin.New()
	r.GET("/ws", RequireWSAuth(stubTokens{"good": claimsFor(1, model.RoleStudent)}), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for query, want := range map[string]int{
		"":            http.StatusUnauthorized,
		"?token=bad":  http.StatusUnauthorized,
		"?token=good": http.StatusNoContent,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws"+query, nil))
		assert.Equal(t, want, w.Code, query)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per key")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("course ", 1000)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, large, string(decoded))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/large", nil))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())
}
