package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// TokenValidator parses a bearer token into claims.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
}

// ActivationChecker reports whether an account may still use the API.
type ActivationChecker interface {
	IsActive(ctx context.Context, role model.Role, id int) (bool, error)
}

// RequireAuth validates the JWT from the Authorization header.
func RequireAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireWSAuth validates a JWT from the query param ?token=...
// Browsers cannot set headers on WebSocket upgrade requests.
func RequireWSAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

var roleOnlyCode = map[model.Role]response.ErrCode{
	model.RoleAdmin:   response.ErrAdminAccessOnly,
	model.RoleTeacher: response.ErrTeacherAccessOnly,
	model.RoleStudent: response.ErrStudentAccessOnly,
}

// RequireRole lets only the given role through. Must run after RequireAuth.
func RequireRole(role model.Role) gin.HandlerFunc {
	code, ok := roleOnlyCode[role]
	if !ok {
		code = response.ErrForbidden
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role != role {
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}
		c.Next()
	}
}

// RequireActive rejects teachers and students whose account was deactivated
// after their token was issued. Admins have no activation flag.
func RequireActive(accounts ActivationChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if claims.Role == model.RoleAdmin {
			c.Next()
			return
		}

		active, err := accounts.IsActive(c.Request.Context(), claims.Role, claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrAccountNotFound) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
				return
			}
			log.Error().Err(err).Int("account_id", claims.UserID).Msg("Activation check failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !active {
			response.AbortFail(c, http.StatusForbidden, response.ErrAccountDeactivated)
			return
		}
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
