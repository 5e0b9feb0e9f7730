package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/elearn-backend/internal/middleware"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/validator"
)

// AuthService is what AuthHandler needs from the account layer.
type AuthService interface {
	Register(ctx context.Context, role model.Role, req model.RegisterRequest) (model.Account, error)
	Login(ctx context.Context, role model.Role, email, password string) (*model.LoginResponse, error)
	GetAccount(ctx context.Context, role model.Role, id int) (model.Account, error)
	SetActivation(ctx context.Context, role model.Role, id int, active bool) error
}

// AuthHandler handles authentication and account endpoints.
type AuthHandler struct {
	authService AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register returns the self-registration handler for a role.
// POST /api/v1/auth/{student|teacher}/register
func (h *AuthHandler) Register(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.RegisterRequest
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}

		account, err := h.authService.Register(c.Request.Context(), role, req)
		if err != nil {
			failFromError(c, err, "Register failed")
			return
		}

		response.Created(c, gin.H{"user": account, "role": role})
	}
}

// Login returns the login handler for a role.
// POST /api/v1/auth/{student|teacher|admin}/login
// Validates email + password and returns a JWT.
func (h *AuthHandler) Login(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.LoginRequest
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}

		resp, err := h.authService.Login(c.Request.Context(), role, req.Email, req.Password)
		if err != nil {
			failFromError(c, err, "Login failed")
			return
		}

		response.Success(c, http.StatusOK, resp)
	}
}

// Me godoc
// GET /api/v1/auth/me
// Returns the account of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	account, err := h.authService.GetAccount(c.Request.Context(), claims.Role, claims.UserID)
	if err != nil {
		failFromError(c, err, "Load profile failed")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account, "role": claims.Role})
}

// SetActivation godoc
// PATCH /api/v1/admin/accounts/:role/:id/activation
func (h *AuthHandler) SetActivation(c *gin.Context) {
	role := model.Role(c.Param("role"))
	if role != model.RoleTeacher && role != model.RoleStudent {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"role": "role must be one of teacher, student"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.SetActivationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.SetActivation(c.Request.Context(), role, id, *req.Active); err != nil {
		failFromError(c, err, "Set activation failed")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"role": role, "id": id, "active": *req.Active})
}
