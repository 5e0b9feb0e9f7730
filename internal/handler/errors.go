package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

type errMapping struct {
	target error
	status int
	code   response.ErrCode
}

// serviceErrors maps service sentinels to their HTTP surface. Anything not
// listed is an internal error.
var serviceErrors = []errMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrAccountDeactivated, http.StatusForbidden, response.ErrAccountDeactivated},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrAccountNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrRoleNotAllowed, http.StatusBadRequest, response.ErrValidation},

	{service.ErrCourseNotFound, http.StatusNotFound, response.ErrCourseNotFound},
	{service.ErrNotCourseOwner, http.StatusForbidden, response.ErrNotCourseOwner},

	{service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
	{service.ErrTestAlreadyExists, http.StatusConflict, response.ErrTestAlreadyExists},
	{service.ErrInvalidAnswerLabel, http.StatusBadRequest, response.ErrValidation},
	{service.ErrQuestionNotInTest, http.StatusBadRequest, response.ErrValidation},

	{service.ErrAlreadyPassed, http.StatusConflict, response.ErrAlreadyPassed},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrNotFound},

	{service.ErrNotEnrolled, http.StatusConflict, response.ErrNotEnrolled},
	{service.ErrAlreadyCompleted, http.StatusConflict, response.ErrAlreadyCompleted},
	{service.ErrInvalidProgress, http.StatusBadRequest, response.ErrValidation},
}

// classify returns the HTTP status and code of a service error; ok is false
// for errors that are not part of the service contract.
func classify(err error) (status int, code response.ErrCode, ok bool) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, response.ErrInternal, false
}

// failFromError writes the response for a service error. Unknown errors are
// logged with the request logger and surfaced as INTERNAL_ERROR.
func failFromError(c *gin.Context, err error, msg string) {
	status, code, ok := classify(err)
	if !ok {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
	}
	response.Fail(c, status, code)
}

// pathID parses a positive integer path parameter, writing INVALID_ID on failure.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
