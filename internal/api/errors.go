package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

var (
	errMissingToken   = errors.New("authorization header missing")
	errForbidden      = errors.New("insufficient role")
	errRateLimited    = errors.New("rate limit exceeded")
	errMissingProfile = errors.New("fullName and email are required")
	errBadStatus      = errors.New("unknown status filter")
	errBadRequest     = errors.New("malformed request body")
	errMarkup         = errors.New("fullName and email must be plain text")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sdk.ErrMissingCredentials),
		errors.Is(err, sdk.ErrMissingCode),
		errors.Is(err, sdk.ErrInvalidDate),
		errors.Is(err, sdk.ErrInvalidMonth),
		errors.Is(err, sdk.ErrInvalidRole),
		errors.Is(err, errMissingProfile),
		errors.Is(err, errMarkup),
		errors.Is(err, errBadRequest),
		errors.Is(err, errBadStatus):
		return http.StatusBadRequest
	case errors.Is(err, sdk.ErrInvalidCredentials),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, errMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, sdk.ErrDemoUnavailable):
		return http.StatusNotFound
	case errors.Is(err, sdk.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, sdk.ErrInvalidCode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// fail aborts the request with {"error": message}. Internal errors are not echoed.
func fail(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		c.Error(err)
		msg = "internal error"
	} else if errors.Is(err, session.ErrInvalidToken) {
		msg = session.ErrInvalidToken.Error()
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
