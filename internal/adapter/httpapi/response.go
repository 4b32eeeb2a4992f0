package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/usecase/market"
)

// APIError is the body of every non-2xx response
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err as an ErrorEnvelope
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondOK writes payload with status 200
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusFor maps domain errors to an HTTP status and a short code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrBundleNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotSeller),
		errors.Is(err, domain.ErrNotSellerOfAll),
		errors.Is(err, domain.ErrNotInterested):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrAlreadySold),
		errors.Is(err, domain.ErrItemLocked),
		errors.Is(err, domain.ErrAssignmentFrozen),
		errors.Is(err, domain.ErrReentrantCall):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidAddress), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, market.ErrNoAssetDirectory):
		return http.StatusNotImplemented, "not_implemented"
	}
	return http.StatusInternalServerError, "internal"
}
