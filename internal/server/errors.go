package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omnikart/omnikart/internal/gateway"
	ordersdomain "github.com/omnikart/omnikart/internal/orders/domain"
	paymentdomain "github.com/omnikart/omnikart/internal/payment/domain"
	"github.com/omnikart/omnikart/pkg/db/pagination"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware turns domain sentinel errors into the JSON error
// envelope. Handlers call AbortWithError and return.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "signature verification failed",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrGatewayUnavailable),
		errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment service not configured",
		}
	case errors.Is(err, paymentdomain.ErrNotCaptured):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "payment is not in a refundable state",
		}
	case errors.Is(err, paymentdomain.ErrDuplicateOrder):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "gateway order already recorded",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidOrderID),
		errors.Is(err, paymentdomain.ErrInvalidEmail),
		errors.Is(err, paymentdomain.ErrInvalidContact),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, pagination.ErrInvalidToken),
		errors.Is(err, paymentdomain.ErrRefundExceedsPaid),
		errors.Is(err, ordersdomain.ErrUnsupportedKind),
		errors.Is(err, gateway.ErrInvalidAmount),
		errors.Is(err, gateway.ErrBelowMinimum),
		errors.Is(err, gateway.ErrAboveTestCap),
		errors.Is(err, gateway.ErrInvalidPayment):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
