package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	geocodedomain "github.com/smallbiznis/dispatch/internal/geocode/domain"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationErrors lists every domain error answered with 400. The first
// match names the error code.
var validationErrors = []error{
	ErrInvalidRequest,
	productdomain.ErrInvalidCode,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidPrice,
	productdomain.ErrInvalidID,
	restaurantdomain.ErrInvalidName,
	restaurantdomain.ErrInvalidAddress,
	restaurantdomain.ErrInvalidID,
	restaurantdomain.ErrUnknownProduct,
	restaurantdomain.ErrDuplicateMenu,
	orderdomain.ErrInvalidOrder,
	orderdomain.ErrProductNotFound,
	orderdomain.ErrInvalidQuantity,
	orderdomain.ErrInvalidCustomer,
	orderdomain.ErrInvalidAddress,
	orderdomain.ErrInvalidPaymentMethod,
	orderdomain.ErrInvalidStatus,
	orderdomain.ErrInvalidPageToken,
	orderdomain.ErrInvalidID,
}

var fieldByCode = map[string]string{
	"unknown_product":     "menu",
	"duplicate_menu_item": "menu",
	"invalid_order":       "products",
	"product_not_found":   "products",
	"invalid_quantity":    "quantity",
	"invalid_customer":    "customer",
	"invalid_page_token":  "page_token",
}

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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, productdomain.ErrDuplicate),
		errors.Is(err, orderdomain.ErrInvalidStatusTransition),
		errors.Is(err, orderdomain.ErrRestaurantCannotFulfill):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, geocodedomain.ErrGeocodeUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) (string, bool) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, restaurantdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrRestaurantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidStatusTransition):
		return "status transition not allowed"
	case errors.Is(err, orderdomain.ErrRestaurantCannotFulfill):
		return "restaurant cannot fulfill the order"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	if field, ok := fieldByCode[code]; ok {
		return field
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "product_not_found", "unknown_product":
		return "product does not exist"
	default:
		return "invalid value"
	}
}
