package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
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
	Type      string            `json:"type"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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

	var docErr *documentdomain.ValidationError
	if errors.As(err, &docErr) && docErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    docErr.Code,
			Message: docErr.Reason,
			Errors: []ValidationError{
				{Field: "file", Code: docErr.Code, Message: docErr.Reason},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{
				{Field: validationErrorField(err), Code: code, Message: "invalid value"},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, documentdomain.ErrPermission):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    notFoundCode(err),
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    matchSentinel(err, conflictErrors).Error(),
			Message: "conflict",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, reconciliation.ErrConcurrentUpdate):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "service_unavailable",
			Code:      reconciliation.ErrConcurrentUpdate.Error(),
			Message:   "invoice is busy, retry the request",
			Retryable: true,
		}
	case errors.Is(err, documentdomain.ErrStorageUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:      "storage_unavailable",
			Code:      documentdomain.ErrStorageUnavailable.Error(),
			Message:   "document storage unavailable",
			Retryable: true,
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "service_unavailable",
			Message:   "service unavailable",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type and code the
// client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
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

var validationFields = []struct {
	err   error
	field string
}{
	{ErrInvalidRequest, "request"},
	{feetypedomain.ErrInvalidName, "name"},
	{feetypedomain.ErrInvalidAmount, "amount"},
	{invoicedomain.ErrInvalidAmount, "amount"},
	{invoicedomain.ErrInvalidDueDate, "due_date"},
	{invoicedomain.ErrInvalidStatus, "status"},
	{invoicedomain.ErrInvalidPageToken, "page_token"},
	{paymentdomain.ErrInvalidAmount, "amount"},
	{paymentdomain.ErrInvalidPaymentMethod, "method"},
	{documentdomain.ErrInvalidPageToken, "page_token"},
	{auditdomain.ErrInvalidPageToken, "page_token"},
	{auditdomain.ErrInvalidAction, "action"},
	{auditdomain.ErrInvalidTimeRange, "to"},
}

func isValidationError(err error) bool {
	return validationErrorField(err) != ""
}

func validationErrorField(err error) string {
	for _, v := range validationFields {
		if errors.Is(err, v.err) {
			return v.field
		}
	}
	return ""
}

func validationErrorCode(err error) string {
	for _, v := range validationFields {
		if errors.Is(err, v.err) {
			return v.err.Error()
		}
	}
	return ErrInvalidRequest.Error()
}

var notFoundErrors = []error{
	ErrNotFound,
	feetypedomain.ErrNotFound,
	invoicedomain.ErrInvoiceNotFound,
	invoicedomain.ErrItemNotFound,
	invoicedomain.ErrStudentNotFound,
	invoicedomain.ErrAcademicYearNotFound,
	paymentdomain.ErrPaymentNotFound,
	documentdomain.ErrNotFound,
}

var conflictErrors = []error{
	feetypedomain.ErrDuplicateName,
	feetypedomain.ErrReferentialIntegrity,
	invoicedomain.ErrInvoiceCancelled,
	invoicedomain.ErrOutstandingPayment,
	invoicedomain.ErrAmountLimitExceeded,
	paymentdomain.ErrAlreadyReversed,
	paymentdomain.ErrInvalidOperation,
}

// matchSentinel returns the first listed error that err wraps.
func matchSentinel(err error, sentinels []error) error {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	return matchSentinel(err, notFoundErrors) != nil || errors.Is(err, gorm.ErrRecordNotFound)
}

func notFoundCode(err error) string {
	if sentinel := matchSentinel(err, notFoundErrors); sentinel != nil {
		return sentinel.Error()
	}
	return ErrNotFound.Error()
}

func isConflictError(err error) bool {
	return matchSentinel(err, conflictErrors) != nil
}
