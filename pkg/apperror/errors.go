package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Fee Calculation (FEE) ----

// ErrInvalidFeeInput names the rejected calculator input in the message.
func ErrInvalidFeeInput(field, reason string) *AppError {
	return New("FEE_001", fmt.Sprintf("Invalid fee input: %s %s", field, reason), http.StatusBadRequest)
}

// ---- Booking Flow (BKG) ----

func ErrInvalidBookingTransition(err error) *AppError {
	return Wrap("BKG_001", "Invalid booking transition", http.StatusConflict, err)
}

func ErrNotFound(entity string) *AppError {
	return New("BKG_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrConfirmInProgress() *AppError {
	return New("BKG_003", "Payment confirmation already in progress", http.StatusConflict)
}

// ---- Escrow (ESC) ----

func ErrInvalidEscrowTransition(from, to string) *AppError {
	return New("ESC_001", fmt.Sprintf("Escrow cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrDisputeReasonRequired() *AppError {
	return New("ESC_002", "Dispute reason is required", http.StatusBadRequest)
}

// ---- Payment Settlement (PAY) ----

// ErrSettlementFailed is recoverable: the checkout stays on the payment step.
func ErrSettlementFailed(err error) *AppError {
	return Wrap("PAY_010", "Payment could not be settled, please retry", http.StatusPaymentRequired, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Not allowed for this account", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Request Validation (REQ) ----

// Validation returns a REQ_001 malformed-request error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
