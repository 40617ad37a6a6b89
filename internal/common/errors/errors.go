// Package errors provides standardized error handling for the dialogue
// engine and its collaborators.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// NLU / model backend
	ErrCodeClassificationUnavailable ErrorCode = "CLASSIFICATION_UNAVAILABLE"
	ErrCodeClassificationTimeout     ErrorCode = "CLASSIFICATION_TIMEOUT"

	// Context store
	ErrCodeContextStoreUnavailable ErrorCode = "CONTEXT_STORE_UNAVAILABLE"

	// Catalog collaborator
	ErrCodeCatalogQueryFailed ErrorCode = "CATALOG_QUERY_FAILED"
	ErrCodeCatalogTimeout     ErrorCode = "CATALOG_TIMEOUT"

	// Order collaborator
	ErrCodeOrderNotFound         ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeOrderAlreadyCancelled ErrorCode = "ORDER_ALREADY_CANCELLED"
	ErrCodeOrderInvalidState     ErrorCode = "ORDER_INVALID_STATE"
	ErrCodeOrderCreateFailed     ErrorCode = "ORDER_CREATE_FAILED"
	ErrCodeInsufficientStock     ErrorCode = "INSUFFICIENT_STOCK"

	// Profile collaborator
	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeProfileUpdateFailed ErrorCode = "PROFILE_UPDATE_FAILED"
	ErrCodeInvalidProfileField ErrorCode = "INVALID_PROFILE_FIELD"

	// Transport / invariants
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether an error is a transient-looking collaborator
// failure. The router preserves conversation context on retryable errors
// so the user can simply try again.
func IsRetryable(err error) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the error code for metrics and logging, looking through
// wrapping; unknown errors map to INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// NewClassificationUnavailableError marks the intent model backend as
// unreachable. Retryable: the rule fallback or a later turn may succeed.
func NewClassificationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationUnavailable,
		Message:   "Intent classification backend unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassificationTimeoutError marks a classification attempt cut short
// by its context deadline. Retryable.
func NewClassificationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationTimeout,
		Message:   "Intent classification timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewContextStoreUnavailableError creates a retryable store error.
func NewContextStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextStoreUnavailable,
		Message:   "Conversation context store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogQueryFailedError creates a retryable catalog error.
func NewCatalogQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogQueryFailed,
		Message:   "Product catalog query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderNotFoundError creates a non-retryable order lookup error.
func NewOrderNotFoundError(orderID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderNotFound,
		Message:   "Order not found",
		Details:   fmt.Sprintf("orderId: %d", orderID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderAlreadyCancelledError creates a non-retryable cancellation error.
func NewOrderAlreadyCancelledError(orderID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderAlreadyCancelled,
		Message:   "Order is already cancelled",
		Details:   fmt.Sprintf("orderId: %d", orderID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderInvalidStateError creates a non-retryable transition error.
func NewOrderInvalidStateError(orderID int64, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderInvalidState,
		Message:   "Order cannot change to the requested status",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"orderId": orderID},
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderCreateFailedError creates a retryable order creation error.
func NewOrderCreateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderCreateFailed,
		Message:   "Order creation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientStockError creates a non-retryable stock error.
func NewInsufficientStockError(productName string, available int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientStock,
		Message:   "Insufficient stock for product",
		Details:   fmt.Sprintf("product: %s, available: %d", productName, available),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserNotFoundError creates a non-retryable user lookup error.
func NewUserNotFoundError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidProfileFieldError creates a non-retryable field error.
func NewInvalidProfileFieldError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidProfileField,
		Message:   "Profile field cannot be updated",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileUpdateFailedError creates a retryable profile update error.
func NewProfileUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileUpdateFailed,
		Message:   "Profile update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable transport error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps a programming invariant violation. Fatal for the
// turn, never for the conversation.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
