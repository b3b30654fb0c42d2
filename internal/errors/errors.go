// Package errors provides categorized error types shared across the service.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/deck-tracker/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryUpstream represents data provider errors
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConfig represents configuration errors
	CategoryConfig ErrorCategory = "config"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// AsCategorized extracts a CategorizedError from an error chain, if present.
func AsCategorized(err error) (*CategorizedError, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// User Input Errors (4xx)

// NewInvalidAppIDError creates an invalid app id error
func NewInvalidAppIDError(raw string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_APP_ID",
		Message:    fmt.Sprintf("invalid app id: %s", raw),
		Details: map[string]interface{}{
			"appId": raw,
		},
	}
}

// NewInvalidParameterError creates an invalid query parameter error
func NewInvalidParameterError(name, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter %s: %s", name, reason),
		Details: map[string]interface{}{
			"parameter": name,
		},
	}
}

// Not Found Errors

// NewGameNotFoundError creates a game not found error
func NewGameNotFoundError(appID int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "GAME_NOT_FOUND",
		Message:    fmt.Sprintf("game %d not found", appID),
		Details: map[string]interface{}{
			"appId": appID,
		},
	}
}

// NewBundleNotFoundError creates a bundle not found error
func NewBundleNotFoundError(id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "BUNDLE_NOT_FOUND",
		Message:    fmt.Sprintf("bundle %s not found", id),
		Details: map[string]interface{}{
			"bundleId": id,
		},
	}
}

// Upstream Errors

// NewUpstreamError wraps a failure from a third-party API
func NewUpstreamError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
		Cause: cause,
	}
}

// System Errors

// NewDatabaseError wraps a database failure
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database operation failed: %s", operation),
		Cause:      cause,
	}
}

// NewMissingCredentialError reports a required credential absent from config.
// Sync jobs fail fast on this rather than running partially.
func NewMissingCredentialError(name string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfig,
		StatusCode: http.StatusInternalServerError,
		Code:       "MISSING_CREDENTIAL",
		Message:    fmt.Sprintf("required credential %s is not configured", name),
		Details: map[string]interface{}{
			"credential": name,
		},
	}
}
