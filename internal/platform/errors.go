package platform

import (
	"errors"
	"fmt"
)

// Platform error subcodes observed in responses
const (
	// subcodeBeforeConversion marks posts created before the account was
	// converted to a trackable account type. Expected, not a failure.
	subcodeBeforeConversion = 2108006

	codeInvalidParameter = 100
	codePermission       = 10
	codeRateLimited      = 4
)

// APIError is a structured error returned by the platform API
type APIError struct {
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("platform API error %d/%d: %s", e.Code, e.Subcode, e.Message)
}

// IsSkippable reports whether the error is an expected rejection that should
// not count as a failure (e.g. post predates trackable-account conversion)
func IsSkippable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Subcode == subcodeBeforeConversion
}

// IsMetricUnsupported reports whether the platform rejected the requested
// metric set; callers retry once with a minimal set before giving up
func IsMetricUnsupported(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeInvalidParameter && apiErr.Subcode != subcodeBeforeConversion
}

// IsPermission reports whether the call was rejected for missing permissions
func IsPermission(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codePermission
}
