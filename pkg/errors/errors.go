// Package errors defines the error taxonomy shared by the auth bridge.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
const (
	// ErrClientNotFound is returned when a client id resolves to no registration
	ErrClientNotFound = "client_not_found"

	// ErrSpoofedClientID is returned when a client metadata document names a different client_id
	ErrSpoofedClientID = "spoofed_client_id"

	// ErrUpstreamMissingField is returned when the upstream IdP omits a required field
	ErrUpstreamMissingField = "upstream_missing_field"

	// ErrDomainRestricted is returned when an email is outside the allowed domain
	ErrDomainRestricted = "domain_restricted"

	// ErrAudienceMismatch is returned when a token was issued to another upstream client
	ErrAudienceMismatch = "audience_mismatch"

	// ErrUpstream is returned when the upstream IdP answers with an HTTP failure
	ErrUpstream = "upstream_error"

	// ErrUpstreamRefreshFailed is returned when the upstream rejects a refresh token
	ErrUpstreamRefreshFailed = "upstream_refresh_failed"

	// ErrSessionNotFound is returned when a session id is unknown or expired
	ErrSessionNotFound = "session_not_found"

	// ErrSessionEmailMismatch is returned when a session is presented by another identity
	ErrSessionEmailMismatch = "session_email_mismatch"

	// ErrInvalidAPIKeyHeader is returned when x-api-key carries more than one value
	ErrInvalidAPIKeyHeader = "invalid_api_key_header"

	// ErrInvalidAPIKey is returned when the identity API rejects an API key
	ErrInvalidAPIKey = "invalid_api_key"

	// ErrInvalidArgument is returned when an invalid argument is provided
	ErrInvalidArgument = "invalid_argument"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewClientNotFoundError creates a new client not found error
func NewClientNotFoundError(message string, cause error) *Error {
	return NewError(ErrClientNotFound, message, cause)
}

// NewSpoofedClientIDError creates a new spoofed client id error
func NewSpoofedClientIDError(message string, cause error) *Error {
	return NewError(ErrSpoofedClientID, message, cause)
}

// NewUpstreamMissingFieldError creates a new upstream missing field error
func NewUpstreamMissingFieldError(field string) *Error {
	return NewError(ErrUpstreamMissingField, "upstream response is missing "+field, nil)
}

// NewDomainRestrictedError creates a new domain restricted error
func NewDomainRestrictedError(domain string) *Error {
	return NewError(ErrDomainRestricted, fmt.Sprintf("access restricted to %s email addresses", domain), nil)
}

// NewAudienceMismatchError creates a new audience mismatch error
func NewAudienceMismatchError(message string) *Error {
	return NewError(ErrAudienceMismatch, message, nil)
}

// NewUpstreamError creates a new upstream error. The cause usually is a
// networking.HTTPError carrying the upstream status and body.
func NewUpstreamError(message string, cause error) *Error {
	return NewError(ErrUpstream, message, cause)
}

// NewUpstreamRefreshFailedError creates a new upstream refresh failed error
func NewUpstreamRefreshFailedError(cause error) *Error {
	return NewError(ErrUpstreamRefreshFailed, "token refresh failed", cause)
}

// NewSessionNotFoundError creates a new session not found error
func NewSessionNotFoundError(message string) *Error {
	return NewError(ErrSessionNotFound, message, nil)
}

// NewSessionEmailMismatchError creates a new session email mismatch error
func NewSessionEmailMismatchError(message string) *Error {
	return NewError(ErrSessionEmailMismatch, message, nil)
}

// NewInvalidAPIKeyHeaderError creates a new invalid API key header error
func NewInvalidAPIKeyHeaderError(message string) *Error {
	return NewError(ErrInvalidAPIKeyHeader, message, nil)
}

// NewInvalidAPIKeyError creates a new invalid API key error
func NewInvalidAPIKeyError(message string, cause error) *Error {
	return NewError(ErrInvalidAPIKey, message, cause)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// TypeOf returns the type of the first *Error in err's chain, or "" if there is none.
func TypeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

func isType(err error, errorType string) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsClientNotFound checks if the error is a client not found error
func IsClientNotFound(err error) bool {
	return isType(err, ErrClientNotFound)
}

// IsSpoofedClientID checks if the error is a spoofed client id error
func IsSpoofedClientID(err error) bool {
	return isType(err, ErrSpoofedClientID)
}

// IsUpstreamMissingField checks if the error is an upstream missing field error
func IsUpstreamMissingField(err error) bool {
	return isType(err, ErrUpstreamMissingField)
}

// IsDomainRestricted checks if the error is a domain restricted error
func IsDomainRestricted(err error) bool {
	return isType(err, ErrDomainRestricted)
}

// IsAudienceMismatch checks if the error is an audience mismatch error
func IsAudienceMismatch(err error) bool {
	return isType(err, ErrAudienceMismatch)
}

// IsUpstream checks if the error is an upstream error
func IsUpstream(err error) bool {
	return isType(err, ErrUpstream)
}

// IsUpstreamRefreshFailed checks if the error is an upstream refresh failed error
func IsUpstreamRefreshFailed(err error) bool {
	return isType(err, ErrUpstreamRefreshFailed)
}

// IsSessionNotFound checks if the error is a session not found error
func IsSessionNotFound(err error) bool {
	return isType(err, ErrSessionNotFound)
}

// IsSessionEmailMismatch checks if the error is a session email mismatch error
func IsSessionEmailMismatch(err error) bool {
	return isType(err, ErrSessionEmailMismatch)
}

// IsInvalidAPIKeyHeader checks if the error is an invalid API key header error
func IsInvalidAPIKeyHeader(err error) bool {
	return isType(err, ErrInvalidAPIKeyHeader)
}

// IsInvalidAPIKey checks if the error is an invalid API key error
func IsInvalidAPIKey(err error) bool {
	return isType(err, ErrInvalidAPIKey)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return isType(err, ErrInvalidArgument)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}

// HTTPStatus maps an error to the status code surfaced to HTTP callers.
// Authentication failures are 401, malformed input is 400, an unknown session
// is 404 and upstream failures are 502. Anything else is a 500.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrClientNotFound, ErrSpoofedClientID, ErrInvalidAPIKeyHeader, ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrDomainRestricted, ErrAudienceMismatch, ErrSessionEmailMismatch, ErrInvalidAPIKey:
		return http.StatusUnauthorized
	case ErrSessionNotFound:
		return http.StatusNotFound
	case ErrUpstream, ErrUpstreamMissingField, ErrUpstreamRefreshFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
