// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// HTTPError is a non-2xx answer from an upstream endpoint.
//
// Error() never includes Body or Description, so upstream payloads (which may
// echo tokens back) stay out of logs.
type HTTPError struct {
	StatusCode int
	URL        string

	// Code is the OAuth "error" member of a JSON error body, if any.
	Code string
	// Description is the OAuth "error_description" member, if any.
	Description string

	// Message falls back to the status text when the body carries no code.
	Message string

	// Body is the first DefaultErrorPreviewSize bytes of the response.
	Body string
}

func (e *HTTPError) Error() string {
	reason := e.Message
	if e.Code != "" {
		reason = e.Code
	}
	if e.URL == "" {
		return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, reason)
	}
	return fmt.Sprintf("%s responded %d: %s", e.URL, e.StatusCode, reason)
}

// NewHTTPError creates an HTTPError without a body.
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{StatusCode: statusCode, URL: url, Message: message}
}

// ErrorFromResponse builds an HTTPError from a raw error body, lifting the
// OAuth error fields out of it when it is JSON.
func ErrorFromResponse(statusCode int, url string, body []byte) *HTTPError {
	httpErr := &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    http.StatusText(statusCode),
		Body:       PreviewBody(body),
	}
	if gjson.ValidBytes(body) {
		fields := gjson.GetManyBytes(body, "error", "error_description")
		if fields[0].Type == gjson.String {
			httpErr.Code = fields[0].String()
		}
		httpErr.Description = fields[1].String()
	}
	return httpErr
}

// PreviewBody returns at most DefaultErrorPreviewSize bytes of body.
func PreviewBody(body []byte) string {
	if len(body) > DefaultErrorPreviewSize {
		body = body[:DefaultErrorPreviewSize]
	}
	return string(body)
}

func asHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	ok := errors.As(err, &httpErr)
	return httpErr, ok
}

// IsHTTPError reports whether err wraps an HTTPError with statusCode.
// A zero statusCode matches any HTTPError.
func IsHTTPError(err error, statusCode int) bool {
	httpErr, ok := asHTTPError(err)
	return ok && (statusCode == 0 || httpErr.StatusCode == statusCode)
}

// StatusCodeOf returns the status code of the HTTPError in err's chain, or 0.
func StatusCodeOf(err error) int {
	if httpErr, ok := asHTTPError(err); ok {
		return httpErr.StatusCode
	}
	return 0
}

// OAuthErrorCode returns the OAuth error code of the HTTPError in err's chain.
func OAuthErrorCode(err error) string {
	if httpErr, ok := asHTTPError(err); ok {
		return httpErr.Code
	}
	return ""
}
