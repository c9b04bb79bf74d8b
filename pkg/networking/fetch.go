// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultMaxResponseSize caps upstream response bodies (1MB).
	DefaultMaxResponseSize = 1024 * 1024

	// DefaultErrorPreviewSize caps HTTPError.Body.
	DefaultErrorPreviewSize = 1024

	ContentTypeJSON           = "application/json"
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)

// ErrResponseTooLarge is returned when a body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// FetchResult is a decoded 2xx response.
type FetchResult[T any] struct {
	Data       T
	StatusCode int
	Header     http.Header
}

// FetchOption configures a single upstream call.
type FetchOption func(*call)

type call struct {
	method   string
	header   http.Header
	body     io.Reader
	jsonBody any
	limit    int64
	anyType  bool
	onError  func(*http.Response, []byte) error
}

// WithMethod sets the request method. GET is the default.
func WithMethod(method string) FetchOption {
	return func(c *call) { c.method = method }
}

// WithHeader sets a request header.
func WithHeader(key, value string) FetchOption {
	return func(c *call) { c.header.Set(key, value) }
}

// WithBody sets a raw request body.
func WithBody(body io.Reader) FetchOption {
	return func(c *call) { c.body = body }
}

// WithJSONBody encodes v as the request body and marks it as JSON.
// The method defaults to POST unless WithMethod is also given.
func WithJSONBody(v any) FetchOption {
	return func(c *call) { c.jsonBody = v }
}

// WithMaxResponseSize overrides DefaultMaxResponseSize.
func WithMaxResponseSize(size int64) FetchOption {
	return func(c *call) { c.limit = size }
}

// WithoutContentTypeValidation accepts 2xx bodies regardless of Content-Type.
func WithoutContentTypeValidation() FetchOption {
	return func(c *call) { c.anyType = true }
}

// WithErrorHandler lets the caller map a non-2xx response to its own error.
// Returning nil falls back to an HTTPError.
func WithErrorHandler(handler func(*http.Response, []byte) error) FetchOption {
	return func(c *call) { c.onError = handler }
}

func newCall(opts []FetchOption) *call {
	c := &call{header: make(http.Header), limit: DefaultMaxResponseSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.header.Get("Accept") == "" {
		c.header.Set("Accept", ContentTypeJSON)
	}
	return c
}

func (c *call) request(ctx context.Context, requestURL string) (*http.Request, error) {
	body := c.body
	method := c.method
	if c.jsonBody != nil {
		payload, err := json.Marshal(c.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
		c.header.Set("Content-Type", ContentTypeJSON)
		if method == "" {
			method = http.MethodPost
		}
	}
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.header.Clone()
	return req, nil
}

// FetchJSON calls requestURL and decodes a 2xx JSON body into T.
// Non-2xx answers become an *HTTPError unless an error handler claims them.
func FetchJSON[T any](ctx context.Context, client HTTPClient, requestURL string, opts ...FetchOption) (*FetchResult[T], error) {
	c := newCall(opts)

	req, err := c.request(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readLimited(resp.Body, c.limit)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.onError != nil {
			if err := c.onError(resp, body); err != nil {
				return nil, err
			}
		}
		return nil, ErrorFromResponse(resp.StatusCode, requestURL, body)
	}

	if !c.anyType && !isJSONMediaType(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("unexpected content type: %q", resp.Header.Get("Content-Type"))
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return &FetchResult[T]{Data: data, StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

// FetchJSONWithForm POSTs form to requestURL, as token and introspection
// endpoints expect, and decodes the JSON answer.
func FetchJSONWithForm[T any](
	ctx context.Context,
	client HTTPClient,
	requestURL string,
	form url.Values,
	opts ...FetchOption,
) (*FetchResult[T], error) {
	formOpts := []FetchOption{
		WithMethod(http.MethodPost),
		WithHeader("Content-Type", ContentTypeFormURLEncoded),
		WithBody(strings.NewReader(form.Encode())),
	}
	return FetchJSON[T](ctx, client, requestURL, append(formOpts, opts...)...)
}

// readLimited reads one byte past limit to tell a full body from a cut one.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, limit)
	}
	return body, nil
}

// isJSONMediaType accepts application/json and structured +json types.
func isJSONMediaType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == ContentTypeJSON ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}
