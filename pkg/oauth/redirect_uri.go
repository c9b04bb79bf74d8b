// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// RedirectURIPolicy selects how strictly redirect URIs are validated.
type RedirectURIPolicy int

const (
	// RedirectURIPolicyStrict allows https for any host and http only for
	// loopback hosts (RFC 8252 Section 7.3).
	RedirectURIPolicyStrict RedirectURIPolicy = iota

	// RedirectURIPolicyAllowPrivateUse additionally allows private-use URI
	// schemes such as "vscode://" or "com.example.app:/cb" (RFC 8252 Section 7.1).
	RedirectURIPolicyAllowPrivateUse
)

var (
	errRedirectEmpty    = errors.New("redirect_uri must not be empty")
	errRedirectFragment = errors.New("redirect_uri must not contain a fragment")
	errRedirectRelative = errors.New("redirect_uri must be an absolute URI")
)

// ValidateRedirectURI checks a redirect URI against policy.
func ValidateRedirectURI(uri string, policy RedirectURIPolicy) error {
	if uri == "" {
		return errRedirectEmpty
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("redirect_uri is malformed: %w", err)
	}
	if parsed.Scheme == "" {
		return errRedirectRelative
	}
	if parsed.Fragment != "" || strings.Contains(uri, "#") {
		return errRedirectFragment
	}

	switch strings.ToLower(parsed.Scheme) {
	case "https":
		if parsed.Host == "" {
			return errRedirectRelative
		}
		return nil
	case "http":
		if !IsLoopbackHost(parsed.Hostname()) {
			return fmt.Errorf("http redirect_uri is only allowed for loopback hosts, got %q", parsed.Hostname())
		}
		return nil
	case "javascript", "data", "file", "vbscript":
		return fmt.Errorf("redirect_uri scheme %q is not allowed", parsed.Scheme)
	}

	if policy == RedirectURIPolicyAllowPrivateUse {
		return nil
	}
	return fmt.Errorf("redirect_uri scheme %q is not allowed", parsed.Scheme)
}

// IsLoopbackHost reports whether host is localhost or a loopback IP literal.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
