// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers is the HTTP surface of the bridge's authorization server.
//
// Routes are split in two groups so the bridge can mount them separately:
// OAuthRoutes serves /authorize, /token, /register and /introspect, and
// WellKnownRoutes serves the RFC 8414 and RFC 9728 metadata
// documents. Errors on /authorize and /token are ory/fosite RFC6749Error
// values, written as JSON until the client's redirect URI has been checked
// and as redirects afterwards.
package handlers
